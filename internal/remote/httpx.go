// Package remote holds the shared HTTP-with-backoff plumbing used by the
// codehost, registry, and doi adapters — each talks to a different API
// shape but all three retry the same way on rate limiting and transient
// failure.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
)

// Client is a small JSON-over-HTTP helper shared by every remote adapter.
type Client struct {
	HTTP      *http.Client
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Attempts  uint
	UserAgent string
}

// NewClient builds a Client with the backoff parameters repoindex's
// adapters standardize on: 1s base delay, 60s cap, 3 attempts.
func NewClient() *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		BaseDelay: 1 * time.Second,
		MaxDelay:  60 * time.Second,
		Attempts:  3,
		UserAgent: "repoindex",
	}
}

// ErrRateLimited is returned by Do when every retry attempt is exhausted
// while the server kept answering 429 Too Many Requests.
var ErrRateLimited = fmt.Errorf("remote: rate limit exceeded after retries")

// Do issues an HTTP GET against url with the given headers, retrying on
// 429 responses and transport errors with exponential backoff honoring a
// server-supplied Retry-After or X-RateLimit-Reset header when present.
func (c *Client) Do(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	var resp *http.Response

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			req.Header.Set("User-Agent", c.UserAgent)
			for k, v := range headers {
				req.Header.Set(k, v)
			}

			r, err := c.HTTP.Do(req)
			if err != nil {
				return err
			}

			if r.StatusCode == http.StatusTooManyRequests {
				wait := retryAfter(r)
				r.Body.Close()
				if wait > 0 {
					time.Sleep(wait)
				}
				return fmt.Errorf("%w: status %d", ErrRateLimited, r.StatusCode)
			}

			if r.StatusCode >= 500 {
				body, _ := io.ReadAll(r.Body)
				r.Body.Close()
				return fmt.Errorf("remote: server error %d: %s", r.StatusCode, string(body))
			}

			resp = r
			return nil
		},
		retry.Attempts(c.Attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(c.BaseDelay),
		retry.MaxDelay(c.MaxDelay),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// retryAfter reads Retry-After (seconds) or X-RateLimit-Reset (unix epoch
// seconds) from a rate-limited response, returning 0 if neither is present.
func retryAfter(r *http.Response) time.Duration {
	if v := r.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	if v := r.Header.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			wait := time.Until(time.Unix(epoch, 0))
			if wait > 0 {
				return wait
			}
		}
	}
	return 0
}
