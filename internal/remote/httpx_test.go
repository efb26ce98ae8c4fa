package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesOnRateLimitThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient()
	c.BaseDelay = time.Millisecond
	c.MaxDelay = 5 * time.Millisecond
	resp, err := c.Do(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, attempts)
}

func TestDoReturnsRateLimitedAfterExhaustingAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient()
	c.Attempts = 2
	c.BaseDelay = time.Millisecond
	c.MaxDelay = 2 * time.Millisecond
	_, err := c.Do(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestDoSetsAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "token secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient()
	resp, err := c.Do(context.Background(), srv.URL, map[string]string{"Authorization": "token secret"})
	require.NoError(t, err)
	resp.Body.Close()
}

func TestDoServerErrorRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient()
	c.Attempts = 2
	c.BaseDelay = time.Millisecond
	c.MaxDelay = 2 * time.Millisecond
	_, err := c.Do(context.Background(), srv.URL, nil)
	require.Error(t, err)
}
