// Package codehost adapts a GitHub-shaped hosting API to the enrichment
// data repository refresh needs: stars, forks, topics, archival state,
// license, releases, pull requests, issues, workflow runs, and the pages
// deployment URL. All access is plain HTTP with an optional bearer token;
// nothing shells out to a CLI tool.
package codehost

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gdesouza/repoindex/internal/remote"
)

// Repo is the subset of a hosted repository's metadata repoindex persists.
type Repo struct {
	Owner         string   `json:"-"`
	Name          string   `json:"-"`
	FullName      string   `json:"full_name"`
	Description   string   `json:"description"`
	Homepage      string   `json:"homepage"`
	Language      string   `json:"language"`
	Stars         int      `json:"stargazers_count"`
	Forks         int      `json:"forks_count"`
	Watchers      int      `json:"watchers_count"`
	OpenIssues    int      `json:"open_issues_count"`
	IsFork        bool     `json:"fork"`
	IsPrivate     bool     `json:"private"`
	IsArchived    bool     `json:"archived"`
	DefaultBranch string   `json:"default_branch"`
	Topics        []string `json:"topics"`
	HasIssues     bool     `json:"has_issues"`
	HasWiki       bool     `json:"has_wiki"`
	HasPages      bool     `json:"has_pages"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	PushedAt      string   `json:"pushed_at"`
	License       struct {
		Key string `json:"key"`
	} `json:"license"`
}

// LicenseKey returns the hosted provider's SPDX-ish license key, or "".
func (r Repo) LicenseKey() string { return r.License.Key }

// Release mirrors the subset of a GitHub release that feeds a github_release
// event.
type Release struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	Body        string `json:"body"`
	Draft       bool   `json:"draft"`
	Prerelease  bool   `json:"prerelease"`
	PublishedAt string `json:"published_at"`
	HTMLURL     string `json:"html_url"`
}

// PullRequest mirrors the subset of a GitHub pull request that feeds a pr
// event.
type PullRequest struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	State     string `json:"state"`
	MergedAt  string `json:"merged_at"`
	UpdatedAt string `json:"updated_at"`
	HTMLURL   string `json:"html_url"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

// Issue mirrors the subset of a GitHub issue that feeds an issue event.
// GitHub's issues endpoint also returns pull requests; IsPullRequest
// distinguishes the two so callers can filter.
type Issue struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	State     string `json:"state"`
	UpdatedAt string `json:"updated_at"`
	HTMLURL   string `json:"html_url"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

// IsPullRequest reports whether this issue-shaped record is actually a pull
// request, as returned by the GitHub issues endpoint.
func (i Issue) IsPullRequest() bool { return i.PullRequest != nil }

// WorkflowRun mirrors the subset of a GitHub Actions run that feeds a
// workflow_run event.
type WorkflowRun struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HeadBranch string `json:"head_branch"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	HTMLURL    string `json:"html_url"`
}

type workflowRunsResponse struct {
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// PagesInfo mirrors the GitHub Pages deployment metadata for a repository.
type PagesInfo struct {
	URL    string `json:"html_url"`
	Status string `json:"status"`
	CNAME  string `json:"cname"`
}

type topicsResponse struct {
	Names []string `json:"names"`
}

// Adapter fetches repository metadata from a GitHub-compatible API.
type Adapter struct {
	client  *remote.Client
	token   string
	baseURL string
}

// tokenEnvVars is checked in order: a repoindex-specific override first,
// then the ambient GITHUB_TOKEN.
var tokenEnvVars = []string{"REPOINDEX_GITHUB_TOKEN", "GITHUB_TOKEN"}

// New builds an Adapter. If token is empty, the environment variables in
// tokenEnvVars are checked in order.
func New(token string) *Adapter {
	if token == "" {
		for _, name := range tokenEnvVars {
			if v := os.Getenv(name); v != "" {
				token = v
				break
			}
		}
	}
	return &Adapter{client: remote.NewClient(), token: token, baseURL: "https://api.github.com"}
}

// WithBaseURL overrides the API base URL, for pointing the adapter at a
// test double instead of the public GitHub API.
func (a *Adapter) WithBaseURL(url string) *Adapter {
	a.baseURL = url
	return a
}

// authHeaders builds the header set every request sends, carrying the
// resolved bearer token when one is present.
func (a *Adapter) authHeaders() map[string]string {
	headers := map[string]string{}
	if a.token != "" {
		headers["Authorization"] = "token " + a.token
	}
	return headers
}

// ErrNotFound is returned when the hosting API has no record of the
// requested owner/name.
var ErrNotFound = fmt.Errorf("repository not found")

// GetRepo retrieves metadata for owner/name.
func (a *Adapter) GetRepo(ctx context.Context, owner, name string) (*Repo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", a.baseURL, owner, name)
	resp, err := a.client.Do(ctx, url, a.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("codehost: fetch %s/%s: %w", owner, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, fmt.Errorf("codehost: %s/%s: %w", owner, name, ErrNotFound)
	}

	var repo Repo
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return nil, fmt.Errorf("codehost: decode response for %s/%s: %w", owner, name, err)
	}
	repo.Owner, repo.Name = owner, name
	return &repo, nil
}

// GetTopics retrieves the repository's topic list via the dedicated topics
// endpoint, which predates topics being embedded in the repo payload and
// still requires the mercy-preview accept header.
func (a *Adapter) GetTopics(ctx context.Context, owner, name string) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/topics", a.baseURL, owner, name)
	headers := a.authHeaders()
	headers["Accept"] = "application/vnd.github.mercy-preview+json"

	resp, err := a.client.Do(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("codehost: topics %s/%s: %w", owner, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, fmt.Errorf("codehost: %s/%s: %w", owner, name, ErrNotFound)
	}

	var decoded topicsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("codehost: decode topics response for %s/%s: %w", owner, name, err)
	}
	return decoded.Names, nil
}

// GetReleases lists the most recent releases for owner/name, newest first,
// capped at limit (a non-positive limit defaults to 10).
func (a *Adapter) GetReleases(ctx context.Context, owner, name string, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = 10
	}
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", a.baseURL, owner, name, limit)
	resp, err := a.client.Do(ctx, url, a.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("codehost: releases %s/%s: %w", owner, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, nil
	}

	var releases []Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("codehost: decode releases response for %s/%s: %w", owner, name, err)
	}
	return releases, nil
}

// GetPullRequests lists pull requests for owner/name across all states,
// newest-updated first, capped at limit (a non-positive limit defaults to
// 10).
func (a *Adapter) GetPullRequests(ctx context.Context, owner, name string, limit int) ([]PullRequest, error) {
	if limit <= 0 {
		limit = 10
	}
	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=all&sort=updated&direction=desc&per_page=%d", a.baseURL, owner, name, limit)
	resp, err := a.client.Do(ctx, url, a.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("codehost: pulls %s/%s: %w", owner, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, nil
	}

	var prs []PullRequest
	if err := json.NewDecoder(resp.Body).Decode(&prs); err != nil {
		return nil, fmt.Errorf("codehost: decode pulls response for %s/%s: %w", owner, name, err)
	}
	return prs, nil
}

// GetIssues lists issues for owner/name across all states, newest-updated
// first, capped at limit (a non-positive limit defaults to 10). The
// returned slice may include pull requests, which GitHub's issues endpoint
// treats as a superset; callers should skip entries where IsPullRequest
// returns true.
func (a *Adapter) GetIssues(ctx context.Context, owner, name string, limit int) ([]Issue, error) {
	if limit <= 0 {
		limit = 10
	}
	url := fmt.Sprintf("%s/repos/%s/%s/issues?state=all&sort=updated&direction=desc&per_page=%d", a.baseURL, owner, name, limit)
	resp, err := a.client.Do(ctx, url, a.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("codehost: issues %s/%s: %w", owner, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, nil
	}

	var issues []Issue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return nil, fmt.Errorf("codehost: decode issues response for %s/%s: %w", owner, name, err)
	}
	return issues, nil
}

// GetWorkflowRuns lists the most recent GitHub Actions workflow runs for
// owner/name, newest first, capped at limit (a non-positive limit defaults
// to 10).
func (a *Adapter) GetWorkflowRuns(ctx context.Context, owner, name string, limit int) ([]WorkflowRun, error) {
	if limit <= 0 {
		limit = 10
	}
	url := fmt.Sprintf("%s/repos/%s/%s/actions/runs?per_page=%d", a.baseURL, owner, name, limit)
	resp, err := a.client.Do(ctx, url, a.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("codehost: workflow runs %s/%s: %w", owner, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, nil
	}

	var decoded workflowRunsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("codehost: decode workflow runs response for %s/%s: %w", owner, name, err)
	}
	return decoded.WorkflowRuns, nil
}

// GetPagesInfo retrieves the GitHub Pages deployment metadata for
// owner/name. It returns (nil, nil) when the repository has pages disabled
// rather than treating a 404 as an error, since most repositories never
// enable pages.
func (a *Adapter) GetPagesInfo(ctx context.Context, owner, name string) (*PagesInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pages", a.baseURL, owner, name)
	resp, err := a.client.Do(ctx, url, a.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("codehost: pages %s/%s: %w", owner, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, nil
	}

	var info PagesInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("codehost: decode pages response for %s/%s: %w", owner, name, err)
	}
	return &info, nil
}

// ParseOwnerName splits a "owner/name" remote identifier, tolerating a
// full https://host/owner/name(.git) URL as well.
func ParseOwnerName(identifier string) (owner, name string, ok bool) {
	s := strings.TrimSuffix(identifier, ".git")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@")
	if i := strings.Index(s, ":"); i != -1 && !strings.Contains(s[:i], "/") {
		s = s[i+1:]
	}
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[len(parts)-2], parts[len(parts)-1], true
}
