package codehost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetRepoParsesRepoMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget", r.URL.Path)
		require.Equal(t, "token secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"full_name": "acme/widget",
			"stargazers_count": 42,
			"fork": false,
			"archived": true,
			"topics": ["cli", "go"],
			"license": {"key": "mit"}
		}`))
	}))
	defer srv.Close()

	a := New("secret").WithBaseURL(srv.URL)
	repo, err := a.GetRepo(context.Background(), "acme", "widget")
	require.NoError(t, err)
	require.Equal(t, 42, repo.Stars)
	require.True(t, repo.IsArchived)
	require.Equal(t, "mit", repo.LicenseKey())
	require.Equal(t, []string{"cli", "go"}, repo.Topics)
	require.Equal(t, "acme", repo.Owner)
	require.Equal(t, "widget", repo.Name)
}

func TestGetRepoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	_, err := a.GetRepo(context.Background(), "nobody", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/topics", r.URL.Path)
		require.Equal(t, "application/vnd.github.mercy-preview+json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"names": ["cli", "go"]}`))
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	topics, err := a.GetTopics(context.Background(), "acme", "widget")
	require.NoError(t, err)
	require.Equal(t, []string{"cli", "go"}, topics)
}

func TestGetReleasesParsesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/releases", r.URL.Path)
		require.Equal(t, "5", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`[{"tag_name": "v1.2.0", "name": "v1.2.0", "published_at": "2026-01-02T00:00:00Z", "html_url": "https://github.com/acme/widget/releases/tag/v1.2.0"}]`))
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	releases, err := a.GetReleases(context.Background(), "acme", "widget", 5)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Equal(t, "v1.2.0", releases[0].TagName)
}

func TestGetReleasesNotFoundReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	releases, err := a.GetReleases(context.Background(), "acme", "widget", 0)
	require.NoError(t, err)
	require.Nil(t, releases)
}

func TestGetPullRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/pulls", r.URL.Path)
		_, _ = w.Write([]byte(`[{"number": 7, "title": "fix bug", "state": "closed", "merged_at": "2026-01-02T00:00:00Z"}]`))
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	prs, err := a.GetPullRequests(context.Background(), "acme", "widget", 0)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	require.Equal(t, 7, prs[0].Number)
}

func TestGetIssuesFlagsPullRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/issues", r.URL.Path)
		_, _ = w.Write([]byte(`[{"number": 1, "title": "bug report"}, {"number": 2, "title": "a pr", "pull_request": {}}]`))
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	issues, err := a.GetIssues(context.Background(), "acme", "widget", 0)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	require.False(t, issues[0].IsPullRequest())
	require.True(t, issues[1].IsPullRequest())
}

func TestGetWorkflowRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/actions/runs", r.URL.Path)
		_, _ = w.Write([]byte(`{"workflow_runs": [{"id": 99, "name": "CI", "status": "completed", "conclusion": "success"}]}`))
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	runs, err := a.GetWorkflowRuns(context.Background(), "acme", "widget", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.EqualValues(t, 99, runs[0].ID)
}

func TestGetPagesInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/pages", r.URL.Path)
		_, _ = w.Write([]byte(`{"html_url": "https://acme.github.io/widget/", "status": "built"}`))
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	info, err := a.GetPagesInfo(context.Background(), "acme", "widget")
	require.NoError(t, err)
	require.Equal(t, "https://acme.github.io/widget/", info.URL)
}

func TestGetPagesInfoDisabledReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New("").WithBaseURL(srv.URL)
	info, err := a.GetPagesInfo(context.Background(), "acme", "widget")
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestParseOwnerName(t *testing.T) {
	cases := []struct {
		in          string
		owner, name string
		ok          bool
	}{
		{"acme/widget", "acme", "widget", true},
		{"https://github.com/acme/widget", "acme", "widget", true},
		{"https://github.com/acme/widget.git", "acme", "widget", true},
		{"git@github.com:acme/widget.git", "acme", "widget", true},
		{"nonsense", "", "", false},
	}
	for _, c := range cases {
		owner, name, ok := ParseOwnerName(c.in)
		require.Equal(t, c.ok, ok, c.in)
		if ok {
			require.Equal(t, c.owner, owner, c.in)
			require.Equal(t, c.name, name, c.in)
		}
	}
}
