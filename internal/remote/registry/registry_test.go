package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchParsesPyPIPackage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/widget/json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"info":{"name":"widget","version":"1.2.3","summary":"a widget",
			"project_urls":{"Homepage":"https://widget.example"}}}`))
	}))
	defer srv.Close()

	a := New().WithBaseURL(srv.URL)
	pkg, err := a.Fetch(context.Background(), "widget")
	require.NoError(t, err)
	require.Equal(t, "1.2.3", pkg.CurrentVersion)
	require.True(t, pkg.Published())
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New().WithBaseURL(srv.URL)
	_, err := a.Fetch(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPublishedFalseForNilOrEmptyVersion(t *testing.T) {
	var pkg *Package
	require.False(t, pkg.Published())
	pkg = &Package{Name: "widget"}
	require.False(t, pkg.Published())
}

func TestDetectPackageNameUsesRepoBasename(t *testing.T) {
	require.Equal(t, "widget", DetectPackageName("widget"))
}

func TestCRANFetchParsesPackage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ggplot2", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Package":"ggplot2","Version":"3.5.0","Title":"Grammar of Graphics","URL":"https://cran.r-project.org"}`))
	}))
	defer srv.Close()

	a := NewCRAN().WithBaseURL(srv.URL)
	pkg, err := a.Fetch(context.Background(), "ggplot2")
	require.NoError(t, err)
	require.Equal(t, "3.5.0", pkg.CurrentVersion)
	require.Equal(t, "Grammar of Graphics", pkg.Summary)
}

func TestCRANFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewCRAN().WithBaseURL(srv.URL)
	_, err := a.Fetch(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}
