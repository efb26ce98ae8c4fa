package doi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchByORCIDPaginatesAndExtractsGitHubURL(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"hits":{"total":1,"hits":[
				{"id":123,"doi":"10.5281/zenodo.123","conceptdoi":"10.5281/zenodo.concept",
				 "metadata":{"title":"Widget","version":"1.0.0",
				   "related_identifiers":[{"identifier":"https://github.com/acme/widget"}]}}
			]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"hits":{"total":1,"hits":[]}}`))
	}))
	defer srv.Close()

	a := New().WithBaseURL(srv.URL)
	recs, err := a.SearchByORCID(context.Background(), "0000-0000-0000-0000")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "10.5281/zenodo.concept", recs[0].PreferredDOI())
	require.Equal(t, "https://github.com/acme/widget", recs[0].GitHubURL)
	require.Equal(t, 1, calls)
}

func TestSearchByORCIDSkipsHitsWithoutDOI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"total":1,"hits":[{"id":1,"doi":"","metadata":{"title":"x"}}]}}`))
	}))
	defer srv.Close()

	a := New().WithBaseURL(srv.URL)
	recs, err := a.SearchByORCID(context.Background(), "orcid")
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestPreferredDOIFallsBackWithoutConceptDOI(t *testing.T) {
	r := Record{DOI: "10.5281/zenodo.5"}
	require.Equal(t, "10.5281/zenodo.5", r.PreferredDOI())
}

func TestNormalizeGitHubURL(t *testing.T) {
	cases := map[string]string{
		"https://github.com/Acme/Widget":          "https://github.com/acme/widget",
		"git@github.com:Acme/Widget.git":          "https://github.com/acme/widget",
		"https://github.com/acme/widget/tree/main": "https://github.com/acme/widget",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeGitHubURL(in), in)
	}
}
