// Package registry adapts a package-registry API to the enrichment data
// repository refresh needs: current version and publish state. PyPI and
// CRAN are the concrete instances. Neither adapter fetches download counts;
// Package.DownloadsTotal is always zero.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gdesouza/repoindex/internal/remote"
)

// Package mirrors the subset of a PyPI project's JSON API response
// repoindex persists into the publications table.
type Package struct {
	Name           string
	CurrentVersion string
	Summary        string
	ProjectURL     string
	DownloadsTotal int
}

// info is the shape of PyPI's /pypi/<name>/json endpoint, trimmed to the
// fields Package needs.
type info struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Summary string `json:"summary"`
		ProjectURLs struct {
			Homepage string `json:"Homepage"`
		} `json:"project_urls"`
	} `json:"info"`
}

// Adapter fetches package metadata from a PyPI-compatible JSON API.
type Adapter struct {
	client  *remote.Client
	baseURL string
}

// New builds an Adapter pointed at the public PyPI JSON API.
func New() *Adapter {
	return &Adapter{client: remote.NewClient(), baseURL: "https://pypi.org/pypi"}
}

// WithBaseURL overrides the API base URL, for pointing the adapter at a
// test double instead of the public PyPI API.
func (a *Adapter) WithBaseURL(url string) *Adapter {
	a.baseURL = url
	return a
}

// ErrNotFound is returned when the registry has no record of name.
var ErrNotFound = fmt.Errorf("package not found")

// Fetch retrieves the current published metadata for a package name.
func (a *Adapter) Fetch(ctx context.Context, name string) (*Package, error) {
	url := fmt.Sprintf("%s/%s/json", a.baseURL, name)

	resp, err := a.client.Do(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, fmt.Errorf("registry: %s: %w", name, ErrNotFound)
	}

	var doc info
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("registry: decode response for %s: %w", name, err)
	}

	return &Package{
		Name:           doc.Info.Name,
		CurrentVersion: doc.Info.Version,
		Summary:        doc.Info.Summary,
		ProjectURL:     doc.Info.ProjectURLs.Homepage,
	}, nil
}

// Published reports whether the registry returned a current version for
// the package — the publish-state signal the refresh pipeline records into
// publications.published.
func (p *Package) Published() bool {
	return p != nil && p.CurrentVersion != ""
}

// DetectPackageName guesses a registry project name for a repository from
// its directory name, the common convention a pure-name-based lookup
// relies on.
func DetectPackageName(repoName string) string {
	return repoName
}
