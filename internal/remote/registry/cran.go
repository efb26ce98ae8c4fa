package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gdesouza/repoindex/internal/remote"
)

// crandbEntry is the shape of crandb.r-pkg.org's per-package document,
// trimmed to the fields Package needs.
type crandbEntry struct {
	Package string `json:"Package"`
	Version string `json:"Version"`
	Title   string `json:"Title"`
	URL     string `json:"URL"`
}

// CRANAdapter fetches package metadata from the CRAN metadata database,
// the registry adapter for R packages.
type CRANAdapter struct {
	client  *remote.Client
	baseURL string
}

// NewCRAN builds a CRANAdapter pointed at the public crandb API.
func NewCRAN() *CRANAdapter {
	return &CRANAdapter{client: remote.NewClient(), baseURL: "https://crandb.r-pkg.org"}
}

// WithBaseURL overrides the API base URL, for pointing the adapter at a
// test double instead of the public crandb API.
func (a *CRANAdapter) WithBaseURL(url string) *CRANAdapter {
	a.baseURL = url
	return a
}

// Fetch retrieves the current published metadata for an R package name.
func (a *CRANAdapter) Fetch(ctx context.Context, name string) (*Package, error) {
	url := fmt.Sprintf("%s/%s", a.baseURL, name)

	resp, err := a.client.Do(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: cran fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, fmt.Errorf("registry: cran %s: %w", name, ErrNotFound)
	}

	var doc crandbEntry
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("registry: decode cran response for %s: %w", name, err)
	}

	return &Package{
		Name:           doc.Package,
		CurrentVersion: doc.Version,
		Summary:        doc.Title,
		ProjectURL:     doc.URL,
	}, nil
}
