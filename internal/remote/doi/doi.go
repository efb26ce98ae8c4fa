// Package doi adapts a DOI-registry API to the citation enrichment
// repository refresh needs, using Zenodo's public REST API as the concrete
// instance. One ORCID search covers every local repository in a refresh;
// matching prefers the concept DOI and normalizes GitHub URLs before
// comparing.
package doi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gdesouza/repoindex/internal/remote"
)

const pageSize = 25

// Record is one Zenodo deposit, trimmed to the fields the refresh pipeline
// needs to match a local repository and populate citation_doi/publications.
type Record struct {
	DOI        string
	ConceptDOI string
	Title      string
	Version    string
	URL        string
	GitHubURL  string
}

// PreferredDOI returns the concept DOI when present — it always resolves
// to the latest version of a deposit — falling back to the per-version DOI.
func (r Record) PreferredDOI() string {
	if r.ConceptDOI != "" {
		return r.ConceptDOI
	}
	return r.DOI
}

type searchResponse struct {
	Hits struct {
		Total int `json:"total"`
		Hits  []struct {
			ID         int    `json:"id"`
			DOI        string `json:"doi"`
			ConceptDOI string `json:"conceptdoi"`
			Metadata   struct {
				Title              string `json:"title"`
				Version            string `json:"version"`
				RelatedIdentifiers []struct {
					Identifier string `json:"identifier"`
				} `json:"related_identifiers"`
			} `json:"metadata"`
		} `json:"hits"`
	} `json:"hits"`
}

// Adapter queries a Zenodo-shaped public records API. No authentication is
// required for open-access records.
type Adapter struct {
	client  *remote.Client
	baseURL string
}

// New builds an Adapter pointed at the public Zenodo records API.
func New() *Adapter {
	return &Adapter{client: remote.NewClient(), baseURL: "https://zenodo.org/api/records"}
}

// WithBaseURL overrides the API base URL, for pointing the adapter at a
// test double instead of the public Zenodo API.
func (a *Adapter) WithBaseURL(url string) *Adapter {
	a.baseURL = url
	return a
}

// SearchByORCID returns every record Zenodo attributes to orcid, paginating
// internally so callers make exactly one logical query per refresh.
func (a *Adapter) SearchByORCID(ctx context.Context, orcid string) ([]Record, error) {
	var out []Record
	page := 1

	for {
		url := fmt.Sprintf("%s?q=%s&size=%d&page=%d&sort=-mostrecent",
			a.baseURL, queryParam(orcid), pageSize, page)

		resp, err := a.client.Do(ctx, url, nil)
		if err != nil {
			return out, fmt.Errorf("doi: search orcid %s: %w", orcid, err)
		}

		var doc searchResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&doc)
		resp.Body.Close()
		if decodeErr != nil {
			return out, fmt.Errorf("doi: decode response for orcid %s: %w", orcid, decodeErr)
		}

		if len(doc.Hits.Hits) == 0 {
			break
		}
		for _, hit := range doc.Hits.Hits {
			if hit.DOI == "" {
				continue
			}
			var githubURL string
			for _, rel := range hit.Metadata.RelatedIdentifiers {
				if strings.Contains(rel.Identifier, "github.com") {
					githubURL = NormalizeGitHubURL(rel.Identifier)
					break
				}
			}
			out = append(out, Record{
				DOI:        hit.DOI,
				ConceptDOI: hit.ConceptDOI,
				Title:      hit.Metadata.Title,
				Version:    hit.Metadata.Version,
				URL:        fmt.Sprintf("https://zenodo.org/records/%d", hit.ID),
				GitHubURL:  githubURL,
			})
		}

		if page*pageSize >= doc.Hits.Total {
			break
		}
		page++
	}

	return out, nil
}

var (
	sshPrefixRe = regexp.MustCompile(`^git@github\.com:`)
	dotGitRe    = regexp.MustCompile(`\.git$`)
	ownerRepoRe = regexp.MustCompile(`(?i)(https?://github\.com/[^/]+/[^/]+)`)
)

// NormalizeGitHubURL reduces a GitHub URL of any shape (SSH remote,
// tree/blob sub-path, trailing .git) down to "https://github.com/owner/repo"
// in lowercase, so it can be compared directly against a local repository's
// own normalized remote URL.
func NormalizeGitHubURL(url string) string {
	url = sshPrefixRe.ReplaceAllString(url, "https://github.com/")
	url = dotGitRe.ReplaceAllString(url, "")
	if m := ownerRepoRe.FindStringSubmatch(url); m != nil {
		return strings.ToLower(m[1])
	}
	return strings.ToLower(url)
}

func queryParam(orcid string) string {
	return url.QueryEscape("creators.orcid:" + orcid)
}
