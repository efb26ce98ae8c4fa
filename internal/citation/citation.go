// Package citation parses repository citation metadata: CITATION.cff
// (CFF 1.2.0, YAML) and .zenodo.json (Zenodo deposit metadata, JSON).
// CITATION.bib is detected but not parsed — BibTeX needs a real grammar,
// not a quick regex.
package citation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gdesouza/repoindex/internal/store"
)

// KnownFiles lists the citation file names checked, in the priority order
// a repository's metadata should be read: CFF first as the de facto
// standard, then the Zenodo-specific format, then BibTeX (detected only).
var KnownFiles = []string{"CITATION.cff", ".zenodo.json", "CITATION.bib"}

// Metadata is the normalized result of parsing any supported citation file.
type Metadata struct {
	File       string
	DOI        string
	Title      string
	Authors    []store.CitationAuthor
	Version    string
	Repository string
	License    string
}

// Parse locates the first known citation file in repoPath and parses it.
// It returns (nil, nil) if no citation file is present or a present file
// could not be parsed — citation metadata is always best-effort and never
// fails a repository refresh.
func Parse(repoPath string) (*Metadata, error) {
	for _, name := range KnownFiles {
		path := filepath.Join(repoPath, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var m *Metadata
		var err error
		switch name {
		case "CITATION.cff":
			m, err = parseCFF(path)
		case ".zenodo.json":
			m, err = parseZenodoJSON(path)
		case "CITATION.bib":
			return nil, nil
		}
		if m != nil {
			m.File = name
		}
		return m, err
	}
	return nil, nil
}

type cffDoc struct {
	Title          string        `yaml:"title"`
	Version        string        `yaml:"version"`
	RepositoryCode string        `yaml:"repository-code"`
	License        string        `yaml:"license"`
	DOI            string        `yaml:"doi"`
	Authors        []cffAuthor   `yaml:"authors"`
	Identifiers    []cffIdentity `yaml:"identifiers"`
}

type cffAuthor struct {
	FamilyNames string `yaml:"family-names"`
	GivenNames  string `yaml:"given-names"`
	Name        string `yaml:"name"`
	ORCID       string `yaml:"orcid"`
	Affiliation string `yaml:"affiliation"`
	Email       string `yaml:"email"`
}

type cffIdentity struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

func parseCFF(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var doc cffDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil // malformed citation metadata is skipped, not fatal
	}

	doi := ""
	for _, id := range doc.Identifiers {
		if id.Type == "doi" {
			doi = id.Value
			break
		}
	}
	if doi == "" {
		doi = doc.DOI
	}

	return &Metadata{
		DOI:        doi,
		Title:      doc.Title,
		Authors:    parseCFFAuthors(doc.Authors),
		Version:    doc.Version,
		Repository: doc.RepositoryCode,
		License:    doc.License,
	}, nil
}

func parseCFFAuthors(authors []cffAuthor) []store.CitationAuthor {
	var out []store.CitationAuthor
	for _, a := range authors {
		name := ""
		switch {
		case a.FamilyNames != "" || a.GivenNames != "":
			parts := make([]string, 0, 2)
			if a.GivenNames != "" {
				parts = append(parts, a.GivenNames)
			}
			if a.FamilyNames != "" {
				parts = append(parts, a.FamilyNames)
			}
			name = strings.Join(parts, " ")
		case a.Name != "":
			name = a.Name
		}
		if name == "" {
			continue
		}
		out = append(out, store.CitationAuthor{
			Name:        name,
			ORCID:       a.ORCID,
			Affiliation: a.Affiliation,
			Email:       a.Email,
		})
	}
	return out
}

type zenodoDoc struct {
	DOI                string           `json:"doi"`
	Title              string           `json:"title"`
	Version            string           `json:"version"`
	Creators           []zenodoCreator  `json:"creators"`
	License            json.RawMessage  `json:"license"`
	RelatedIdentifiers []zenodoRelation `json:"related_identifiers"`
}

type zenodoCreator struct {
	Name        string `json:"name"`
	ORCID       string `json:"orcid"`
	Affiliation string `json:"affiliation"`
}

type zenodoRelation struct {
	Relation   string `json:"relation"`
	Identifier string `json:"identifier"`
}

func parseZenodoJSON(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var doc zenodoDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil
	}

	repository := ""
	for _, rel := range doc.RelatedIdentifiers {
		if rel.Relation == "isSupplementTo" || rel.Relation == "isPartOf" {
			repository = rel.Identifier
			break
		}
	}

	return &Metadata{
		DOI:        doc.DOI,
		Title:      doc.Title,
		Authors:    parseZenodoAuthors(doc.Creators),
		Version:    doc.Version,
		Repository: repository,
		License:    parseZenodoLicense(doc.License),
	}, nil
}

func parseZenodoAuthors(creators []zenodoCreator) []store.CitationAuthor {
	var out []store.CitationAuthor
	for _, c := range creators {
		if c.Name == "" {
			continue
		}
		out = append(out, store.CitationAuthor{
			Name:        c.Name,
			ORCID:       c.ORCID,
			Affiliation: c.Affiliation,
		})
	}
	return out
}

// parseZenodoLicense handles the two shapes the Zenodo format allows: a
// bare string, or an object with an "id" field.
func parseZenodoLicense(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asObject struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return asObject.ID
	}
	return ""
}
