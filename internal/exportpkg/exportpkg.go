// Package exportpkg writes the ECHO export format: a self-contained
// directory snapshot of the store (index.db, repos.jsonl, optional
// events.jsonl, README.md, manifest.json) suitable for re-import via the
// sql command, built for archival and cross-machine sharing.
package exportpkg

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gdesouza/repoindex/internal/store"
)

// EchoVersion is the ECHO format's own version, independent of the
// toolkit's version — bump it only when the on-disk layout changes.
const EchoVersion = "1.0"

// ToolkitVersion is stamped into manifest.json's toolkit_version field.
const ToolkitVersion = "0.1.0"

// Options configures one Export call.
type Options struct {
	IncludeEvents bool
	Repos         []*store.Repository
	Events        []*store.EventWithRepo
	SourceDBPath  string
}

// Manifest is the self-describing contents of manifest.json.
type Manifest struct {
	EchoVersion    string                 `json:"echo_version"`
	Toolkit        string                 `json:"toolkit"`
	ToolkitVersion string                 `json:"toolkit_version"`
	ExportedAt     time.Time              `json:"exported_at"`
	Contents       map[string]FileEntry   `json:"contents"`
	Stats          Stats                  `json:"stats"`
	Options        map[string]interface{} `json:"options"`
}

// FileEntry describes one file inside the export directory.
type FileEntry struct {
	Type        string `json:"type"`
	Count       *int   `json:"count,omitempty"`
	Description string `json:"description"`
}

// Stats summarizes the exported repository set.
type Stats struct {
	TotalRepos int            `json:"total_repos"`
	Languages  map[string]int `json:"languages"`
}

// Export writes dir as a complete ECHO export of opts. dir is created if
// missing; an existing directory is populated without being cleared first,
// matching a "re-export refreshes the snapshot in place" workflow.
func Export(dir string, opts Options) (Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("exportpkg: create %s: %w", dir, err)
	}

	if err := copyFile(opts.SourceDBPath, filepath.Join(dir, "index.db")); err != nil {
		return Manifest{}, fmt.Errorf("exportpkg: copy store: %w", err)
	}

	repoCount, err := writeJSONL(filepath.Join(dir, "repos.jsonl"), opts.Repos)
	if err != nil {
		return Manifest{}, fmt.Errorf("exportpkg: write repos.jsonl: %w", err)
	}

	contents := map[string]FileEntry{
		"index.db": {Type: "sqlite", Description: "full relational snapshot, importable via the sql command"},
		"repos.jsonl": {
			Type: "jsonl", Count: intPtr(repoCount),
			Description: "one JSON object per repository, null fields dropped",
		},
	}

	var eventCount int
	if opts.IncludeEvents {
		records := make([]store.EventRecord, 0, len(opts.Events))
		for _, e := range opts.Events {
			records = append(records, e.ToRecord())
		}
		eventCount, err = writeJSONL(filepath.Join(dir, "events.jsonl"), records)
		if err != nil {
			return Manifest{}, fmt.Errorf("exportpkg: write events.jsonl: %w", err)
		}
		contents["events.jsonl"] = FileEntry{
			Type: "jsonl", Count: intPtr(eventCount),
			Description: "one JSON object per event, null fields dropped",
		}
	}

	languages := map[string]int{}
	for _, r := range opts.Repos {
		if r.Language != "" {
			languages[r.Language]++
		}
	}

	manifest := Manifest{
		EchoVersion:    EchoVersion,
		Toolkit:        "repoindex",
		ToolkitVersion: ToolkitVersion,
		ExportedAt:     time.Now().UTC(),
		Contents:       contents,
		Stats:          Stats{TotalRepos: len(opts.Repos), Languages: languages},
		Options: map[string]interface{}{
			"include_events": opts.IncludeEvents,
		},
	}
	contents["README.md"] = FileEntry{Type: "markdown", Description: "human-readable summary of this export"}
	contents["manifest.json"] = FileEntry{Type: "json", Description: "self-describing manifest for this export"}

	if err := writeManifest(filepath.Join(dir, "manifest.json"), manifest); err != nil {
		return Manifest{}, fmt.Errorf("exportpkg: write manifest.json: %w", err)
	}
	if err := writeReadme(filepath.Join(dir, "README.md"), manifest); err != nil {
		return Manifest{}, fmt.Errorf("exportpkg: write README.md: %w", err)
	}

	return manifest, nil
}

func intPtr(n int) *int { return &n }

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// writeJSONL marshals each item of items (a []*store.Repository or
// []store.EventRecord) as one compact JSON line with encoding/json, where
// the types' omitempty tags drop empty fields and JSON-valued columns are
// already typed slices, and returns how many lines were written.
func writeJSONL[T any](path string, items []T) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

func writeManifest(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func writeReadme(path string, m Manifest) error {
	body := fmt.Sprintf(`# repoindex export

Generated %s by repoindex %s (ECHO format %s).

Contains %d repositories. Open index.db with the repoindex sql command,
or read repos.jsonl/events.jsonl directly — both are one JSON object per
line, with null fields omitted.

See manifest.json for the full file listing and export options.
`, m.ExportedAt.Format(time.RFC3339), m.ToolkitVersion, m.EchoVersion, m.Stats.TotalRepos)

	return os.WriteFile(path, []byte(body), 0o644)
}
