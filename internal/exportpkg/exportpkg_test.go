package exportpkg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gdesouza/repoindex/internal/store"
)

func TestExportWritesAllFiles(t *testing.T) {
	src := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(src, []byte("fake sqlite contents"), 0o644))

	dir := filepath.Join(t.TempDir(), "out")
	repos := []*store.Repository{
		{ID: 1, Name: "repoindex", Path: "/repos/repoindex", Language: "Go", ScannedAt: time.Now()},
		{ID: 2, Name: "other", Path: "/repos/other", Language: "Python", ScannedAt: time.Now()},
	}

	manifest, err := Export(dir, Options{Repos: repos, SourceDBPath: src})
	require.NoError(t, err)

	for _, name := range []string{"index.db", "repos.jsonl", "README.md", "manifest.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to exist", name)
	}
	_, err = os.Stat(filepath.Join(dir, "events.jsonl"))
	require.True(t, os.IsNotExist(err), "events.jsonl should not exist when IncludeEvents is false")

	require.Equal(t, 2, manifest.Stats.TotalRepos)
	require.Equal(t, 1, manifest.Stats.Languages["Go"])

	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var decoded Manifest
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, EchoVersion, decoded.EchoVersion)
	require.Contains(t, decoded.Contents, "repos.jsonl")
}

func TestExportIncludesEventsWhenRequested(t *testing.T) {
	src := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	dir := filepath.Join(t.TempDir(), "out")
	_, err := Export(dir, Options{
		SourceDBPath:  src,
		IncludeEvents: true,
		Events: []*store.EventWithRepo{{
			Event:    store.Event{ID: 1, RepoID: 1, EventID: "commit_x_abc", Type: "commit"},
			RepoName: "repoindex",
			RepoPath: "/repos/repoindex",
		}},
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
}
