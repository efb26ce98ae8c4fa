package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("REPOINDEX_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.Enrichment.GitHub)
	require.Empty(t, cfg.Roots)
}

func TestLoadFromExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repoindex.yaml")
	contents := `
roots:
  - ~/code
  - ~/work/**
exclude:
  - scratch
database:
  path: /tmp/custom-index.db
enrichment:
  github: true
  pypi: true
  orcid: "0000-0001-6443-9897"
views:
  active:
    predicate: "updated_within('30d')"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	t.Setenv("REPOINDEX_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"~/code", "~/work/**"}, cfg.Roots)
	require.True(t, cfg.Enrichment.GitHub)
	require.True(t, cfg.Enrichment.PyPI)
	require.Equal(t, "0000-0001-6443-9897", cfg.Enrichment.ORCID)
	require.Equal(t, "/tmp/custom-index.db", cfg.Database.Path)
	require.Equal(t, "updated_within('30d')", cfg.Views["active"].Predicate)
}

func TestEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("REPOINDEX_CONFIG", "")
	t.Setenv("REPOINDEX_ENRICHMENT_GITHUB", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.Enrichment.GitHub)
}
