package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gdesouza/repoindex/internal/store"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFilterByTagsLangAndTagPatterns(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	pyID, err := st.UpsertRepo(ctx, &store.Repository{Path: "/r/py", Name: "py", Language: "Python"})
	require.NoError(t, err)
	goID, err := st.UpsertRepo(ctx, &store.Repository{Path: "/r/go", Name: "go", Language: "Go"})
	require.NoError(t, err)

	require.NoError(t, st.ReplaceTags(ctx, pyID, store.TagSourceExplicit, []string{"work/backend"}))
	require.NoError(t, st.ReplaceTags(ctx, goID, store.TagSourceExplicit, []string{"work/frontend"}))

	svc := New(st, nil)

	out, err := svc.FilterByTags(ctx, []string{"lang:python"}, true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "py", out[0].Name)

	out, err = svc.FilterByTags(ctx, []string{"tag:work/*"}, true)
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = svc.FilterByTags(ctx, []string{"lang:python", "tag:work/frontend"}, true)
	require.NoError(t, err)
	require.Empty(t, out)

	out, err = svc.FilterByTags(ctx, []string{"lang:python", "tag:work/frontend"}, false)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestFilterByTagsNoPatternsReturnsAll(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	_, err := st.UpsertRepo(ctx, &store.Repository{Path: "/r/a", Name: "a"})
	require.NoError(t, err)

	svc := New(st, nil)
	out, err := svc.FilterByTags(ctx, nil, true)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestGlobMatch(t *testing.T) {
	require.True(t, globMatch("work/*", "work/backend"))
	require.False(t, globMatch("work/*", "personal/backend"))
	require.True(t, globMatch("exact", "exact"))
	require.False(t, globMatch("exact", "other"))
}

func TestQueryResolvesViews(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	_, err := st.UpsertRepo(ctx, &store.Repository{Path: "/r/a", Name: "a", Language: "Go"})
	require.NoError(t, err)

	svc := New(st, map[string]string{"golang": "language == 'Go'"})
	repos, err := svc.Query(ctx, "@golang")
	require.NoError(t, err)
	require.Len(t, repos, 1)
}
