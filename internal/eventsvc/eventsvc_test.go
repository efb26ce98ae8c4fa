package eventsvc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gdesouza/repoindex/internal/events"
	"github.com/gdesouza/repoindex/internal/store"
)

func initRepoWithCommit(t *testing.T, dir, message string) {
	t.Helper()
	r, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := r.Worktree()
	require.NoError(t, err)
	file := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(file, []byte(message), 0o644))
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
	_, err = wt.Commit(message, &git.CommitOptions{Author: sig})
	require.NoError(t, err)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScanPersistsDeduplicatedEvents(t *testing.T) {
	ctx := context.Background()
	repoDir := t.TempDir()
	initRepoWithCommit(t, repoDir, "first commit")

	st := openTestStore(t)
	_, err := st.UpsertRepo(ctx, &store.Repository{Path: repoDir, Name: "widget"})
	require.NoError(t, err)

	svc := New(st, zerolog.Nop())
	added, err := svc.Scan(ctx, events.ScanOptions{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, added, 1)

	addedAgain, err := svc.Scan(ctx, events.ScanOptions{})
	require.NoError(t, err)
	require.Zero(t, addedAgain)
}

func TestRecentDefaultsToSevenDays(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	svc := New(st, zerolog.Nop())

	out, err := svc.Recent(ctx, 0, nil)
	require.NoError(t, err)
	require.Empty(t, out)

	repoID, err := st.UpsertRepo(ctx, &store.Repository{Path: "/r/widget", Name: "widget"})
	require.NoError(t, err)
	now := time.Now().UTC()
	_, err = st.InsertEvents(ctx, []*store.Event{
		{RepoID: repoID, EventID: "commit_widget_aaaaaaaa", Type: events.TypeCommit, Timestamp: now.AddDate(0, 0, -3)},
		{RepoID: repoID, EventID: "commit_widget_bbbbbbbb", Type: events.TypeCommit, Timestamp: now.AddDate(0, 0, -10)},
	})
	require.NoError(t, err)

	out, err = svc.Recent(ctx, 0, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "commit_widget_aaaaaaaa", out[0].EventID)
}
