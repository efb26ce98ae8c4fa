package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertRepoIsIdempotentByPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repo := &Repository{Name: "a", Path: "/r/a", ScannedAt: time.Now().UTC(), GitIndexMtime: 1.0}
	id1, err := s.UpsertRepo(ctx, repo)
	require.NoError(t, err)

	repo.GitIndexMtime = 2.0
	id2, err := s.UpsertRepo(ctx, repo)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	all, err := s.AllRepos(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 2.0, all[0].GitIndexMtime)
}

func TestInsertEventsDeduplicatesByEventID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repoID, err := s.UpsertRepo(ctx, &Repository{Name: "a", Path: "/r/a", ScannedAt: time.Now().UTC()})
	require.NoError(t, err)

	event := &Event{
		RepoID:    repoID,
		EventID:   "git_tag_a_v1.0.0",
		Type:      "git_tag",
		Timestamp: time.Now().UTC(),
	}

	n, err := s.InsertEvents(ctx, []*Event{event})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.InsertEvents(ctx, []*Event{event})
	require.NoError(t, err)
	require.Equal(t, 0, n, "repeated insert of the same event ID must be a no-op")

	events, err := s.EventsSince(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestCleanupMissingReposRemovesStaleRowsAndCascadesEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	keepID, err := s.UpsertRepo(ctx, &Repository{Name: "keep", Path: "/r/keep", ScannedAt: time.Now().UTC()})
	require.NoError(t, err)
	goneID, err := s.UpsertRepo(ctx, &Repository{Name: "gone", Path: "/r/gone", ScannedAt: time.Now().UTC()})
	require.NoError(t, err)

	_, err = s.InsertEvents(ctx, []*Event{
		{RepoID: goneID, EventID: "commit_gone_deadbeef", Type: "commit", Timestamp: time.Now().UTC()},
	})
	require.NoError(t, err)

	removed, err := s.CleanupMissingRepos(ctx, map[string]bool{"/r/keep": true})
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	all, err := s.AllRepos(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, keepID, all[0].ID)

	events, err := s.EventsSince(ctx, EventFilter{})
	require.NoError(t, err)
	require.Empty(t, events, "cascade delete must remove events of the deleted repo")
}

func TestRecordScanErrorKeepsOnlyLatestPerPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordScanError(ctx, "/r/a", "first failure"))
	require.NoError(t, s.RecordScanError(ctx, "/r/a", "second failure"))

	errs, err := s.ScanErrors(ctx)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	require.Equal(t, "second failure", errs[0].Message)
}

func TestOpenRejectsSchemaFromTheFuture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	s, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.db.ExecContext(ctx, "INSERT OR REPLACE INTO _schema_info (version, description) VALUES (?, ?)", 999, "from the future")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.ErrorIs(t, err, ErrSchemaFromFuture)
}
