// Package eventsvc implements the event service facade: on-demand scanning
// bound to stored repositories, a recency query over already-persisted
// events, and a watch loop that persists newly observed events as they're
// found.
package eventsvc

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gdesouza/repoindex/internal/events"
	"github.com/gdesouza/repoindex/internal/store"
)

// Service binds the stateless scanner to a store, so callers don't have to
// thread repo lookups and event persistence through every call site.
type Service struct {
	Store *store.Store
	Log   zerolog.Logger
}

// New builds a Service over an already-open store.
func New(st *store.Store, log zerolog.Logger) *Service {
	return &Service{Store: st, Log: log}
}

// Scan replays git history for every stored repository, persists the
// derived events (deduplicated by the store's INSERT OR IGNORE), and
// returns how many new rows were written.
func (s *Service) Scan(ctx context.Context, opts events.ScanOptions) (int, error) {
	repos, err := s.Store.AllRepos(ctx)
	if err != nil {
		return 0, err
	}

	byPath := make(map[string]int64, len(repos))
	var refs []events.RepoRef
	for _, r := range repos {
		refs = append(refs, events.RepoRef{Name: r.Name, Path: r.Path})
		byPath[r.Path] = r.ID
	}

	found, err := events.Scan(ctx, refs, opts)
	if err != nil {
		return 0, err
	}

	storeEvents := make([]*store.Event, 0, len(found))
	for _, e := range found {
		repoID, ok := byPath[pathForRepoName(refs, e.RepoName)]
		if !ok {
			continue
		}
		storeEvents = append(storeEvents, e.ToStoreEvent(repoID))
	}
	return s.Store.InsertEvents(ctx, storeEvents)
}

func pathForRepoName(refs []events.RepoRef, name string) string {
	for _, r := range refs {
		if r.Name == name {
			return r.Path
		}
	}
	return ""
}

// Recent returns already-persisted events from the last `days` days,
// optionally restricted to types, newest first. Unlike Scan it is
// read-only: nothing is replayed or persisted.
func (s *Service) Recent(ctx context.Context, days int, types []string) ([]*store.EventWithRepo, error) {
	if days <= 0 {
		days = 7
	}
	return s.Store.EventsSinceJoined(ctx, store.EventFilter{
		Since: time.Now().AddDate(0, 0, -days),
		Types: types,
	})
}

// Watch scans every interval for stored repositories, persisting and
// yielding each newly observed event to onEvent until ctx is cancelled.
func (s *Service) Watch(ctx context.Context, interval time.Duration, types []string, onEvent func(events.Raw)) error {
	repos, err := s.Store.AllRepos(ctx)
	if err != nil {
		return err
	}

	byPath := make(map[string]int64, len(repos))
	var refs []events.RepoRef
	for _, r := range repos {
		refs = append(refs, events.RepoRef{Name: r.Name, Path: r.Path})
		byPath[r.Path] = r.ID
	}

	watcher := events.NewWatcher(refs, events.ScanOptions{Types: types}, interval, s.Log)
	return watcher.Watch(ctx, func(e events.Raw) {
		if repoID, ok := byPath[pathForRepoName(refs, e.RepoName)]; ok {
			if _, err := s.Store.InsertEvents(ctx, []*store.Event{e.ToStoreEvent(repoID)}); err != nil {
				s.Log.Warn().Err(err).Str("event", e.ID()).Msg("watch: persist failed")
			}
		}
		onEvent(e)
	})
}
