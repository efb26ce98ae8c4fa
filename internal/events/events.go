// Package events implements the stateless event scanner: it replays git
// history (and, opt-in, remote event sources) into stable, deduplicated
// event records keyed by a content-derived identity. Raw.ID is pure and
// content-derived, so repeated scans never produce a second row for the
// same underlying happening — deduplication happens at insert time via the
// store's INSERT OR IGNORE, not in this package.
package events

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gdesouza/repoindex/internal/gitutil"
	"github.com/gdesouza/repoindex/internal/store"
)

// Local event kinds, always scanned unless excluded by Types.
const (
	TypeCommit = "commit"
	TypeGitTag = "git_tag"
	TypeBranch = "branch"
	TypeMerge  = "merge"
)

// Remote event kinds. Scan never produces these; the refresh pipeline
// synthesizes them from the remote adapters, each behind its own opt-in
// flag in refresh.Options.
const (
	TypeGitHubRelease = "github_release"
	TypePR            = "pr"
	TypeIssue         = "issue"
	TypeWorkflowRun   = "workflow_run"
	TypePyPIPublish   = "pypi_publish"
	TypeCRANPublish   = "cran_publish"
)

// Raw is a scanner-produced event prior to being matched against a
// repo_id and inserted — the scanner has no store dependency, so it
// returns these and lets callers resolve repo_id.
type Raw struct {
	RepoName  string
	Type      string
	Timestamp time.Time
	Ref       string
	Message   string
	Author    string
	Data      map[string]any
}

// ID derives the stable, content-based identity for e. Unrecognized types
// get a generic type_repo_timestamp fallback.
func (e Raw) ID() string {
	switch e.Type {
	case TypeGitTag:
		return fmt.Sprintf("git_tag_%s_%s", e.RepoName, stringField(e.Data, "tag"))
	case TypeCommit:
		return fmt.Sprintf("commit_%s_%s", e.RepoName, shortHash(stringField(e.Data, "hash")))
	case TypeBranch:
		return fmt.Sprintf("branch_%s_%s_%s", e.RepoName, stringField(e.Data, "branch"), stringField(e.Data, "action"))
	case TypeMerge:
		return fmt.Sprintf("merge_%s_%s", e.RepoName, shortHash(stringField(e.Data, "hash")))
	case TypeGitHubRelease:
		return fmt.Sprintf("github_release_%s_%s", e.RepoName, stringField(e.Data, "tag"))
	case TypePR:
		return fmt.Sprintf("pr_%s_%v", e.RepoName, e.Data["number"])
	case TypeIssue:
		return fmt.Sprintf("issue_%s_%v", e.RepoName, e.Data["number"])
	case TypeWorkflowRun:
		return fmt.Sprintf("workflow_run_%s_%v", e.RepoName, e.Data["id"])
	case TypePyPIPublish:
		return fmt.Sprintf("pypi_publish_%s_%s", stringField(e.Data, "package"), stringField(e.Data, "version"))
	case TypeCRANPublish:
		return fmt.Sprintf("cran_publish_%s_%s", stringField(e.Data, "package"), stringField(e.Data, "version"))
	default:
		return fmt.Sprintf("%s_%s_%s", e.Type, e.RepoName, e.Timestamp.UTC().Format("20060102150405"))
	}
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return "unknown"
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	if h == "" {
		return "unknown"
	}
	return h
}

// ToStoreEvent converts a scanner Raw event into a store.Event bound to
// repoID, ready for InsertEvents.
func (e Raw) ToStoreEvent(repoID int64) *store.Event {
	return &store.Event{
		RepoID:    repoID,
		EventID:   e.ID(),
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Ref:       e.Ref,
		Message:   e.Message,
		Author:    e.Author,
		Metadata:  e.Data,
	}
}

// ScanOptions narrows what a Scan call produces.
type ScanOptions struct {
	// Types restricts the scan to this set; nil/empty means every local
	// kind (commit, git_tag, branch, merge).
	Types []string
	Since time.Time
	Until time.Time
	Limit int
}

func included(types []string, t string) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// RepoRef is the minimal identity the scanner needs for one repository.
type RepoRef struct {
	Name string
	Path string
}

// Scan replays local git history for each repo and returns the derived
// events, sorted by timestamp descending. Each call re-derives events from
// the authoritative source (go-git) — the scanner keeps no state of its
// own.
func Scan(ctx context.Context, repos []RepoRef, opts ScanOptions) ([]Raw, error) {
	since := opts.Since
	if since.IsZero() {
		since = time.Now().AddDate(0, 0, -90)
	}

	var all []Raw
	for _, repo := range repos {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		repoEvents, err := scanOne(repo, opts, since)
		if err != nil {
			continue // a single unreadable repo does not abort the scan
		}
		all = append(all, repoEvents...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })

	if !opts.Until.IsZero() {
		filtered := all[:0]
		for _, e := range all {
			if !e.Timestamp.After(opts.Until) {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}

	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

func scanOne(repo RepoRef, opts ScanOptions, since time.Time) ([]Raw, error) {
	g, err := gitutil.Open(repo.Path)
	if err != nil {
		return nil, err
	}

	var out []Raw

	if included(opts.Types, TypeCommit) || included(opts.Types, TypeMerge) {
		commits, err := g.Log(since)
		if err == nil {
			for _, c := range commits {
				typ := TypeCommit
				if c.ParentCount >= 2 {
					typ = TypeMerge
				}
				if !included(opts.Types, typ) {
					continue
				}
				out = append(out, Raw{
					RepoName:  repo.Name,
					Type:      typ,
					Timestamp: c.Timestamp,
					Ref:       c.Hash,
					Message:   c.Message,
					Author:    c.Author,
					Data: map[string]any{
						"hash":    c.Hash,
						"message": c.Message,
						"author":  c.Author,
						"email":   c.Email,
					},
				})
			}
		}
	}

	if included(opts.Types, TypeGitTag) {
		tags, err := g.TagDetails()
		if err == nil {
			for _, tag := range tags {
				if !tag.Timestamp.IsZero() && tag.Timestamp.Before(since) {
					continue
				}
				ts := tag.Timestamp
				if ts.IsZero() {
					ts = time.Now().UTC()
				}
				out = append(out, Raw{
					RepoName:  repo.Name,
					Type:      TypeGitTag,
					Timestamp: ts,
					Ref:       tag.Name,
					Message:   tag.Message,
					Data: map[string]any{
						"tag":     tag.Name,
						"message": tag.Message,
					},
				})
			}
		}
	}

	if included(opts.Types, TypeBranch) {
		branchEvents, err := g.ReflogBranchEvents()
		if err == nil {
			for _, be := range branchEvents {
				if be.Timestamp.Before(since) {
					continue
				}
				out = append(out, Raw{
					RepoName:  repo.Name,
					Type:      TypeBranch,
					Timestamp: be.Timestamp,
					Ref:       be.Branch,
					Data: map[string]any{
						"branch": be.Branch,
						"action": be.Action,
					},
				})
			}
		}
	}

	return out, nil
}

// Watcher periodically re-scans and yields only events whose IDs have not
// already been seen this process. The seen-set is pruned of entries older
// than 24h on each tick so a long-running watch does not grow without
// bound; the store's insert-time deduplication still holds regardless.
type Watcher struct {
	repos    []RepoRef
	opts     ScanOptions
	interval time.Duration
	log      zerolog.Logger

	seen map[string]time.Time
}

// NewWatcher builds a Watcher over repos, re-scanning every interval.
func NewWatcher(repos []RepoRef, opts ScanOptions, interval time.Duration, log zerolog.Logger) *Watcher {
	return &Watcher{repos: repos, opts: opts, interval: interval, log: log, seen: map[string]time.Time{}}
}

// Watch blocks, invoking onEvent for each newly observed event, until ctx
// is cancelled.
func (w *Watcher) Watch(ctx context.Context, onEvent func(Raw)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	tick := func() error {
		found, err := Scan(ctx, w.repos, w.opts)
		if err != nil {
			w.log.Warn().Err(err).Msg("watch: scan failed")
			return nil
		}
		now := time.Now()
		w.prune(now)
		for _, e := range found {
			id := e.ID()
			if _, ok := w.seen[id]; ok {
				continue
			}
			w.seen[id] = now
			onEvent(e)
		}
		return nil
	}

	if err := tick(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("watch: cancellation received, draining")
			return nil
		case <-ticker.C:
			if err := tick(); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) prune(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	for id, seenAt := range w.seen {
		if seenAt.Before(cutoff) {
			delete(w.seen, id)
		}
	}
}
