package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertEvents inserts each event with INSERT OR IGNORE keyed on event_id:
// a repeated scan that derives the same stable ID is a no-op, not a
// duplicate row. Returns the number of rows actually inserted.
func (s *Store) InsertEvents(ctx context.Context, events []*Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO events (repo_id, event_id, type, timestamp, ref, message, author, metadata, scanned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range events {
			metadata, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for event %s: %w", e.EventID, err)
			}
			scannedAt := e.ScannedAt
			if scannedAt.IsZero() {
				scannedAt = time.Now().UTC()
			}
			res, err := stmt.ExecContext(ctx,
				e.RepoID, e.EventID, e.Type, e.Timestamp, e.Ref, e.Message, e.Author,
				string(metadata), scannedAt,
			)
			if err != nil {
				return fmt.Errorf("insert event %s: %w", e.EventID, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	return inserted, err
}

// EventFilter narrows EventsSince; zero values are unbounded.
type EventFilter struct {
	Types []string
	Since time.Time
	Until time.Time
	Repo  string
	Limit int
}

// EventWithRepo carries an event alongside the repo name/path needed for
// the stable JSONL event record: {id, type, timestamp, repo, path, data}.
type EventWithRepo struct {
	Event
	RepoName string
	RepoPath string
}

// EventRecord is the stable, bit-exact JSONL projection of an event used
// by the events command and the ECHO export's events.jsonl.
type EventRecord struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Repo      string         `json:"repo"`
	Path      string         `json:"path"`
	Data      map[string]any `json:"data,omitempty"`
}

// ToRecord projects e into its stable JSONL form.
func (e *EventWithRepo) ToRecord() EventRecord {
	return EventRecord{
		ID:        e.EventID,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Repo:      e.RepoName,
		Path:      e.RepoPath,
		Data:      e.Metadata,
	}
}

// EventsSince returns stored events matching filter, ordered by timestamp
// descending.
func (s *Store) EventsSince(ctx context.Context, filter EventFilter) ([]*Event, error) {
	query := `
		SELECT e.id, e.repo_id, e.event_id, e.type, e.timestamp, e.ref, e.message, e.author, e.metadata, e.scanned_at
		FROM events e
		JOIN repos r ON r.id = e.repo_id
		WHERE 1=1
	`
	var args []any
	if !filter.Since.IsZero() {
		query += " AND e.timestamp >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND e.timestamp <= ?"
		args = append(args, filter.Until)
	}
	if filter.Repo != "" {
		query += " AND r.name = ?"
		args = append(args, filter.Repo)
	}
	if len(filter.Types) > 0 {
		placeholders := ""
		for i, t := range filter.Types {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, t)
		}
		query += " AND e.type IN (" + placeholders + ")"
	}
	query += " ORDER BY e.timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e := &Event{}
		var metadata string
		if err := rows.Scan(&e.ID, &e.RepoID, &e.EventID, &e.Type, &e.Timestamp, &e.Ref, &e.Message, &e.Author, &metadata, &e.ScannedAt); err != nil {
			return nil, fmt.Errorf("store: scan event row: %w", err)
		}
		if metadata != "" {
			_ = json.Unmarshal([]byte(metadata), &e.Metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventsSinceJoined is EventsSince with the owning repository's name and
// path attached, for callers rendering the stable JSONL event record.
func (s *Store) EventsSinceJoined(ctx context.Context, filter EventFilter) ([]*EventWithRepo, error) {
	query := `
		SELECT e.id, e.repo_id, e.event_id, e.type, e.timestamp, e.ref, e.message, e.author, e.metadata, e.scanned_at,
			r.name, r.path
		FROM events e
		JOIN repos r ON r.id = e.repo_id
		WHERE 1=1
	`
	var args []any
	if !filter.Since.IsZero() {
		query += " AND e.timestamp >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND e.timestamp <= ?"
		args = append(args, filter.Until)
	}
	if filter.Repo != "" {
		query += " AND r.name = ?"
		args = append(args, filter.Repo)
	}
	if len(filter.Types) > 0 {
		placeholders := ""
		for i, t := range filter.Types {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, t)
		}
		query += " AND e.type IN (" + placeholders + ")"
	}
	query += " ORDER BY e.timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var out []*EventWithRepo
	for rows.Next() {
		e := &EventWithRepo{}
		var metadata string
		if err := rows.Scan(&e.ID, &e.RepoID, &e.EventID, &e.Type, &e.Timestamp, &e.Ref, &e.Message, &e.Author, &metadata, &e.ScannedAt,
			&e.RepoName, &e.RepoPath); err != nil {
			return nil, fmt.Errorf("store: scan event row: %w", err)
		}
		if metadata != "" {
			_ = json.Unmarshal([]byte(metadata), &e.Metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordScanError replaces any prior scan error for path with message;
// only the latest error per path is retained.
func (s *Store) RecordScanError(ctx context.Context, path, message string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_errors (path, message, occurred_at) VALUES (?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET message = excluded.message, occurred_at = excluded.occurred_at
		`, path, message, time.Now().UTC())
		return err
	})
}

// ScanErrors returns every recorded scan error.
func (s *Store) ScanErrors(ctx context.Context) ([]*ScanError, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, path, message, occurred_at FROM scan_errors ORDER BY occurred_at DESC")
	if err != nil {
		return nil, fmt.Errorf("store: query scan_errors: %w", err)
	}
	defer rows.Close()

	var out []*ScanError
	for rows.Next() {
		e := &ScanError{}
		if err := rows.Scan(&e.ID, &e.Path, &e.Message, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
