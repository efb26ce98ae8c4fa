package store

import (
	"context"
	"fmt"
	"os"
)

// Info returns the database_info summary used by `db --info`: row counts
// across the core tables plus the current schema version and file size.
func (s *Store) Info(ctx context.Context) (DatabaseInfo, error) {
	info := DatabaseInfo{Path: s.path}

	version, err := s.schemaVersion()
	if err != nil {
		return info, fmt.Errorf("store: schema version: %w", err)
	}
	info.SchemaVersion = version

	counts := []struct {
		table string
		dest  *int
	}{
		{"repos", &info.RepoCount},
		{"events", &info.EventCount},
		{"tags", &info.TagCount},
		{"publications", &info.PublicationCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return info, fmt.Errorf("store: count %s: %w", c.table, err)
		}
	}

	if fi, err := os.Stat(s.path); err == nil {
		info.SizeBytes = fi.Size()
	}
	return info, nil
}
