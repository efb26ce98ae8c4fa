package store

import "database/sql"

// migration is a single named, idempotent forward step. Only one is
// registered today; the slice shape is carried so a future schema bump is
// a one-line addition rather than a rewrite of the open path.
type migration struct {
	Version     int
	Description string
	Apply       func(*sql.Tx) error
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema with repos, events, tags, publications, dependencies, scan_errors",
		Apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(schemaV1)
			return err
		},
	},
}

// MigrationInfo describes a registered migration for introspection.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// ListMigrations returns metadata for every registered migration, regardless
// of whether it has already been applied to a given database.
func ListMigrations() []MigrationInfo {
	out := make([]MigrationInfo, len(migrations))
	for i, m := range migrations {
		out[i] = MigrationInfo{Version: m.Version, Description: m.Description}
	}
	return out
}
