package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertPublication inserts or updates a (repo, registry) publication row.
func (s *Store) UpsertPublication(ctx context.Context, p *Publication) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO publications (repo_id, registry, package_name, current_version, published, url, doi, downloads_total, downloads_30d, last_published)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(repo_id, registry) DO UPDATE SET
				package_name=excluded.package_name, current_version=excluded.current_version,
				published=excluded.published, url=excluded.url, doi=excluded.doi,
				downloads_total=excluded.downloads_total, downloads_30d=excluded.downloads_30d,
				last_published=excluded.last_published, scanned_at=CURRENT_TIMESTAMP
		`, p.RepoID, p.Registry, p.PackageName, p.CurrentVersion, p.Published, p.URL, p.DOI,
			p.DownloadsTotal, p.Downloads30d, p.LastPublished)
		if err != nil {
			return fmt.Errorf("upsert publication %s/%s: %w", p.Registry, p.PackageName, err)
		}
		return nil
	})
}

// PublicationsForRepo returns every publication row attached to repoID.
func (s *Store) PublicationsForRepo(ctx context.Context, repoID int64) ([]*Publication, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, registry, package_name, current_version, published, url, doi, downloads_total, downloads_30d, last_published
		FROM publications WHERE repo_id = ?
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("store: query publications: %w", err)
	}
	defer rows.Close()

	var out []*Publication
	for rows.Next() {
		p := &Publication{}
		if err := rows.Scan(&p.ID, &p.RepoID, &p.Registry, &p.PackageName, &p.CurrentVersion,
			&p.Published, &p.URL, &p.DOI, &p.DownloadsTotal, &p.Downloads30d, &p.LastPublished); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertDependencies replaces the dependency set for a repository wholesale.
func (s *Store) UpsertDependencies(ctx context.Context, repoID int64, deps []*Dependency) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM dependencies WHERE repo_id = ?", repoID); err != nil {
			return err
		}
		for _, d := range deps {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dependencies (repo_id, package_name, package_registry, version_spec, dep_type)
				VALUES (?, ?, ?, ?, ?)
			`, repoID, d.PackageName, d.PackageRegistry, d.VersionSpec, d.DepType); err != nil {
				return fmt.Errorf("insert dependency %s: %w", d.PackageName, err)
			}
		}
		return nil
	})
}

// RecordSnapshot inserts the day's snapshot for a repo, ignoring duplicate
// (repo, date) captures.
func (s *Store) RecordSnapshot(ctx context.Context, snap *Snapshot) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO repo_snapshots (repo_id, captured_at, github_stars, github_forks, github_open_issues)
			VALUES (?, ?, ?, ?, ?)
		`, snap.RepoID, snap.CapturedAt.Format("2006-01-02"), snap.GitHubStars, snap.GitHubForks, snap.GitHubOpenIssues)
		return err
	})
}
