package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const repoColumns = `
	id, name, path, branch, remote_url, is_clean, ahead, behind, has_upstream,
	uncommitted_changes, untracked_files, owner, language, languages,
	description, readme_content, license_key, license_name, license_file,
	has_readme, has_license, has_ci, has_citation, citation_file, citation_doi,
	citation_title, citation_authors, citation_version, citation_repository,
	citation_license, github_owner, github_name, github_description,
	github_stars, github_forks, github_watchers, github_open_issues,
	github_is_fork, github_is_private, github_is_archived, github_has_issues,
	github_has_wiki, github_has_pages, github_pages_url, github_topics,
	github_created_at, github_updated_at, github_pushed_at, scanned_at,
	git_index_mtime
`

// UpsertRepo inserts a new repository row or updates the existing row for
// the same path via INSERT ... ON CONFLICT(path) DO UPDATE.
func (s *Store) UpsertRepo(ctx context.Context, r *Repository) (int64, error) {
	languages, err := marshalStrings(r.Languages)
	if err != nil {
		return 0, err
	}
	topics, err := marshalStrings(r.GitHubTopics)
	if err != nil {
		return 0, err
	}
	authors, err := json.Marshal(r.CitationAuthors)
	if err != nil {
		return 0, fmt.Errorf("store: marshal citation authors: %w", err)
	}

	var id int64
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO repos (
				name, path, branch, remote_url, is_clean, ahead, behind, has_upstream,
				uncommitted_changes, untracked_files, owner, language, languages,
				description, readme_content, license_key, license_name, license_file,
				has_readme, has_license, has_ci, has_citation, citation_file, citation_doi,
				citation_title, citation_authors, citation_version, citation_repository,
				citation_license, github_owner, github_name, github_description,
				github_stars, github_forks, github_watchers, github_open_issues,
				github_is_fork, github_is_private, github_is_archived, github_has_issues,
				github_has_wiki, github_has_pages, github_pages_url, github_topics,
				github_created_at, github_updated_at, github_pushed_at, scanned_at,
				git_index_mtime
			) VALUES (?,?,?,?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?, ?)
			ON CONFLICT(path) DO UPDATE SET
				name=excluded.name, branch=excluded.branch, remote_url=excluded.remote_url,
				is_clean=excluded.is_clean, ahead=excluded.ahead, behind=excluded.behind,
				has_upstream=excluded.has_upstream, uncommitted_changes=excluded.uncommitted_changes,
				untracked_files=excluded.untracked_files, owner=excluded.owner,
				language=excluded.language, languages=excluded.languages,
				description=excluded.description, readme_content=excluded.readme_content,
				license_key=excluded.license_key, license_name=excluded.license_name,
				license_file=excluded.license_file, has_readme=excluded.has_readme,
				has_license=excluded.has_license, has_ci=excluded.has_ci,
				has_citation=excluded.has_citation, citation_file=excluded.citation_file,
				citation_doi=excluded.citation_doi, citation_title=excluded.citation_title,
				citation_authors=excluded.citation_authors, citation_version=excluded.citation_version,
				citation_repository=excluded.citation_repository, citation_license=excluded.citation_license,
				github_owner=excluded.github_owner, github_name=excluded.github_name,
				github_description=excluded.github_description, github_stars=excluded.github_stars,
				github_forks=excluded.github_forks, github_watchers=excluded.github_watchers,
				github_open_issues=excluded.github_open_issues, github_is_fork=excluded.github_is_fork,
				github_is_private=excluded.github_is_private, github_is_archived=excluded.github_is_archived,
				github_has_issues=excluded.github_has_issues, github_has_wiki=excluded.github_has_wiki,
				github_has_pages=excluded.github_has_pages, github_pages_url=excluded.github_pages_url,
				github_topics=excluded.github_topics, github_created_at=excluded.github_created_at,
				github_updated_at=excluded.github_updated_at, github_pushed_at=excluded.github_pushed_at,
				scanned_at=excluded.scanned_at, git_index_mtime=excluded.git_index_mtime
		`,
			r.Name, r.Path, r.Branch, r.RemoteURL, r.IsClean, r.Ahead, r.Behind, r.HasUpstream,
			r.UncommittedChanges, r.UntrackedFiles, r.Owner, r.Language, languages,
			r.Description, r.ReadmeContent, r.LicenseKey, r.LicenseName, r.LicenseFile,
			r.HasReadme, r.HasLicense, r.HasCI, r.HasCitation, r.CitationFile, r.CitationDOI,
			r.CitationTitle, string(authors), r.CitationVersion, r.CitationRepository,
			r.CitationLicense, r.GitHubOwner, r.GitHubName, r.GitHubDescription,
			r.GitHubStars, r.GitHubForks, r.GitHubWatchers, r.GitHubOpenIssues,
			r.GitHubIsFork, r.GitHubIsPrivate, r.GitHubIsArchived, r.GitHubHasIssues,
			r.GitHubHasWiki, r.GitHubHasPages, r.GitHubPagesURL, topics,
			r.GitHubCreatedAt, r.GitHubUpdatedAt, r.GitHubPushedAt, r.ScannedAt,
			r.GitIndexMtime,
		)
		if err != nil {
			return fmt.Errorf("upsert repo %s: %w", r.Path, err)
		}
		// last_insert_rowid is unchanged when the conflict arm updates an
		// existing row, so the id is always re-read by path.
		_ = res
		return tx.QueryRowContext(ctx, "SELECT id FROM repos WHERE path = ?", r.Path).Scan(&id)
	})
	return id, err
}

// DeleteRepoByPath removes a repository row (and, via cascade, its events,
// tags, publications, dependencies and snapshots).
func (s *Store) DeleteRepoByPath(ctx context.Context, path string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM repos WHERE path = ?", path)
		return err
	})
}

// CleanupMissingRepos deletes every repository row whose path is not present
// in existingPaths, returning the number removed. This is the final step of
// a refresh run.
func (s *Store) CleanupMissingRepos(ctx context.Context, existingPaths map[string]bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM repos")
	if err != nil {
		return 0, fmt.Errorf("store: list repo paths: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		if !existingPaths[p] {
			stale = append(stale, p)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	if len(stale) == 0 {
		return 0, nil
	}

	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, p := range stale {
			if _, err := tx.ExecContext(ctx, "DELETE FROM repos WHERE path = ?", p); err != nil {
				return fmt.Errorf("cleanup %s: %w", p, err)
			}
		}
		return nil
	})
	return len(stale), err
}

// GetRepoByPath returns the repository row for path, or nil if none exists.
// Used by the refresh pipeline's staleness check so it need not load every
// row to test one path.
func (s *Store) GetRepoByPath(ctx context.Context, path string) (*Repository, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+repoColumns+" FROM repos WHERE path = ?", path)
	if err != nil {
		return nil, fmt.Errorf("store: query repo by path: %w", err)
	}
	defer rows.Close()
	repos, err := scanRepos(rows)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return nil, nil
	}
	return repos[0], nil
}

// AllRepos returns every repository row, unordered unless the caller sorts.
func (s *Store) AllRepos(ctx context.Context) ([]*Repository, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+repoColumns+" FROM repos")
	if err != nil {
		return nil, fmt.Errorf("store: query repos: %w", err)
	}
	defer rows.Close()
	return scanRepos(rows)
}

// Query executes a compiled query (see querylang.CompiledQuery) against the
// repos table and materializes the result rows.
func (s *Store) Query(ctx context.Context, sqlText string, params []any) ([]*Repository, error) {
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()
	return scanRepos(rows)
}

// ReposWithTags returns all repos along with their attached tags, used by
// the legacy short-form tag filter.
func (s *Store) ReposWithTags(ctx context.Context) (map[int64][]Tag, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT repo_id, tag, source, created_at FROM tags")
	if err != nil {
		return nil, fmt.Errorf("store: query tags: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Tag)
	for rows.Next() {
		var t Tag
		var source string
		if err := rows.Scan(&t.RepoID, &t.Tag, &source, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Source = TagSource(source)
		out[t.RepoID] = append(out[t.RepoID], t)
	}
	return out, rows.Err()
}

// SearchRepos runs a full-text-search match against the FTS5 index and
// returns the matching repository rows ranked by relevance.
func (s *Store) SearchRepos(ctx context.Context, ftsMatch string) ([]*Repository, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+repoColumns+` FROM repos
		JOIN (SELECT rowid AS fts_id, rank AS fts_rank FROM repos_fts WHERE repos_fts MATCH ?) m ON m.fts_id = repos.id
		ORDER BY m.fts_rank
	`, ftsMatch)
	if err != nil {
		return nil, fmt.Errorf("store: fts search: %w", err)
	}
	defer rows.Close()
	return scanRepos(rows)
}

func scanRepos(rows *sql.Rows) ([]*Repository, error) {
	var out []*Repository
	for rows.Next() {
		r := &Repository{}
		var languages, topics, authors string
		var createdAt, updatedAt, pushedAt sql.NullTime

		err := rows.Scan(
			&r.ID, &r.Name, &r.Path, &r.Branch, &r.RemoteURL, &r.IsClean, &r.Ahead, &r.Behind,
			&r.HasUpstream, &r.UncommittedChanges, &r.UntrackedFiles, &r.Owner, &r.Language,
			&languages, &r.Description, &r.ReadmeContent, &r.LicenseKey, &r.LicenseName,
			&r.LicenseFile, &r.HasReadme, &r.HasLicense, &r.HasCI, &r.HasCitation,
			&r.CitationFile, &r.CitationDOI, &r.CitationTitle, &authors, &r.CitationVersion,
			&r.CitationRepository, &r.CitationLicense, &r.GitHubOwner, &r.GitHubName,
			&r.GitHubDescription, &r.GitHubStars, &r.GitHubForks, &r.GitHubWatchers,
			&r.GitHubOpenIssues, &r.GitHubIsFork, &r.GitHubIsPrivate, &r.GitHubIsArchived,
			&r.GitHubHasIssues, &r.GitHubHasWiki, &r.GitHubHasPages, &r.GitHubPagesURL,
			&topics, &createdAt, &updatedAt, &pushedAt, &r.ScannedAt, &r.GitIndexMtime,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan repo row: %w", err)
		}

		r.Languages = unmarshalStrings(languages)
		r.GitHubTopics = unmarshalStrings(topics)
		if authors != "" {
			_ = json.Unmarshal([]byte(authors), &r.CitationAuthors)
		}
		if createdAt.Valid {
			t := createdAt.Time
			r.GitHubCreatedAt = &t
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			r.GitHubUpdatedAt = &t
		}
		if pushedAt.Valid {
			t := pushedAt.Time
			r.GitHubPushedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		return "[]", nil
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("store: marshal string array: %w", err)
	}
	return string(b), nil
}

func unmarshalStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// ReplaceTags deletes all tags of the given source for a repo and inserts
// the replacement set. Tags from other sources are untouched.
func (s *Store) ReplaceTags(ctx context.Context, repoID int64, source TagSource, tags []string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE repo_id = ? AND source = ?", repoID, source); err != nil {
			return err
		}
		for _, t := range tags {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO tags (repo_id, tag, source, created_at) VALUES (?, ?, ?, ?)",
				repoID, t, source, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("insert tag %s: %w", t, err)
			}
		}
		return nil
	})
}
