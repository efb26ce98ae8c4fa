// Package store implements the embedded relational index: a single-file
// SQLite database with a fixed schema, forward-only migrations, an FTS5
// search index, and the three persistent analytic views.
package store

// schemaV1 is the initial schema: repos, tags, events, publications,
// dependencies, repo_snapshots, scan_errors, the repos_fts virtual table
// and its sync triggers, and the three analytic views.
//
// GitHub-derived columns on repos carry an explicit github_ prefix for
// provenance, matching the field-mapping table the query compiler uses to
// resolve short aliases (stars -> github_stars, etc).
const schemaV1 = `
CREATE TABLE IF NOT EXISTS _schema_info (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    description TEXT
);

CREATE TABLE IF NOT EXISTS repos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    path TEXT UNIQUE NOT NULL,

    branch TEXT,
    remote_url TEXT,
    is_clean BOOLEAN DEFAULT 1,
    ahead INTEGER DEFAULT 0,
    behind INTEGER DEFAULT 0,
    has_upstream BOOLEAN DEFAULT 0,
    uncommitted_changes BOOLEAN DEFAULT 0,
    untracked_files INTEGER DEFAULT 0,

    owner TEXT,

    language TEXT,
    languages TEXT,
    description TEXT,
    readme_content TEXT,

    license_key TEXT,
    license_name TEXT,
    license_file TEXT,

    has_readme BOOLEAN DEFAULT 0,
    has_license BOOLEAN DEFAULT 0,
    has_ci BOOLEAN DEFAULT 0,

    has_citation BOOLEAN DEFAULT 0,
    citation_file TEXT,
    citation_doi TEXT,
    citation_title TEXT,
    citation_authors TEXT,
    citation_version TEXT,
    citation_repository TEXT,
    citation_license TEXT,

    github_owner TEXT,
    github_name TEXT,
    github_description TEXT,
    github_stars INTEGER DEFAULT 0,
    github_forks INTEGER DEFAULT 0,
    github_watchers INTEGER DEFAULT 0,
    github_open_issues INTEGER DEFAULT 0,
    github_is_fork BOOLEAN DEFAULT 0,
    github_is_private BOOLEAN DEFAULT 0,
    github_is_archived BOOLEAN DEFAULT 0,
    github_has_issues BOOLEAN DEFAULT 1,
    github_has_wiki BOOLEAN DEFAULT 1,
    github_has_pages BOOLEAN DEFAULT 0,
    github_pages_url TEXT,
    github_topics TEXT,

    github_created_at TIMESTAMP,
    github_updated_at TIMESTAMP,
    github_pushed_at TIMESTAMP,

    scanned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    git_index_mtime REAL
);

CREATE TABLE IF NOT EXISTS tags (
    repo_id INTEGER NOT NULL,
    tag TEXT NOT NULL,
    source TEXT DEFAULT 'explicit',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (repo_id, tag, source),
    FOREIGN KEY (repo_id) REFERENCES repos(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo_id INTEGER NOT NULL,
    event_id TEXT UNIQUE,
    type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    ref TEXT,
    message TEXT,
    author TEXT,
    metadata TEXT,
    scanned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (repo_id) REFERENCES repos(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS publications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo_id INTEGER NOT NULL,
    registry TEXT NOT NULL,
    package_name TEXT NOT NULL,
    current_version TEXT,
    published BOOLEAN DEFAULT 0,
    url TEXT,
    doi TEXT,
    downloads_total INTEGER,
    downloads_30d INTEGER,
    last_published TIMESTAMP,
    scanned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (repo_id, registry),
    FOREIGN KEY (repo_id) REFERENCES repos(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS dependencies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo_id INTEGER NOT NULL,
    package_name TEXT NOT NULL,
    package_registry TEXT,
    version_spec TEXT,
    dep_type TEXT DEFAULT 'runtime',
    FOREIGN KEY (repo_id) REFERENCES repos(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS repo_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo_id INTEGER NOT NULL,
    captured_at DATE NOT NULL,
    github_stars INTEGER,
    github_forks INTEGER,
    github_open_issues INTEGER,
    UNIQUE (repo_id, captured_at),
    FOREIGN KEY (repo_id) REFERENCES repos(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS scan_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT UNIQUE NOT NULL,
    message TEXT NOT NULL,
    occurred_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_repos_name ON repos(name);
CREATE INDEX IF NOT EXISTS idx_repos_language ON repos(language);
CREATE INDEX IF NOT EXISTS idx_repos_owner ON repos(owner);
CREATE INDEX IF NOT EXISTS idx_repos_updated ON repos(github_updated_at);
CREATE INDEX IF NOT EXISTS idx_repos_stars ON repos(github_stars);
CREATE INDEX IF NOT EXISTS idx_repos_scanned ON repos(scanned_at);

CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
CREATE INDEX IF NOT EXISTS idx_tags_source ON tags(source);

CREATE INDEX IF NOT EXISTS idx_events_repo ON events(repo_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_repo_type_ts ON events(repo_id, type, timestamp);

CREATE INDEX IF NOT EXISTS idx_publications_registry ON publications(registry);
CREATE INDEX IF NOT EXISTS idx_publications_package ON publications(package_name);

CREATE INDEX IF NOT EXISTS idx_dependencies_package ON dependencies(package_name);
CREATE INDEX IF NOT EXISTS idx_dependencies_repo ON dependencies(repo_id);

CREATE INDEX IF NOT EXISTS idx_snapshots_repo ON repo_snapshots(repo_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_date ON repo_snapshots(captured_at);

CREATE VIRTUAL TABLE IF NOT EXISTS repos_fts USING fts5(
    name,
    description,
    readme_content,
    content='repos',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS repos_fts_insert AFTER INSERT ON repos BEGIN
    INSERT INTO repos_fts(rowid, name, description, readme_content)
    VALUES (NEW.id, NEW.name, NEW.description, NEW.readme_content);
END;

CREATE TRIGGER IF NOT EXISTS repos_fts_delete AFTER DELETE ON repos BEGIN
    INSERT INTO repos_fts(repos_fts, rowid, name, description, readme_content)
    VALUES ('delete', OLD.id, OLD.name, OLD.description, OLD.readme_content);
END;

CREATE TRIGGER IF NOT EXISTS repos_fts_update AFTER UPDATE ON repos BEGIN
    INSERT INTO repos_fts(repos_fts, rowid, name, description, readme_content)
    VALUES ('delete', OLD.id, OLD.name, OLD.description, OLD.readme_content);
    INSERT INTO repos_fts(rowid, name, description, readme_content)
    VALUES (NEW.id, NEW.name, NEW.description, NEW.readme_content);
END;

CREATE VIEW IF NOT EXISTS v_active_repos AS
SELECT DISTINCT r.*
FROM repos r
WHERE EXISTS (
    SELECT 1 FROM events e
    WHERE e.repo_id = r.id
    AND e.type = 'commit'
    AND e.timestamp > datetime('now', '-30 days')
);

CREATE VIEW IF NOT EXISTS v_stale_repos AS
SELECT r.*
FROM repos r
WHERE NOT EXISTS (
    SELECT 1 FROM events e
    WHERE e.repo_id = r.id
    AND e.type = 'commit'
    AND e.timestamp > datetime('now', '-180 days')
);

CREATE VIEW IF NOT EXISTS v_repo_stats AS
SELECT
    r.id as repo_id,
    r.name,
    r.language,
    r.github_stars,
    r.github_forks,
    COALESCE(commits_30d.cnt, 0) as commits_30d,
    COALESCE(commits_90d.cnt, 0) as commits_90d,
    COALESCE(tags_90d.cnt, 0) as tags_90d,
    MAX(CASE WHEN e.type = 'commit' THEN e.timestamp END) as last_commit,
    MAX(CASE WHEN e.type = 'git_tag' THEN e.timestamp END) as last_tag,
    CASE
        WHEN MAX(CASE WHEN e.type = 'commit' THEN e.timestamp END) > datetime('now', '-30 days') THEN 'active'
        WHEN MAX(CASE WHEN e.type = 'commit' THEN e.timestamp END) > datetime('now', '-180 days') THEN 'maintained'
        ELSE 'stale'
    END as activity_status
FROM repos r
LEFT JOIN events e ON e.repo_id = r.id
LEFT JOIN (
    SELECT repo_id, COUNT(*) as cnt
    FROM events
    WHERE type = 'commit' AND timestamp > datetime('now', '-30 days')
    GROUP BY repo_id
) commits_30d ON commits_30d.repo_id = r.id
LEFT JOIN (
    SELECT repo_id, COUNT(*) as cnt
    FROM events
    WHERE type = 'commit' AND timestamp > datetime('now', '-90 days')
    GROUP BY repo_id
) commits_90d ON commits_90d.repo_id = r.id
LEFT JOIN (
    SELECT repo_id, COUNT(*) as cnt
    FROM events
    WHERE type = 'git_tag' AND timestamp > datetime('now', '-90 days')
    GROUP BY repo_id
) tags_90d ON tags_90d.repo_id = r.id
GROUP BY r.id;
`

// CurrentSchemaVersion is the schema version this binary understands.
// Opening a store stamped with a higher version is fatal.
const CurrentSchemaVersion = 1
