package store

import "time"

// Repository mirrors one row of the repos table. Identity is Path; it is
// created on first discovery, mutated only by the refresh pipeline, and
// removed by cleanup once its path no longer exists on disk.
type Repository struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`

	Branch             string `json:"branch,omitempty"`
	RemoteURL          string `json:"remote_url,omitempty"`
	IsClean            bool   `json:"is_clean"`
	Ahead              int    `json:"ahead,omitempty"`
	Behind             int    `json:"behind,omitempty"`
	HasUpstream        bool   `json:"has_upstream"`
	UncommittedChanges bool   `json:"uncommitted_changes"`
	UntrackedFiles     int    `json:"untracked_files,omitempty"`
	Owner              string `json:"owner,omitempty"`

	Language      string   `json:"language,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	Description   string   `json:"description,omitempty"`
	ReadmeContent string   `json:"readme_content,omitempty"`

	LicenseKey  string `json:"license_key,omitempty"`
	LicenseName string `json:"license_name,omitempty"`
	LicenseFile string `json:"license_file,omitempty"`

	HasReadme  bool `json:"has_readme"`
	HasLicense bool `json:"has_license"`
	HasCI      bool `json:"has_ci"`

	HasCitation        bool             `json:"has_citation"`
	CitationFile       string           `json:"citation_file,omitempty"`
	CitationDOI        string           `json:"citation_doi,omitempty"`
	CitationTitle      string           `json:"citation_title,omitempty"`
	CitationAuthors    []CitationAuthor `json:"citation_authors,omitempty"`
	CitationVersion    string           `json:"citation_version,omitempty"`
	CitationRepository string           `json:"citation_repository,omitempty"`
	CitationLicense    string           `json:"citation_license,omitempty"`

	GitHubOwner       string   `json:"github_owner,omitempty"`
	GitHubName        string   `json:"github_name,omitempty"`
	GitHubDescription string   `json:"github_description,omitempty"`
	GitHubStars       int      `json:"github_stars,omitempty"`
	GitHubForks       int      `json:"github_forks,omitempty"`
	GitHubWatchers    int      `json:"github_watchers,omitempty"`
	GitHubOpenIssues  int      `json:"github_open_issues,omitempty"`
	GitHubIsFork      bool     `json:"github_is_fork,omitempty"`
	GitHubIsPrivate   bool     `json:"github_is_private,omitempty"`
	GitHubIsArchived  bool     `json:"github_is_archived,omitempty"`
	GitHubHasIssues   bool     `json:"github_has_issues,omitempty"`
	GitHubHasWiki     bool     `json:"github_has_wiki,omitempty"`
	GitHubHasPages    bool     `json:"github_has_pages,omitempty"`
	GitHubPagesURL    string   `json:"github_pages_url,omitempty"`
	GitHubTopics      []string `json:"github_topics,omitempty"`

	GitHubCreatedAt *time.Time `json:"github_created_at,omitempty"`
	GitHubUpdatedAt *time.Time `json:"github_updated_at,omitempty"`
	GitHubPushedAt  *time.Time `json:"github_pushed_at,omitempty"`

	ScannedAt     time.Time `json:"scanned_at"`
	GitIndexMtime float64   `json:"git_index_mtime,omitempty"`
}

// CitationAuthor is one entry of Repository.CitationAuthors, stored as a
// JSON array in citation_authors.
type CitationAuthor struct {
	Name        string `json:"name"`
	ORCID       string `json:"orcid,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
	Email       string `json:"email,omitempty"`
}

// HasDOI implements the cross-source semantics of has_doi(): true if the
// repo's own citation carries a DOI, independent of any registry publication.
// The store-level predicate additionally consults publications.doi; this
// method only reflects the locally-parsed half.
func (r Repository) HasDOI() bool {
	return r.CitationDOI != ""
}

// Event mirrors one row of the events table. EventID is the stable,
// content-derived identity that makes repeated scans idempotent.
type Event struct {
	ID        int64          `json:"id"`
	RepoID    int64          `json:"repo_id"`
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Ref       string         `json:"ref,omitempty"`
	Message   string         `json:"message,omitempty"`
	Author    string         `json:"author,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ScannedAt time.Time      `json:"scanned_at"`
}

// TagSource distinguishes why a tag is attached to a repository.
type TagSource string

const (
	TagSourceExplicit TagSource = "explicit"
	TagSourceImplicit TagSource = "implicit"
	TagSourceProvider TagSource = "provider"
)

// Tag is a (repo, tag, source) triple explaining membership, not
// constraining it.
type Tag struct {
	RepoID    int64
	Tag       string
	Source    TagSource
	CreatedAt time.Time
}

// Publication mirrors one row of the publications table.
type Publication struct {
	ID             int64
	RepoID         int64
	Registry       string
	PackageName    string
	CurrentVersion string
	Published      bool
	URL            string
	DOI            string
	DownloadsTotal *int
	Downloads30d   *int
	LastPublished  *time.Time
	ScannedAt      time.Time
}

// Dependency mirrors one row of the dependencies table.
type Dependency struct {
	ID              int64
	RepoID          int64
	PackageName     string
	PackageRegistry string
	VersionSpec     string
	DepType         string
}

// Snapshot is a point-in-time record of a repository's hosted-provider
// counters, used for trending analysis.
type Snapshot struct {
	ID               int64
	RepoID           int64
	CapturedAt       time.Time
	GitHubStars      *int
	GitHubForks      *int
	GitHubOpenIssues *int
}

// ScanError records the most recent enrichment failure for a path. Only the
// latest row per path is retained.
type ScanError struct {
	ID         int64
	Path       string
	Message    string
	OccurredAt time.Time
}

// DatabaseInfo summarizes store contents for `db --info`.
type DatabaseInfo struct {
	SchemaVersion   int    `json:"schema_version"`
	RepoCount       int    `json:"repo_count"`
	EventCount      int    `json:"event_count"`
	TagCount        int    `json:"tag_count"`
	PublicationCount int   `json:"publication_count"`
	Path            string `json:"path"`
	SizeBytes       int64  `json:"size_bytes"`
}
