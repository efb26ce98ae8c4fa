// Package refresh orchestrates the repository refresh pipeline: discovery,
// smart-staleness detection, per-repository enrichment (git status,
// license, language, citation, and opt-in remote sources), and idempotent
// upsert into the store.
//
// Enrichment fans out over a bounded worker pool; results are folded back
// and committed on the goroutine that owns the store's write lock.
package refresh

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gdesouza/repoindex/internal/citation"
	"github.com/gdesouza/repoindex/internal/discovery"
	"github.com/gdesouza/repoindex/internal/events"
	"github.com/gdesouza/repoindex/internal/gitutil"
	"github.com/gdesouza/repoindex/internal/language"
	"github.com/gdesouza/repoindex/internal/license"
	"github.com/gdesouza/repoindex/internal/remote/codehost"
	"github.com/gdesouza/repoindex/internal/remote/doi"
	"github.com/gdesouza/repoindex/internal/remote/registry"
	"github.com/gdesouza/repoindex/internal/store"
)

// maxWorkers bounds the refresh pipeline's concurrency. Git and HTTP work
// is I/O-bound, but a small constant keeps resource use predictable.
const maxWorkers = 8

// Stats is the result of a refresh run. Invariant:
// Scanned = Updated + Skipped + Errors; Removed is counted separately.
type Stats struct {
	Scanned     int
	Updated     int
	Skipped     int
	EventsAdded int
	Removed     int
	Errors      int
}

// Options configures one Run call.
type Options struct {
	Roots   []string
	Exclude []string
	Full    bool          // bypass staleness check, re-enrich every repo
	Since   time.Duration // event-scan window; zero means the 90-day default

	EnableGitHub          bool // repo metadata: stars, forks, topics, pages
	EnableGitHubReleases  bool // github_release events
	EnableGitHubPRs       bool // pr events
	EnableGitHubIssues    bool // issue events
	EnableGitHubWorkflows bool // workflow_run events
	EnablePyPI            bool
	EnableCRAN            bool
	EnableZenodo          bool
	GitHubToken           string
	ORCID                 string

	UserTags map[string][]string // path -> explicit tags from config

	Logger zerolog.Logger
}

const defaultScanWindow = 90 * 24 * time.Hour

// Run executes the full refresh pipeline against st and returns the
// resulting Stats. Cancellation via ctx finishes the in-flight repository
// and returns partial stats; progress made so far stays persisted.
func Run(ctx context.Context, st *store.Store, opts Options) (Stats, error) {
	log := opts.Logger
	paths, err := discovery.Walk(opts.Roots, discovery.Options{Exclude: opts.Exclude})
	if err != nil {
		return Stats{}, err
	}

	var (
		mu        sync.Mutex
		stats     Stats
		jobs      = make(chan string)
		wg        sync.WaitGroup
		resultsMu sync.Mutex
	)

	type result struct {
		path        string
		repo        *store.Repository
		tags        map[store.TagSource][]string
		rawEvents   []events.Raw
		publication *store.Publication
		deps        []*store.Dependency
		skipped     bool
		errMessage  string
	}
	var results []result

	worker := func() {
		defer wg.Done()
		for path := range jobs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			r := enrichOne(ctx, st, path, opts, log)
			resultsMu.Lock()
			results = append(results, result{
				path: path, repo: r.repo, tags: r.tags, rawEvents: r.rawEvents,
				publication: r.publication, deps: r.deps, skipped: r.skipped, errMessage: r.errMessage,
			})
			resultsMu.Unlock()
		}
	}

	workerCount := maxWorkers
	if n := runtime.NumCPU(); n < workerCount {
		workerCount = n
	}
	if workerCount < 1 {
		workerCount = 1
	}
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go worker()
	}

	go func() {
		defer close(jobs)
		for _, p := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()

	wg.Wait()

	existing := make(map[string]bool, len(paths))
	for _, p := range paths {
		existing[p] = true
	}

	if opts.EnableZenodo && opts.ORCID != "" {
		var candidates []*store.Repository
		for _, r := range results {
			if r.repo != nil {
				candidates = append(candidates, r.repo)
			}
		}
		if len(candidates) > 0 {
			zenodoCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := MatchZenodoRecords(zenodoCtx, doi.New(), opts.ORCID, candidates); err != nil {
				log.Warn().Err(err).Msg("refresh: zenodo matching failed")
			}
			cancel()
		}
	}

	// Store writes use a context detached from cancellation, so results
	// already gathered are persisted even after ctx is cancelled.
	writeCtx := context.WithoutCancel(ctx)

	for _, r := range results {
		mu.Lock()
		stats.Scanned++
		mu.Unlock()

		if r.errMessage != "" {
			_ = st.RecordScanError(writeCtx, r.path, r.errMessage)
			mu.Lock()
			stats.Errors++
			mu.Unlock()
			continue
		}
		if r.skipped {
			mu.Lock()
			stats.Skipped++
			mu.Unlock()
			continue
		}

		repoID, err := st.UpsertRepo(writeCtx, r.repo)
		if err != nil {
			_ = st.RecordScanError(writeCtx, r.path, err.Error())
			mu.Lock()
			stats.Errors++
			mu.Unlock()
			continue
		}
		for source, tags := range r.tags {
			_ = st.ReplaceTags(writeCtx, repoID, source, tags)
		}
		if r.publication != nil {
			r.publication.RepoID = repoID
			_ = st.UpsertPublication(writeCtx, r.publication)
		}
		if len(r.deps) > 0 {
			_ = st.UpsertDependencies(writeCtx, repoID, r.deps)
		}
		if r.repo.GitHubOwner != "" {
			stars, forks, issues := r.repo.GitHubStars, r.repo.GitHubForks, r.repo.GitHubOpenIssues
			_ = st.RecordSnapshot(writeCtx, &store.Snapshot{
				RepoID:           repoID,
				CapturedAt:       time.Now().UTC(),
				GitHubStars:      &stars,
				GitHubForks:      &forks,
				GitHubOpenIssues: &issues,
			})
		}

		storeEvents := make([]*store.Event, 0, len(r.rawEvents))
		for _, re := range r.rawEvents {
			storeEvents = append(storeEvents, re.ToStoreEvent(repoID))
		}
		n, err := st.InsertEvents(writeCtx, storeEvents)
		if err == nil {
			mu.Lock()
			stats.EventsAdded += n
			mu.Unlock()
		}

		mu.Lock()
		stats.Updated++
		mu.Unlock()
	}

	removed, err := st.CleanupMissingRepos(writeCtx, existing)
	if err == nil {
		stats.Removed = removed
	}

	return stats, nil
}

type enrichResult struct {
	repo        *store.Repository
	tags        map[store.TagSource][]string
	rawEvents   []events.Raw
	publication *store.Publication
	deps        []*store.Dependency
	skipped     bool
	errMessage  string
}

func enrichOne(ctx context.Context, st *store.Store, path string, opts Options, log zerolog.Logger) enrichResult {
	indexPath := filepath.Join(path, ".git", "index")
	mtime, mtimeErr := indexMtime(indexPath)

	if !opts.Full && mtimeErr == nil {
		stale, err := isStale(ctx, st, path, mtime)
		if err == nil && !stale {
			return enrichResult{skipped: true}
		}
	}

	g, err := gitutil.Open(path)
	if err != nil {
		return enrichResult{errMessage: err.Error()}
	}

	status, err := g.Status(false)
	if err != nil {
		return enrichResult{errMessage: err.Error()}
	}

	name := filepath.Base(path)
	remoteURL := g.RemoteURL("origin")
	owner := deriveOwner(remoteURL)

	licenseKey, licenseFile := license.DetectFile(path)
	langBreakdown, _ := language.Analyze(path)
	primaryLang := langBreakdown.Primary()
	langs := langBreakdown.Names()

	cit, _ := citation.Parse(path)
	readme := readReadme(path)

	repo := &store.Repository{
		Name:               name,
		Path:               path,
		Branch:             status.Branch,
		RemoteURL:          remoteURL,
		IsClean:            !status.Dirty,
		Ahead:              status.Ahead,
		Behind:             status.Behind,
		HasUpstream:        status.Upstream != "",
		UncommittedChanges: status.Dirty,
		UntrackedFiles:     status.Untracked,
		Owner:              owner,
		Language:           primaryLang,
		Languages:          langs,
		LicenseKey:         licenseKey,
		LicenseName:        licenseKey,
		LicenseFile:        licenseFile,
		HasLicense:         licenseKey != license.None,
		HasReadme:          readme != "",
		ReadmeContent:      readme,
		HasCI:              hasCI(path),
		ScannedAt:          time.Now().UTC(),
		GitIndexMtime:      mtime,
	}

	if cit != nil {
		repo.HasCitation = true
		repo.CitationFile = cit.File
		repo.CitationDOI = cit.DOI
		repo.CitationTitle = cit.Title
		repo.CitationAuthors = cit.Authors
		repo.CitationVersion = cit.Version
		repo.CitationRepository = cit.Repository
		repo.CitationLicense = cit.License
	} else if _, err := os.Stat(filepath.Join(path, "CITATION.bib")); err == nil {
		repo.HasCitation = true
		repo.CitationFile = "CITATION.bib"
	}

	var remoteEvents []events.Raw
	anyGitHubEnabled := opts.EnableGitHub || opts.EnableGitHubReleases || opts.EnableGitHubPRs || opts.EnableGitHubIssues || opts.EnableGitHubWorkflows

	if anyGitHubEnabled && remoteURL != "" {
		if o, n, ok := codehost.ParseOwnerName(remoteURL); ok {
			adapter := codehost.New(opts.GitHubToken)

			if opts.EnableGitHub {
				ghCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				gh, err := adapter.GetRepo(ghCtx, o, n)
				cancel()
				if err == nil {
					repo.GitHubOwner = o
					repo.GitHubName = n
					repo.GitHubDescription = gh.Description
					repo.GitHubStars = gh.Stars
					repo.GitHubForks = gh.Forks
					repo.GitHubWatchers = gh.Watchers
					repo.GitHubOpenIssues = gh.OpenIssues
					repo.GitHubIsFork = gh.IsFork
					repo.GitHubIsPrivate = gh.IsPrivate
					repo.GitHubIsArchived = gh.IsArchived
					repo.GitHubHasIssues = gh.HasIssues
					repo.GitHubHasWiki = gh.HasWiki
					repo.GitHubHasPages = gh.HasPages
					repo.GitHubTopics = gh.Topics
					repo.Description = gh.Description
					if t, err := time.Parse(time.RFC3339, gh.CreatedAt); err == nil {
						repo.GitHubCreatedAt = &t
					}
					if t, err := time.Parse(time.RFC3339, gh.UpdatedAt); err == nil {
						repo.GitHubUpdatedAt = &t
					}
					if t, err := time.Parse(time.RFC3339, gh.PushedAt); err == nil {
						repo.GitHubPushedAt = &t
					}

					if len(repo.GitHubTopics) == 0 {
						topicsCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
						if topics, err := adapter.GetTopics(topicsCtx, o, n); err == nil {
							repo.GitHubTopics = topics
						}
						cancel()
					}

					if gh.HasPages {
						pagesCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
						if pages, err := adapter.GetPagesInfo(pagesCtx, o, n); err == nil && pages != nil {
							repo.GitHubPagesURL = pages.URL
						}
						cancel()
					}
				} else {
					log.Warn().Err(err).Str("repo", name).Msg("refresh: github enrichment failed")
				}
			}

			if opts.EnableGitHubReleases {
				relCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				releases, err := adapter.GetReleases(relCtx, o, n, 10)
				cancel()
				if err != nil {
					log.Warn().Err(err).Str("repo", name).Msg("refresh: github releases fetch failed")
				}
				for _, rel := range releases {
					remoteEvents = append(remoteEvents, events.Raw{
						RepoName:  name,
						Type:      events.TypeGitHubRelease,
						Timestamp: parseTimeOrNow(rel.PublishedAt),
						Ref:       rel.TagName,
						Message:   rel.Name,
						Data: map[string]any{
							"tag":  rel.TagName,
							"name": rel.Name,
							"url":  rel.HTMLURL,
						},
					})
				}
			}

			if opts.EnableGitHubPRs {
				prCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				prs, err := adapter.GetPullRequests(prCtx, o, n, 10)
				cancel()
				if err != nil {
					log.Warn().Err(err).Str("repo", name).Msg("refresh: github pull requests fetch failed")
				}
				for _, pr := range prs {
					remoteEvents = append(remoteEvents, events.Raw{
						RepoName:  name,
						Type:      events.TypePR,
						Timestamp: parseTimeOrNow(pr.UpdatedAt),
						Message:   pr.Title,
						Author:    pr.User.Login,
						Data: map[string]any{
							"number": pr.Number,
							"state":  pr.State,
							"url":    pr.HTMLURL,
						},
					})
				}
			}

			if opts.EnableGitHubIssues {
				issueCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				issues, err := adapter.GetIssues(issueCtx, o, n, 10)
				cancel()
				if err != nil {
					log.Warn().Err(err).Str("repo", name).Msg("refresh: github issues fetch failed")
				}
				for _, issue := range issues {
					if issue.IsPullRequest() {
						continue
					}
					remoteEvents = append(remoteEvents, events.Raw{
						RepoName:  name,
						Type:      events.TypeIssue,
						Timestamp: parseTimeOrNow(issue.UpdatedAt),
						Message:   issue.Title,
						Author:    issue.User.Login,
						Data: map[string]any{
							"number": issue.Number,
							"state":  issue.State,
							"url":    issue.HTMLURL,
						},
					})
				}
			}

			if opts.EnableGitHubWorkflows {
				runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				runs, err := adapter.GetWorkflowRuns(runCtx, o, n, 10)
				cancel()
				if err != nil {
					log.Warn().Err(err).Str("repo", name).Msg("refresh: github workflow runs fetch failed")
				}
				for _, run := range runs {
					remoteEvents = append(remoteEvents, events.Raw{
						RepoName:  name,
						Type:      events.TypeWorkflowRun,
						Timestamp: parseTimeOrNow(run.UpdatedAt),
						Ref:       run.HeadBranch,
						Message:   run.Name,
						Data: map[string]any{
							"id":         run.ID,
							"status":     run.Status,
							"conclusion": run.Conclusion,
							"url":        run.HTMLURL,
						},
					})
				}
			}
		}
	}

	var publication *store.Publication
	if opts.EnablePyPI {
		adapter := registry.New()
		pkgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pkg, err := adapter.Fetch(pkgCtx, registry.DetectPackageName(name))
		cancel()
		if err == nil && pkg.Published() {
			downloads := pkg.DownloadsTotal
			publication = &store.Publication{
				Registry:       "pypi",
				PackageName:    pkg.Name,
				CurrentVersion: pkg.CurrentVersion,
				Published:      true,
				URL:            pkg.ProjectURL,
				DownloadsTotal: &downloads,
			}
			if repo.CitationDOI == "" && pkg.CurrentVersion != "" {
				repo.CitationVersion = pkg.CurrentVersion
			}
		}
	}
	if opts.EnableCRAN && publication == nil {
		adapter := registry.NewCRAN()
		pkgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pkg, err := adapter.Fetch(pkgCtx, registry.DetectPackageName(name))
		cancel()
		if err == nil && pkg.Published() {
			publication = &store.Publication{
				Registry:       "cran",
				PackageName:    pkg.Name,
				CurrentVersion: pkg.CurrentVersion,
				Published:      true,
				URL:            pkg.ProjectURL,
			}
			if repo.CitationDOI == "" && pkg.CurrentVersion != "" {
				repo.CitationVersion = pkg.CurrentVersion
			}
		}
	}

	var rawEvents []events.Raw
	scanWindow := opts.Since
	if scanWindow == 0 {
		scanWindow = defaultScanWindow
	}
	found, err := events.Scan(ctx, []events.RepoRef{{Name: name, Path: path}}, events.ScanOptions{
		Since: time.Now().Add(-scanWindow),
	})
	if err == nil {
		rawEvents = found
	}
	rawEvents = append(rawEvents, remoteEvents...)
	if publication != nil && publication.CurrentVersion != "" {
		typ := events.TypePyPIPublish
		if publication.Registry == "cran" {
			typ = events.TypeCRANPublish
		}
		rawEvents = append(rawEvents, events.Raw{
			RepoName:  name,
			Type:      typ,
			Timestamp: time.Now().UTC(),
			Data: map[string]any{
				"package": publication.PackageName,
				"version": publication.CurrentVersion,
			},
		})
	}

	tags := map[store.TagSource][]string{}
	if primaryLang != "" {
		tags[store.TagSourceImplicit] = []string{"lang:" + primaryLang}
	}
	if userTags, ok := opts.UserTags[path]; ok {
		tags[store.TagSourceExplicit] = userTags
	}
	if len(repo.GitHubTopics) > 0 {
		tags[store.TagSourceProvider] = repo.GitHubTopics
	}

	return enrichResult{
		repo: repo, tags: tags, rawEvents: rawEvents,
		publication: publication, deps: scanDependencies(path),
	}
}

func isStale(ctx context.Context, st *store.Store, path string, mtime float64) (bool, error) {
	r, err := st.GetRepoByPath(ctx, path)
	if err != nil {
		return true, err
	}
	if r == nil {
		return true, nil
	}
	return r.GitIndexMtime != mtime, nil
}

// maxReadmeBytes caps how much readme text is persisted into the
// full-text-search column.
const maxReadmeBytes = 64 * 1024

var readmeFiles = []string{"README.md", "README.rst", "README.txt", "README"}

func readReadme(repoPath string) string {
	for _, name := range readmeFiles {
		raw, err := os.ReadFile(filepath.Join(repoPath, name))
		if err != nil {
			continue
		}
		if len(raw) > maxReadmeBytes {
			raw = raw[:maxReadmeBytes]
		}
		return string(raw)
	}
	return ""
}

var ciMarkers = []string{
	filepath.Join(".github", "workflows"),
	".gitlab-ci.yml",
	filepath.Join(".circleci", "config.yml"),
	".travis.yml",
	"azure-pipelines.yml",
	"Jenkinsfile",
}

func hasCI(repoPath string) bool {
	for _, marker := range ciMarkers {
		if _, err := os.Stat(filepath.Join(repoPath, marker)); err == nil {
			return true
		}
	}
	return false
}

// scanDependencies reads the manifest of each ecosystem it recognizes and
// returns the repository's direct dependencies. Parsing is deliberately
// shallow — one manifest per ecosystem, no lockfiles, no transitive
// resolution.
func scanDependencies(repoPath string) []*store.Dependency {
	var out []*store.Dependency
	out = append(out, goModDeps(repoPath)...)
	out = append(out, pipDeps(repoPath)...)
	out = append(out, npmDeps(repoPath)...)
	return out
}

func goModDeps(repoPath string) []*store.Dependency {
	raw, err := os.ReadFile(filepath.Join(repoPath, "go.mod"))
	if err != nil {
		return nil
	}
	var out []*store.Dependency
	inBlock := false
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "require (":
			inBlock = true
			continue
		case inBlock && line == ")":
			inBlock = false
			continue
		}
		if strings.Contains(line, "// indirect") {
			continue
		}
		if !inBlock {
			if !strings.HasPrefix(line, "require ") {
				continue
			}
			line = strings.TrimPrefix(line, "require ")
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.Contains(fields[0], "/") {
			continue
		}
		out = append(out, &store.Dependency{
			PackageName:     fields[0],
			PackageRegistry: "go",
			VersionSpec:     fields[1],
			DepType:         "runtime",
		})
	}
	return out
}

var pipSpecSeps = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

func pipDeps(repoPath string) []*store.Dependency {
	raw, err := os.ReadFile(filepath.Join(repoPath, "requirements.txt"))
	if err != nil {
		return nil
	}
	var out []*store.Dependency
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		name, spec := line, ""
		for _, sep := range pipSpecSeps {
			if i := strings.Index(line, sep); i != -1 {
				name, spec = strings.TrimSpace(line[:i]), strings.TrimSpace(line[i:])
				break
			}
		}
		if name == "" {
			continue
		}
		out = append(out, &store.Dependency{
			PackageName:     name,
			PackageRegistry: "pypi",
			VersionSpec:     spec,
			DepType:         "runtime",
		})
	}
	return out
}

func npmDeps(repoPath string) []*store.Dependency {
	raw, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return nil
	}
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	var out []*store.Dependency
	for name, spec := range doc.Dependencies {
		out = append(out, &store.Dependency{
			PackageName: name, PackageRegistry: "npm", VersionSpec: spec, DepType: "runtime",
		})
	}
	for name, spec := range doc.DevDependencies {
		out = append(out, &store.Dependency{
			PackageName: name, PackageRegistry: "npm", VersionSpec: spec, DepType: "dev",
		})
	}
	return out
}

// indexMtime returns the mtime of path (the repository's .git/index file)
// as seconds-since-epoch with sub-second precision. The staleness check
// depends on the stored git_index_mtime equaling this value at the last
// successful refresh.
func indexMtime(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return float64(info.ModTime().UnixNano()) / 1e9, nil
}

// parseTimeOrNow parses an RFC3339 timestamp as returned by the GitHub API,
// falling back to the current time when the field is empty or malformed
// rather than producing a zero-valued event timestamp.
func parseTimeOrNow(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now().UTC()
}

func deriveOwner(remoteURL string) string {
	owner, _, ok := codehost.ParseOwnerName(remoteURL)
	if !ok {
		return ""
	}
	return owner
}

// MatchZenodoRecords fetches Zenodo records once per refresh for the
// configured ORCID, then for each repository tries to match first by
// normalized GitHub remote URL, falling back to exact (lowercased) title
// equality, preferring the concept DOI when present.
func MatchZenodoRecords(ctx context.Context, adapter *doi.Adapter, orcid string, repos []*store.Repository) error {
	records, err := adapter.SearchByORCID(ctx, orcid)
	if err != nil {
		return err
	}

	byGitHubURL := make(map[string]doi.Record, len(records))
	byTitle := make(map[string]doi.Record, len(records))
	for _, rec := range records {
		if rec.GitHubURL != "" {
			byGitHubURL[rec.GitHubURL] = rec
		}
		byTitle[normalizeTitle(rec.Title)] = rec
	}

	for _, r := range repos {
		if r.CitationDOI != "" {
			continue
		}
		normalizedRemote := doi.NormalizeGitHubURL(r.RemoteURL)
		if rec, ok := byGitHubURL[normalizedRemote]; ok {
			r.CitationDOI = rec.PreferredDOI()
			continue
		}
		if rec, ok := byTitle[normalizeTitle(r.Name)]; ok {
			r.CitationDOI = rec.PreferredDOI()
		}
	}
	return nil
}

func normalizeTitle(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r + ('a' - 'A')
		}
		out = append(out, r)
	}
	return string(out)
}
