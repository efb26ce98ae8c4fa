// Package gitutil wraps go-git to answer the questions a repository refresh
// needs about a local working copy: current branch, upstream, ahead/behind
// counts, dirty/stash state, remotes, tags, and recent commit history.
package gitutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// maxAncestorScan bounds the ahead/behind BFS so a repository with an
// enormous history cannot make a refresh run unboundedly long.
const maxAncestorScan = 2000

// State classifies the relationship between a branch and its upstream.
type State string

const (
	StateUpToDate   State = "up-to-date"
	StateAhead      State = "ahead"
	StateBehind     State = "behind"
	StateDiverged   State = "diverged"
	StateNoUpstream State = "no-upstream"
	StateDetached   State = "detached"
)

// Status is the computed sync information for one working copy.
type Status struct {
	Branch    string
	State     State
	Dirty     bool
	Stashed   bool
	Ahead     int
	Behind    int
	Untracked int
	Upstream  string
	HeadHash  string
}

// Commit is a single entry from a repository's log, trimmed to the fields
// the event scanner and citation/publication matching need.
type Commit struct {
	Hash        string
	Author      string
	Email       string
	Message     string
	Timestamp   time.Time
	ParentCount int
}

// Repo is an opened working copy. Callers obtain one via Open and reuse it
// across the several queries a refresh needs, rather than reopening the
// on-disk repository for each call.
type Repo struct {
	path string
	r    *git.Repository
}

// Open opens the git repository rooted at path.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("gitutil: open %s: %w", path, err)
	}
	return &Repo{path: path, r: r}, nil
}

// Status computes the branch/sync/dirty/stash summary for the repository.
// When fetch is true, the upstream remote is fetched first so ahead/behind
// counts reflect the remote's current state rather than the last fetch.
func (g *Repo) Status(fetch bool) (Status, error) {
	var st Status

	headRef, err := g.r.Head()
	branchName := "DETACHED"
	if err == nil && headRef.Name().IsBranch() {
		branchName = headRef.Name().Short()
	}
	st.Branch = branchName
	if headRef != nil {
		st.HeadHash = headRef.Hash().String()
	}

	upstream := ""
	if headRef != nil && headRef.Name().IsBranch() {
		if cfg, err := g.r.Config(); err == nil {
			for name, b := range cfg.Branches {
				if name == branchName && b.Remote != "" && b.Merge != "" {
					upstream = fmt.Sprintf("%s/%s", b.Remote, b.Merge.Short())
					break
				}
			}
		}
	}
	st.Upstream = upstream

	if fetch && upstream != "" {
		remoteName := strings.SplitN(upstream, "/", 2)[0]
		if rem, err := g.r.Remote(remoteName); err == nil {
			_ = rem.Fetch(&git.FetchOptions{Tags: git.AllTags})
		}
	}

	if wt, err := g.r.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			st.Dirty = !status.IsClean()
			for _, fs := range status {
				if fs.Worktree == git.Untracked {
					st.Untracked++
				}
			}
		}
	}
	st.Stashed = g.hasStash()

	if upstream == "" {
		if branchName == "DETACHED" {
			st.State = StateDetached
		} else {
			st.State = StateNoUpstream
		}
		return st, nil
	}

	remoteParts := strings.SplitN(upstream, "/", 2)
	remoteRef, err := g.r.Reference(plumbing.NewRemoteReferenceName(remoteParts[0], remoteParts[1]), true)
	if err != nil {
		st.State = StateNoUpstream
		return st, nil
	}

	ahead, behind := g.aheadBehind(headRef.Hash(), remoteRef.Hash())
	st.Ahead, st.Behind = ahead, behind
	switch {
	case headRef.Hash() == remoteRef.Hash():
		st.State = StateUpToDate
	case ahead > 0 && behind == 0:
		st.State = StateAhead
	case behind > 0 && ahead == 0:
		st.State = StateBehind
	default:
		st.State = StateDiverged
	}
	return st, nil
}

func (g *Repo) hasStash() bool {
	gitDir := filepath.Join(g.path, ".git")
	for _, p := range []string{
		filepath.Join(gitDir, "logs", "refs", "stash"),
		filepath.Join(gitDir, "refs", "stash"),
	} {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return true
		}
	}
	return false
}

// aheadBehind performs a bounded ancestor BFS from local and remote heads,
// returning how many commits are reachable from one but not the other.
func (g *Repo) aheadBehind(local, remote plumbing.Hash) (ahead, behind int) {
	localAnc := g.ancestors(local)
	remoteAnc := g.ancestors(remote)

	for h := range localAnc {
		if _, ok := remoteAnc[h]; !ok {
			ahead++
		}
	}
	for h := range remoteAnc {
		if _, ok := localAnc[h]; !ok {
			behind++
		}
	}
	if _, ok := remoteAnc[local]; ok {
		ahead--
	}
	if _, ok := localAnc[remote]; ok {
		behind--
	}
	if ahead < 0 {
		ahead = 0
	}
	if behind < 0 {
		behind = 0
	}
	return ahead, behind
}

func (g *Repo) ancestors(start plumbing.Hash) map[plumbing.Hash]struct{} {
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{start}
	for len(queue) > 0 && len(seen) < maxAncestorScan {
		h := queue[0]
		queue = queue[1:]
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		c, err := g.r.CommitObject(h)
		if err != nil {
			continue
		}
		queue = append(queue, c.ParentHashes...)
	}
	return seen
}

// RemoteURL returns the fetch URL of the named remote ("origin" is the
// conventional default), or "" if the remote does not exist.
func (g *Repo) RemoteURL(name string) string {
	rem, err := g.r.Remote(name)
	if err != nil || len(rem.Config().URLs) == 0 {
		return ""
	}
	return rem.Config().URLs[0]
}

// Tags returns the repository's tag names in lexical order.
func (g *Repo) Tags() ([]string, error) {
	iter, err := g.r.Tags()
	if err != nil {
		return nil, fmt.Errorf("gitutil: list tags: %w", err)
	}
	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(tags)
	return tags, nil
}

// TagDetail is one tag with the timestamp and message the event scanner
// needs to place it in a time window. For annotated tags the tagger time
// and tag message are used; lightweight tags fall back to the target
// commit's committer time.
type TagDetail struct {
	Name      string
	Hash      string
	Message   string
	Timestamp time.Time
}

// TagDetails returns every tag with its resolved timestamp, message and
// target commit hash, in lexical order by name.
func (g *Repo) TagDetails() ([]TagDetail, error) {
	iter, err := g.r.Tags()
	if err != nil {
		return nil, fmt.Errorf("gitutil: list tags: %w", err)
	}
	var tags []TagDetail
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		d := TagDetail{Name: ref.Name().Short(), Hash: ref.Hash().String()}
		if tagObj, err := g.r.TagObject(ref.Hash()); err == nil {
			d.Message = strings.TrimRight(tagObj.Message, "\n")
			d.Timestamp = tagObj.Tagger.When.UTC()
			if c, err := tagObj.Commit(); err == nil {
				d.Hash = c.Hash.String()
			}
		} else if c, err := g.r.CommitObject(ref.Hash()); err == nil {
			d.Timestamp = c.Committer.When.UTC()
		}
		tags = append(tags, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// Log returns commits reachable from HEAD with a timestamp at or after
// since, most recent first.
func (g *Repo) Log(since time.Time) ([]Commit, error) {
	headRef, err := g.r.Head()
	if err != nil {
		return nil, fmt.Errorf("gitutil: resolve HEAD: %w", err)
	}
	iter, err := g.r.Log(&git.LogOptions{From: headRef.Hash()})
	if err != nil {
		return nil, fmt.Errorf("gitutil: walk log: %w", err)
	}
	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Author.When.Before(since) {
			return nil
		}
		commits = append(commits, Commit{
			Hash:        c.Hash.String(),
			Author:      c.Author.Name,
			Email:       c.Author.Email,
			Message:     strings.TrimRight(c.Message, "\n"),
			Timestamp:   c.Author.When.UTC(),
			ParentCount: c.NumParents(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// Branches returns local branch names in lexical order.
func (g *Repo) Branches() ([]string, error) {
	iter, err := g.r.Branches()
	if err != nil {
		return nil, fmt.Errorf("gitutil: list branches: %w", err)
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// BranchEvent is a single HEAD reflog entry, used to derive branch
// checkout events.
type BranchEvent struct {
	Branch    string
	Action    string
	Timestamp time.Time
}

// ReflogBranchEvents parses the HEAD reflog for checkout actions, returning
// one event per "checkout: moving from X to Y" entry.
func (g *Repo) ReflogBranchEvents() ([]BranchEvent, error) {
	raw, err := os.ReadFile(filepath.Join(g.path, ".git", "logs", "HEAD"))
	if err != nil {
		return nil, nil // no reflog; branch events are best-effort
	}
	var events []BranchEvent
	for _, line := range strings.Split(string(raw), "\n") {
		header, msg, ok := strings.Cut(line, "\t")
		if !ok || !strings.HasPrefix(msg, "checkout: moving from ") {
			continue
		}
		// header is "<old> <new> <ident> <ts> <tz>"; the identity may
		// contain spaces, so the timestamp is located from the end.
		hf := strings.Fields(header)
		if len(hf) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(hf[len(hf)-2], 10, 64)
		if err != nil {
			continue
		}
		tail := strings.TrimPrefix(msg, "checkout: moving from ")
		parts := strings.SplitN(tail, " to ", 2)
		if len(parts) != 2 {
			continue
		}
		events = append(events, BranchEvent{
			Branch:    strings.TrimSpace(parts[1]),
			Action:    "checkout",
			Timestamp: time.Unix(ts, 0).UTC(),
		})
	}
	return events, nil
}
