// Package discovery walks configured root directories and yields the
// absolute, canonical paths of git working copies found beneath them.
// Recursion stops at the first .git entry on a branch of the tree, so
// nested repositories (vendored checkouts, submodules) are never
// double-counted.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotADirectory is returned by ValidateRoot when a configured root
// exists but is not a directory — a CLI-argument error (exit code 2),
// distinct from a root that simply has no working copies beneath it.
var ErrNotADirectory = errors.New("discovery: root is not a directory")

// ValidateRoot checks that a literal root path (no glob; a leading `~` is
// expanded) exists
// and is a directory, surfacing a typed error the cmd layer can map to an
// exit code rather than silently skipping it the way Walk does.
func ValidateRoot(root string) error {
	info, err := os.Stat(expandHome(root))
	if err != nil {
		return fmt.Errorf("%w: %s", err, root)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, root)
	}
	return nil
}

// defaultExcludes prunes directories that are never themselves working
// copies worth indexing: build output, dependency caches, vendored trees.
// Matching is by base name and is case-insensitive.
var defaultExcludes = buildDefaultExcludes()

func buildDefaultExcludes() map[string]bool {
	names := []string{
		"node_modules", ".venv", "venv", "__pycache__", "_deps", "build",
		"cmake-build-debug", "cmake-build-release", "target", "dist", "out",
		".tox", "vendor", "third_party", "external", "deps",
	}
	set := make(map[string]bool, len(names)*2)
	for _, n := range names {
		set[n] = true
		set[strings.ToLower(n)] = true
	}
	return set
}

func isExcluded(name string, extra map[string]bool) bool {
	lower := strings.ToLower(name)
	if defaultExcludes[lower] {
		return true
	}
	if extra[lower] {
		return true
	}
	if strings.HasPrefix(lower, "build-") || strings.HasPrefix(lower, "cmake-build-") {
		return true
	}
	return false
}

// Options configures a Walk call.
type Options struct {
	// Exclude is added to the default exclude set (base names, case-insensitive).
	Exclude []string
}

// Walk resolves each root specification (a literal path, a path containing
// `~` for home expansion, a shell glob, or a glob prefixed with `**` to
// force a recursive search of its base) and returns the canonical, deduped,
// absolute paths of every working copy found.
func Walk(roots []string, opts Options) ([]string, error) {
	extra := make(map[string]bool, len(opts.Exclude))
	for _, e := range opts.Exclude {
		extra[strings.ToLower(e)] = true
	}

	seen := make(map[string]bool)
	var out []string

	addRepo := func(path string) error {
		canon, err := canonicalize(path)
		if err != nil {
			return nil // unreadable path; skip rather than fail the whole walk
		}
		if seen[canon] {
			return nil
		}
		seen[canon] = true
		out = append(out, canon)
		return nil
	}

	for _, spec := range roots {
		spec = expandHome(spec)

		if strings.Contains(spec, "**") {
			base := strings.SplitN(spec, "**", 2)[0]
			base = strings.TrimSuffix(base, string(filepath.Separator))
			if base == "" {
				base = "."
			}
			if err := walkOne(base, extra, addRepo); err != nil {
				return nil, err
			}
			continue
		}

		matches, err := filepath.Glob(spec)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			// Not a glob pattern, or no matches — try the literal path.
			matches = []string{spec}
		}
		for _, m := range matches {
			if err := walkOne(m, extra, addRepo); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func walkOne(root string, extra map[string]bool, addRepo func(string) error) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // an unreadable subtree is skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isExcluded(d.Name(), extra) {
			return filepath.SkipDir
		}
		if isWorkingCopy(path) {
			if err := addRepo(path); err != nil {
				return err
			}
			return filepath.SkipDir
		}
		return nil
	})
}

// isWorkingCopy reports whether dir contains a .git entry — a directory for
// a normal clone, or a file for a submodule/worktree pointing at the real
// git-dir elsewhere.
func isWorkingCopy(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func expandHome(spec string) string {
	if spec == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return spec
	}
	if strings.HasPrefix(spec, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, spec[2:])
		}
	}
	return spec
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil // path vanished between stat and resolve; fall back to abs
	}
	return resolved, nil
}
