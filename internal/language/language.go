// Package language detects the language mix of a repository's working
// copy: a byte-weighted tally per language and the single primary
// language by that weight. Generated and binary files are excluded before
// tallying.
package language

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-enry/go-enry/v2"
)

// maxSniffBytes bounds how much of a file is read for content-based
// detection; large files are tallied by their full size but classified
// from just the head.
const maxSniffBytes = 16 * 1024

// Breakdown is the byte count tallied per detected language.
type Breakdown map[string]int64

// Primary returns the language with the largest tally, or "" if the
// breakdown is empty. Ties break on lexical order for determinism.
func (b Breakdown) Primary() string {
	best, bestSize := "", int64(-1)
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if b[name] > bestSize {
			best, bestSize = name, b[name]
		}
	}
	return best
}

// Names returns the detected languages in lexical order.
func (b Breakdown) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// skipDirs is pruned from the walk outright: VCS metadata and common
// dependency/output directories that would otherwise dominate the tally
// with vendored or generated code.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".venv": true, "__pycache__": true,
}

// Analyze walks repoPath and returns the byte-weighted language breakdown
// of its tracked-looking files (binary and generated files are skipped).
func Analyze(repoPath string) (Breakdown, error) {
	sizes := make(Breakdown)

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if path != repoPath && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			rel = path
		}

		content, err := sniff(path, info.Size())
		if err != nil {
			return nil
		}
		if enry.IsGenerated(rel, content) || enry.IsBinary(content) {
			return nil
		}

		lang := classify(rel, content)
		if lang == enry.OtherLanguage || lang == "" {
			return nil
		}
		if group := enry.GetLanguageGroup(lang); group != "" {
			lang = group
		}
		langType := enry.GetLanguageType(lang)
		if langType != enry.Programming && langType != enry.Markup && langType != enry.Unknown {
			return nil
		}

		sizes[lang] += info.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sizes, nil
}

func sniff(path string, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := size
	if n > maxSniffBytes {
		n = maxSniffBytes
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

func classify(relPath string, content []byte) string {
	if lang, ok := enry.GetLanguageByExtension(relPath); ok {
		return lang
	}
	if lang, ok := enry.GetLanguageByFilename(filepath.Base(relPath)); ok {
		return lang
	}
	if len(content) == 0 {
		return enry.OtherLanguage
	}
	return enry.GetLanguage(relPath, content)
}
