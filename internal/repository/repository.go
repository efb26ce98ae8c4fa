// Package repository implements the repository service facade: discovery,
// on-demand enrichment via the refresh pipeline, and two filter surfaces
// over the store — the DSL compiler (preferred) and a small interpreter
// for legacy short forms like lang:python or tag:work/*.
package repository

import (
	"context"
	"strings"

	"github.com/gdesouza/repoindex/internal/discovery"
	"github.com/gdesouza/repoindex/internal/querylang"
	"github.com/gdesouza/repoindex/internal/refresh"
	"github.com/gdesouza/repoindex/internal/store"
)

// Service is a facade over the store, discovery, and refresh pipeline. It
// exposes no write operations beyond enrichment through the refresh
// pipeline — the store itself owns all persistence.
type Service struct {
	Store *store.Store
	Views map[string]string
}

// New builds a Service over an already-open store, with view in views
// available for @name expansion in Query.
func New(st *store.Store, views map[string]string) *Service {
	return &Service{Store: st, Views: views}
}

// Discover walks roots and returns the working-copy paths found, without
// touching the store — a read-only preview of what Refresh would enrich.
func (s *Service) Discover(roots []string, exclude []string) ([]string, error) {
	return discovery.Walk(roots, discovery.Options{Exclude: exclude})
}

// Refresh invokes the refresh pipeline with opts and returns its stats.
func (s *Service) Refresh(ctx context.Context, opts refresh.Options) (refresh.Stats, error) {
	return refresh.Run(ctx, s.Store, opts)
}

// Query compiles dsl and executes it against the store, resolving any
// @name view references registered on the Service.
func (s *Service) Query(ctx context.Context, dsl string) ([]*store.Repository, error) {
	compiler := querylang.New(s.Views)
	compiled, err := compiler.Compile(dsl)
	if err != nil {
		return nil, err
	}
	return s.Store.Query(ctx, compiled.SQL, compiled.Params)
}

// All returns every repository row, unfiltered.
func (s *Service) All(ctx context.Context) ([]*store.Repository, error) {
	return s.Store.AllRepos(ctx)
}

// FilterByTags implements the legacy short-form filter interpreter:
// `lang:python` matches Repository.Language case-insensitively, `tag:x/*`
// matches any attached tag via glob, and a bare token matches a tag by
// exact string. matchAll selects AND semantics across patterns instead of
// OR.
func (s *Service) FilterByTags(ctx context.Context, patterns []string, matchAll bool) ([]*store.Repository, error) {
	all, err := s.Store.AllRepos(ctx)
	if err != nil {
		return nil, err
	}
	tagsByRepo, err := s.Store.ReposWithTags(ctx)
	if err != nil {
		return nil, err
	}

	var out []*store.Repository
	for _, r := range all {
		matches := make([]bool, len(patterns))
		for i, p := range patterns {
			matches[i] = matchesPattern(r, tagsByRepo[r.ID], p)
		}
		if patternsSatisfy(matches, matchAll) {
			out = append(out, r)
		}
	}
	return out, nil
}

func patternsSatisfy(matches []bool, matchAll bool) bool {
	if len(matches) == 0 {
		return true
	}
	for _, m := range matches {
		if matchAll && !m {
			return false
		}
		if !matchAll && m {
			return true
		}
	}
	return matchAll
}

func matchesPattern(r *store.Repository, tags []store.Tag, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "lang:"):
		lang := strings.TrimPrefix(pattern, "lang:")
		return strings.EqualFold(r.Language, lang)
	case strings.HasPrefix(pattern, "tag:"):
		spec := strings.TrimPrefix(pattern, "tag:")
		for _, t := range tags {
			if globMatch(spec, t.Tag) {
				return true
			}
		}
		return false
	default:
		for _, t := range tags {
			if t.Tag == pattern {
				return true
			}
		}
		return false
	}
}

// globMatch supports a single trailing `*` wildcard, the only form the
// legacy tag filter grammar (`key:segment/*`) uses.
func globMatch(pattern, value string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == value
}
