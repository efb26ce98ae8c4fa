// Package view implements the DSL-level view system: named,
// composable predicates the query compiler expands via @name. This is
// distinct from the persistent SQL views (v_active_repos, v_stale_repos,
// v_repo_stats) the store maintains — those are fixed, not user-defined.
package view

import "fmt"

// View is a named predicate, optionally composed from other named views
// and an explicit list of repository paths.
type View struct {
	Name      string   `yaml:"name"`
	Predicate string   `yaml:"predicate,omitempty"`
	Composed  []string `yaml:"composed,omitempty"`
	Paths     []string `yaml:"paths,omitempty"`
}

// Set is a collection of named views, keyed by name.
type Set map[string]View

// Predicates flattens a Set into the name->predicate-source map the
// query compiler expects for @name expansion. A view composed of other
// views is rendered as a parenthesized `or` of its components; a view with
// an explicit path list is rendered as a `path in '<p1>,<p2>,...'` predicate.
func (s Set) Predicates() (map[string]string, error) {
	out := make(map[string]string, len(s))
	for name, v := range s {
		pred, err := v.resolve(s, map[string]bool{})
		if err != nil {
			return nil, err
		}
		out[name] = pred
	}
	return out, nil
}

func (v View) resolve(all Set, visiting map[string]bool) (string, error) {
	if visiting[v.Name] {
		return "", fmt.Errorf("view: cyclic reference to %q", v.Name)
	}
	visiting[v.Name] = true
	defer delete(visiting, v.Name)

	switch {
	case v.Predicate != "":
		return v.Predicate, nil
	case len(v.Composed) > 0:
		parts := make([]string, 0, len(v.Composed))
		for _, name := range v.Composed {
			sub, ok := all[name]
			if !ok {
				return "", fmt.Errorf("view: unknown composed view %q referenced by %q", name, v.Name)
			}
			subPred, err := sub.resolve(all, visiting)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+subPred+")")
		}
		result := parts[0]
		for _, p := range parts[1:] {
			result += " or " + p
		}
		return result, nil
	case len(v.Paths) > 0:
		// The compiler's `in` operator takes one comma-separated scalar.
		list := v.Paths[0]
		for _, p := range v.Paths[1:] {
			list += "," + p
		}
		return "path in '" + list + "'", nil
	default:
		return "", nil
	}
}
