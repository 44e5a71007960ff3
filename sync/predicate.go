package sync

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Predicate decides whether a file is fetched. It receives the remote name
// unmodified.
type Predicate func(name string) bool

// Everything selects every file.
func Everything(string) bool { return true }

// HasSuffix matches names ending in any of the suffixes, ignoring case.
func HasSuffix(suffixes ...string) Predicate {
	lower := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		if s != "" {
			lower = append(lower, strings.ToLower(s))
		}
	}
	return func(name string) bool {
		n := strings.ToLower(name)
		for _, s := range lower {
			if strings.HasSuffix(n, s) {
				return true
			}
		}
		return false
	}
}

// InSet matches names that are exactly one of names.
func InSet(names ...string) Predicate {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}

// MatchGlob matches names against shell-style patterns such as "Atos_*.zip".
func MatchGlob(patterns ...string) (Predicate, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return func(name string) bool {
		for _, g := range globs {
			if g.Match(name) {
				return true
			}
		}
		return false
	}, nil
}

// Any matches when at least one of ps matches. Nil predicates are ignored;
// with none left, Any matches nothing.
func Any(ps ...Predicate) Predicate {
	var set []Predicate
	for _, p := range ps {
		if p != nil {
			set = append(set, p)
		}
	}
	return func(name string) bool {
		for _, p := range set {
			if p(name) {
				return true
			}
		}
		return false
	}
}
