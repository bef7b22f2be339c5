// Filename: javascript/catalog.go
package javascript

import "strings"

// SourceMatcher decides whether an expression, given as its exact source text,
// is an entry point for untrusted data. It returns the catalog entry that
// matched.
type SourceMatcher interface {
	MatchSource(text string) (pattern string, ok bool)
}

// SourceMatcherFunc adapts a plain function to SourceMatcher.
type SourceMatcherFunc func(text string) (string, bool)

// MatchSource calls f(text).
func (f SourceMatcherFunc) MatchSource(text string) (string, bool) {
	return f(text)
}

// SourceCatalog is an ordered list of source patterns. An expression is a
// source when its text starts with one of the patterns (case-sensitive). The
// first matching pattern wins.
//
// Matching is textual: `req .body` or `req["body"]` will not match `req.body`.
type SourceCatalog []string

// MatchSource implements SourceMatcher by prefix.
func (c SourceCatalog) MatchSource(text string) (string, bool) {
	for _, pattern := range c {
		if pattern != "" && strings.HasPrefix(text, pattern) {
			return pattern, true
		}
	}
	return "", false
}

// Merge returns a new catalog with the entries of extra appended, skipping
// duplicates. The receiver is not modified.
func (c SourceCatalog) Merge(extra ...string) SourceCatalog {
	return SourceCatalog(mergeUnique(c, extra))
}

// SinkCatalog is an ordered list of method names treated as dangerous when
// invoked as `obj.method(...)`.
type SinkCatalog []string

// Contains reports whether method is in the catalog. Comparison is exact.
func (c SinkCatalog) Contains(method string) bool {
	for _, name := range c {
		if name == method {
			return true
		}
	}
	return false
}

// Merge returns a new catalog with the entries of extra appended, skipping
// duplicates. The receiver is not modified.
func (c SinkCatalog) Merge(extra ...string) SinkCatalog {
	return SinkCatalog(mergeUnique(c, extra))
}

func mergeUnique(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			if _, dup := seen[s]; dup || s == "" {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
