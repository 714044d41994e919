package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Search scores.
const (
	ScoreExact       = 100
	ScorePrefix      = 80
	ScorePath        = 60
	ScoreName        = 40
	ScoreDescription = 20
)

// DefaultSearchLimit applies when Search is called with limit <= 0.
const DefaultSearchLimit = 10

// Match is a scored search hit.
type Match struct {
	Component Component `json:"component"`
	Score     int       `json:"score"`
}

// Search ranks components against query, best first. Ties are ordered by
// path. An empty query lists components by path.
func (r *Registry) Search(query string, limit int) []Match {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var matches []Match
	for _, c := range r.List() {
		s := score(c, q)
		if s == 0 && q != "" {
			continue
		}
		matches = append(matches, Match{Component: c, Score: s})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func score(c Component, q string) int {
	if q == "" {
		return 0
	}
	path := strings.ToLower(c.Path)
	switch {
	case path == q:
		return ScoreExact
	case strings.HasPrefix(path, q):
		return ScorePrefix
	case strings.Contains(path, q):
		return ScorePath
	case strings.Contains(strings.ToLower(c.Name), q):
		return ScoreName
	case strings.Contains(strings.ToLower(c.Description), q):
		return ScoreDescription
	}
	return 0
}

// PathError reports an unknown or malformed component path.
type PathError struct {
	Path       string
	Suggestion string
	Known      []string
}

func (e *PathError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("registry: unknown component %q, did you mean %q?", e.Path, e.Suggestion)
	}
	if len(e.Known) > 0 {
		return fmt.Sprintf("registry: unknown component %q, known components include %s", e.Path, strings.Join(e.Known, ", "))
	}
	return fmt.Sprintf("registry: invalid component path %q", e.Path)
}

const knownHintCount = 5

// ValidatePath checks that path is registered. Failing that it suggests the
// closest component under the same top-level segment, or lists a few known
// paths.
func (r *Registry) ValidatePath(path string) error {
	if _, ok := r.Get(path); ok {
		return nil
	}
	if !PathPattern.MatchString(path) {
		return &PathError{Path: path}
	}
	all := r.List()
	family := topSegment(path)
	best, bestLen := "", -1
	for _, c := range all {
		if topSegment(c.Path) != family {
			continue
		}
		if n := commonPrefix(path, c.Path); n > bestLen {
			best, bestLen = c.Path, n
		}
	}
	if best != "" {
		return &PathError{Path: path, Suggestion: best}
	}
	known := make([]string, 0, knownHintCount)
	for _, c := range all {
		if len(known) == knownHintCount {
			break
		}
		known = append(known, c.Path)
	}
	return &PathError{Path: path, Known: known}
}

func topSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
