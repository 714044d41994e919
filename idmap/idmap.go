// Package idmap builds the reversible mapping between arbitrary graph node
// ids and step identifiers that satisfy ^[a-zA-Z_][a-zA-Z0-9_]*$.
package idmap

import (
	"regexp"
	"strconv"
	"strings"
)

// IdentifierPattern is the step identifier grammar.
var IdentifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Valid reports whether id is a legal step identifier.
func Valid(id string) bool {
	return IdentifierPattern.MatchString(id)
}

// Base replaces every character outside [a-zA-Z0-9_] with '_' and prefixes
// '_' when the result would start with a digit or be empty.
func Base(id string) string {
	var b strings.Builder
	b.Grow(len(id) + 1)
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

// Sanitize returns the step identifier for id given the identifiers already
// assigned. Collisions get _1, _2, ... appended until unique.
func Sanitize(id string, existing map[string]bool) string {
	base := Base(id)
	if !existing[base] {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !existing[candidate] {
			return candidate
		}
	}
}

// Mapping is a bijection between original node ids and step identifiers.
type Mapping struct {
	OriginalToSanitized map[string]string `json:"originalToSanitized"`
	SanitizedToOriginal map[string]string `json:"sanitizedToOriginal"`
}

// New returns an empty mapping.
func New() *Mapping {
	return &Mapping{
		OriginalToSanitized: make(map[string]string),
		SanitizedToOriginal: make(map[string]string),
	}
}

// Build sanitizes ids in order. The result only depends on the input order,
// so repeated builds over the same ids yield the same mapping. A repeated
// original id maps to the identifier it was first given.
func Build(ids []string) *Mapping {
	m := New()
	assigned := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.OriginalToSanitized[id]; ok {
			continue
		}
		s := Sanitize(id, assigned)
		assigned[s] = true
		m.OriginalToSanitized[id] = s
		m.SanitizedToOriginal[s] = id
	}
	return m
}

// Sanitized returns the step identifier for an original id. Ids outside the
// mapping resolve to themselves when already legal and to their Base form
// otherwise.
func (m *Mapping) Sanitized(original string) string {
	if m != nil {
		if s, ok := m.OriginalToSanitized[original]; ok {
			return s
		}
		if _, ok := m.SanitizedToOriginal[original]; ok {
			return original
		}
	}
	if Valid(original) {
		return original
	}
	return Base(original)
}

// Original returns the node id behind a step identifier, or the identifier
// itself when it is not mapped.
func (m *Mapping) Original(sanitized string) string {
	if m != nil {
		if o, ok := m.SanitizedToOriginal[sanitized]; ok {
			return o
		}
	}
	return sanitized
}

// Add records an explicit pair. It is used on import where step metadata
// carries the original id.
func (m *Mapping) Add(original, sanitized string) {
	m.OriginalToSanitized[original] = sanitized
	m.SanitizedToOriginal[sanitized] = original
}

// Len returns the number of mapped ids.
func (m *Mapping) Len() int {
	return len(m.OriginalToSanitized)
}
