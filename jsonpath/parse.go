// Package jsonpath implements the path-query language used in step
// references: dotted and bracketed field access, (negative) indexes,
// wildcards, Python-style slices, single-comparison filters and recursive
// descent. Filters only compare fields of the candidate element against a
// literal; nothing in a path can execute code.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"
)

type selectorKind int

const (
	selName selectorKind = iota
	selIndex
	selWildcard
	selSlice
	selFilter
)

type segment struct {
	recursive bool
	kind      selectorKind
	name      string
	index     int
	slice     sliceSpec
	filter    *filter
}

type sliceSpec struct {
	start, end *int
	step       int
}

// Query is a parsed path.
type Query struct {
	raw      string
	segments []segment
}

// SyntaxError reports a malformed path with the byte offset of the problem.
type SyntaxError struct {
	Path   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("jsonpath: %s at offset %d in %q", e.Msg, e.Offset, e.Path)
}

// String returns the normalized source text of the query.
func (q *Query) String() string { return q.raw }

// Singular reports whether the query addresses at most one value, i.e. it
// uses only names and indexes.
func (q *Query) Singular() bool {
	for _, s := range q.segments {
		if s.recursive || (s.kind != selName && s.kind != selIndex) {
			return false
		}
	}
	return true
}

// Normalize turns the shorthand forms "", "a.b" and "[0]" into "$"-rooted
// paths.
func Normalize(path string) string {
	p := strings.TrimSpace(path)
	switch {
	case p == "":
		return "$"
	case strings.HasPrefix(p, "$"):
		return p
	case strings.HasPrefix(p, "[") || strings.HasPrefix(p, "."):
		return "$" + p
	default:
		return "$." + p
	}
}

// Parse compiles a path.
func Parse(path string) (*Query, error) {
	p := Normalize(path)
	q := &Query{raw: p}
	pr := &parser{src: p, pos: 1}
	for pr.pos < len(p) {
		seg, err := pr.segment()
		if err != nil {
			return nil, err
		}
		q.segments = append(q.segments, seg)
	}
	return q, nil
}

// MustParse is Parse for constant paths.
func MustParse(path string) *Query {
	q, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return q
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Path: p.src, Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) peek(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func (p *parser) segment() (segment, error) {
	switch {
	case p.peek(".."):
		p.pos += 2
		var seg segment
		var err error
		switch {
		case p.peek("*"):
			p.pos++
			seg = segment{kind: selWildcard}
		case p.peek("["):
			seg, err = p.bracket()
		default:
			seg, err = p.name()
		}
		seg.recursive = true
		return seg, err
	case p.peek("."):
		p.pos++
		if p.peek("*") {
			p.pos++
			return segment{kind: selWildcard}, nil
		}
		return p.name()
	case p.peek("["):
		return p.bracket()
	}
	return segment{}, p.errorf("unexpected character %q", p.src[p.pos])
}

func (p *parser) name() (segment, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '.' && p.src[p.pos] != '[' {
		p.pos++
	}
	if p.pos == start {
		return segment{}, p.errorf("empty field name")
	}
	return segment{kind: selName, name: p.src[start:p.pos]}, nil
}

func (p *parser) bracket() (segment, error) {
	p.pos++ // [
	p.skipSpace()
	if p.pos >= len(p.src) {
		return segment{}, p.errorf("unterminated bracket")
	}
	var seg segment
	switch c := p.src[p.pos]; {
	case c == '*':
		p.pos++
		seg = segment{kind: selWildcard}
	case c == '\'' || c == '"':
		s, err := p.quoted()
		if err != nil {
			return segment{}, err
		}
		seg = segment{kind: selName, name: s}
	case c == '?':
		f, err := p.filterExpr()
		if err != nil {
			return segment{}, err
		}
		seg = segment{kind: selFilter, filter: f}
	default:
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return segment{}, p.errorf("unterminated bracket")
		}
		body := strings.TrimSpace(p.src[p.pos : p.pos+end])
		var err error
		if strings.Contains(body, ":") {
			seg, err = p.sliceBody(body)
		} else {
			var n int
			n, err = strconv.Atoi(body)
			if err != nil {
				err = p.errorf("invalid index %q", body)
			}
			seg = segment{kind: selIndex, index: n}
		}
		if err != nil {
			return segment{}, err
		}
		p.pos += end
	}
	p.skipSpace()
	if !p.peek("]") {
		return segment{}, p.errorf("expected ']'")
	}
	p.pos++
	return seg, nil
}

func (p *parser) sliceBody(body string) (segment, error) {
	parts := strings.Split(body, ":")
	if len(parts) > 3 {
		return segment{}, p.errorf("invalid slice %q", body)
	}
	spec := sliceSpec{step: 1}
	bound := func(s string) (*int, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, p.errorf("invalid slice bound %q", s)
		}
		return &n, nil
	}
	var err error
	if spec.start, err = bound(parts[0]); err != nil {
		return segment{}, err
	}
	if spec.end, err = bound(parts[1]); err != nil {
		return segment{}, err
	}
	if len(parts) == 3 {
		step, err := bound(parts[2])
		if err != nil {
			return segment{}, err
		}
		if step != nil {
			if *step == 0 {
				return segment{}, p.errorf("slice step cannot be zero")
			}
			spec.step = *step
		}
	}
	return segment{kind: selSlice, slice: spec}, nil
}

func (p *parser) quoted() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// filterExpr parses ?(...) up to, not including, the closing bracket.
func (p *parser) filterExpr() (*filter, error) {
	p.pos++ // ?
	p.skipSpace()
	if !p.peek("(") {
		return nil, p.errorf("expected '(' after '?'")
	}
	p.pos++
	start := p.pos
	depth := 1
	var quote byte
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case quote != 0:
			if c == '\\' {
				p.pos++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				body := p.src[start:p.pos]
				p.pos++
				f, err := parseFilter(body)
				if err != nil {
					return nil, &SyntaxError{Path: p.src, Offset: start, Msg: err.Error()}
				}
				return f, nil
			}
		}
		p.pos++
	}
	return nil, p.errorf("unterminated filter")
}
