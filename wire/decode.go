package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meikuraledutech/flowgraph/expr"
)

// Format selects a rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat maps user input to a Format. "yaml" and "yml" select text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text", "yaml", "yml":
		return FormatText, nil
	}
	return "", fmt.Errorf("wire: unknown format %q", s)
}

// DetectFormat guesses the format from the first non-blank character.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatText
}

// Source is a decoded but not yet interpreted document tree.
type Source struct {
	Tree  any
	lines map[string]int
}

// Decode reads data into an ordered tree. Syntax errors are returned as a
// *ParseError carrying the line.
func Decode(data []byte, format Format) (*Source, error) {
	switch format {
	case FormatJSON:
		tree, err := expr.DecodeJSON(data)
		if err != nil {
			pe := &ParseError{Msg: err.Error()}
			var se *expr.SyntaxError
			if errors.As(err, &se) {
				pe.Line, pe.Msg = se.Line, se.Msg
			}
			return nil, pe
		}
		return &Source{Tree: tree}, nil
	case FormatText:
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, &ParseError{Line: yamlErrorLine(err), Msg: err.Error()}
		}
		src := &Source{lines: make(map[string]int)}
		if root.Kind == 0 {
			return nil, &ParseError{Msg: "empty document"}
		}
		tree, err := src.fromYAML(&root, "")
		if err != nil {
			return nil, err
		}
		src.Tree = tree
		return src, nil
	}
	return nil, fmt.Errorf("wire: unknown format %q", format)
}

// Line returns the source line recorded for path, or 0.
func (s *Source) Line(path string) int {
	for p := path; ; {
		if l, ok := s.lines[p]; ok {
			return l
		}
		i := strings.LastIndexAny(p, ".[")
		if i <= 0 {
			return s.lines[""]
		}
		p = p[:i]
	}
}

func (s *Source) fromYAML(n *yaml.Node, path string) (any, error) {
	if s.lines != nil {
		if _, seen := s.lines[path]; !seen {
			s.lines[path] = n.Line
		}
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return s.fromYAML(n.Content[0], path)
	case yaml.AliasNode:
		return s.fromYAML(n.Alias, path)
	case yaml.MappingNode:
		m := expr.NewOrderedMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, &ParseError{Path: path, Line: k.Line, Msg: "mapping keys must be scalars"}
			}
			if k.Tag == "!!merge" {
				return nil, &ParseError{Path: path, Line: k.Line, Msg: "merge keys are not supported"}
			}
			child, err := s.fromYAML(v, joinPath(path, k.Value))
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, child)
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for i, c := range n.Content {
			child, err := s.fromYAML(c, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			list = append(list, child)
		}
		return list, nil
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	}
	return nil, &ParseError{Path: path, Line: n.Line, Msg: "unsupported YAML node"}
}

func scalarFromYAML(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, &ParseError{Line: n.Line, Msg: err.Error()}
		}
		return b, nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, &ParseError{Line: n.Line, Msg: err.Error()}
		}
		return f, nil
	}
	return n.Value, nil
}

func yamlErrorLine(err error) int {
	msg := err.Error()
	i := strings.Index(msg, "line ")
	if i < 0 {
		return 0
	}
	rest := msg[i+len("line "):]
	end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(rest)
	}
	n, _ := strconv.Atoi(rest[:end])
	return n
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
