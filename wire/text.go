package wire

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meikuraledutech/flowgraph/expr"
)

// RenderText renders the document as indented text. Header fields and the
// steps block come first, followed by a blank line and the output block.
func RenderText(doc *Document) ([]byte, error) {
	tree := ToTree(doc)
	head := &expr.OrderedMap{Values: tree.Values}
	var output any
	hasOutput := false
	for _, k := range tree.Keys {
		if k == "output" {
			output, hasOutput = tree.Values[k], true
			continue
		}
		head.Keys = append(head.Keys, k)
	}

	var buf bytes.Buffer
	if err := encodeText(&buf, head); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	if hasOutput {
		tail := expr.NewOrderedMap()
		tail.Set("output", output)
		if err := encodeText(&buf, tail); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeText(buf *bytes.Buffer, v any) error {
	node, err := toNode(v)
	if err != nil {
		return fmt.Errorf("wire: render text: %w", err)
	}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("wire: render text: %w", err)
	}
	return enc.Close()
}

func toNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(t)}, nil
	case string:
		n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t}
		if strings.ContainsAny(t, "\"\\\n\t") {
			n.Style = yaml.DoubleQuotedStyle
		}
		return n, nil
	case int:
		return numberNode(float64(t)), nil
	case float64:
		return numberNode(t), nil
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return toNode(items)
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			n, err := toNode(item)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case *expr.OrderedMap:
		return mappingNode(t.Keys, t.Values)
	case map[string]any:
		return mappingNode(expr.SortedKeys(t), t)
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

func mappingNode(keys []string, values map[string]any) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		key, _ := toNode(k)
		val, err := toNode(values[k])
		if err != nil {
			return nil, err
		}
		m.Content = append(m.Content, key, val)
	}
	return m, nil
}

func numberNode(f float64) *yaml.Node {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(f), 10)}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(f, 'f', -1, 64)}
}
