package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/flowgraph/expr"
)

// ToTree returns the document as an ordered tree in wire key order.
func ToTree(doc *Document) *expr.OrderedMap {
	root := expr.NewOrderedMap()
	if doc.Schema != "" {
		root.Set("$schema", doc.Schema)
	}
	root.Set("name", doc.Name)
	if doc.Description != "" {
		root.Set("description", doc.Description)
	}
	if doc.InputSchema != nil {
		root.Set("input_schema", doc.InputSchema)
	}
	if doc.BatchSchema != nil {
		root.Set("batch_schema", doc.BatchSchema)
	}
	steps := make([]any, 0, len(doc.Steps))
	for i := range doc.Steps {
		steps = append(steps, stepTree(&doc.Steps[i]))
	}
	root.Set("steps", steps)
	if doc.Output != nil {
		root.Set("output", expr.ToValue(doc.Output))
	}
	return root
}

func stepTree(s *Step) *expr.OrderedMap {
	m := expr.NewOrderedMap()
	m.Set("id", s.ID)
	m.Set("component", s.Component)
	input := s.Input
	if input == nil {
		input = expr.Object{}
	}
	m.Set("input", expr.ToValue(input))
	if s.OnError != nil {
		m.Set("on_error", s.OnError.tree())
	}
	if s.MustExecute {
		m.Set("must_execute", true)
	}
	if len(s.Metadata) > 0 {
		m.Set("metadata", s.Metadata)
	}
	return m
}

func (h *ErrorHandler) tree() *expr.OrderedMap {
	m := expr.NewOrderedMap()
	m.Set("type", h.Type)
	if h.MaxAttempts > 0 {
		m.Set("max_attempts", float64(h.MaxAttempts))
	}
	if h.HasValue {
		m.Set("value", h.Value)
	}
	return m
}

// RenderJSON renders the document as indented JSON.
func RenderJSON(doc *Document) ([]byte, error) {
	raw, err := expr.MarshalJSON(ToTree(doc))
	if err != nil {
		return nil, fmt.Errorf("wire: render json: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("wire: render json: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Render renders the document in the given format.
func Render(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return RenderJSON(doc)
	case FormatText:
		return RenderText(doc)
	}
	return nil, fmt.Errorf("wire: unknown format %q", format)
}
