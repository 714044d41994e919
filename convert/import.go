package convert

import (
	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/validate"
	"github.com/meikuraledutech/flowgraph/wire"
)

// ImportResult is the outcome of Import.
type ImportResult struct {
	Workflow      *flowgraph.Workflow
	Document      *wire.Document
	Validation    *validate.Result
	Compatibility *validate.Report
}

// Import parses, validates and reconstructs a document. An empty format is
// detected from the data. When validation fails the result still carries
// the validation report and the error is *InvalidDocumentError. Graph
// problems in the reconstruction, such as steps referencing each other in a
// loop, are reported the same way.
func Import(data []byte, format wire.Format, opts ...Option) (*ImportResult, error) {
	o := buildOptions(opts)
	if format == "" {
		format = wire.DetectFormat(data)
	}
	doc, res := validate.Bytes(data, format, o.registry)
	out := &ImportResult{Document: doc, Validation: res}
	if !res.Valid {
		return out, &InvalidDocumentError{Result: res}
	}
	out.Compatibility = validate.Compatibility(doc, o.registry)

	w, err := Reconstruct(doc, WithRegistry(o.registry), WithLayoutSpacing(o.spacing))
	if err != nil {
		return out, err
	}
	res.Merge(validate.Graph(w))
	if !res.Valid {
		return out, &InvalidDocumentError{Result: res}
	}
	out.Workflow = w
	return out, nil
}

// Export compiles a graph and renders it in the given format.
func Export(w *flowgraph.Workflow, format wire.Format, opts ...Option) ([]byte, *Result, error) {
	res, err := Compile(w, opts...)
	if err != nil {
		return nil, nil, err
	}
	data, err := wire.Render(res.Document, format)
	if err != nil {
		return nil, nil, err
	}
	return data, res, nil
}
