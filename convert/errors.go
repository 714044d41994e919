package convert

import (
	"fmt"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/validate"
)

// InvalidGraphError stops a compile whose graph failed validation. It
// unwraps to *flowgraph.CycleError when the graph has a cycle.
type InvalidGraphError struct {
	Result *validate.Result
}

func (e *InvalidGraphError) Error() string {
	return fmt.Sprintf("convert: invalid graph: %v", e.Result.Err())
}

func (e *InvalidGraphError) Unwrap() error {
	if at, ok := e.Result.Cycle(); ok {
		return &flowgraph.CycleError{NodeID: at}
	}
	return nil
}

// InvalidDocumentError stops an import whose document failed validation.
type InvalidDocumentError struct {
	Result *validate.Result
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("convert: invalid document: %v", e.Result.Err())
}
