package wire

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ParseError locates a malformed part of a document by path and, for the
// text format, by line.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "document"
	}
	if e.Line > 0 {
		return fmt.Sprintf("wire: %s (line %d): %s", loc, e.Line, e.Msg)
	}
	return fmt.Sprintf("wire: %s: %s", loc, e.Msg)
}

// ParseErrors collects every problem found while building a document.
type ParseErrors []*ParseError

func (errs ParseErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	return errs.multi().Error()
}

// ErrorOrNil returns nil for an empty list.
func (errs ParseErrors) ErrorOrNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (errs ParseErrors) multi() *multierror.Error {
	var merr *multierror.Error
	for _, e := range errs {
		merr = multierror.Append(merr, e)
	}
	if merr == nil {
		return &multierror.Error{}
	}
	return merr
}
