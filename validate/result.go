// Package validate checks workflow graphs and wire documents. Every entry
// point returns a Result listing all problems found; none of them fail on
// malformed input.
package validate

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Kind classifies an issue.
type Kind string

const (
	// KindStructural covers missing fields, wrong shapes, bad identifiers
	// and duplicate ids.
	KindStructural Kind = "structural"
	// KindSemantic covers dangling references and cycles.
	KindSemantic Kind = "semantic"
)

// CodeCycle marks the issue reporting a graph cycle.
const CodeCycle = "cycle"

// Issue is one validation finding. Ref names the step or node the issue is
// about, when there is one.
type Issue struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}

func (i Issue) Error() string {
	if i.Path == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Kind, i.Path, i.Message)
}

// Result is the outcome of a validation pass.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func newResult() *Result {
	return &Result{Errors: []Issue{}, Warnings: []Issue{}}
}

func (r *Result) errorf(kind Kind, path, ref, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Kind: kind, Path: path, Ref: ref, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(kind Kind, path, ref, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Kind: kind, Path: path, Ref: ref, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) finish() *Result {
	r.Valid = len(r.Errors) == 0
	return r
}

// Merge appends the issues of other to r.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.finish()
}

// Err folds the errors into one error, or returns nil when valid.
func (r *Result) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, issue := range r.Errors {
		merr = multierror.Append(merr, issue)
	}
	return merr.ErrorOrNil()
}

// Cycle returns the node named by a cycle error, if there is one.
func (r *Result) Cycle() (string, bool) {
	for _, issue := range r.Errors {
		if issue.Code == CodeCycle {
			return issue.Ref, true
		}
	}
	return "", false
}

// HasKind reports whether any error is of kind k.
func (r *Result) HasKind(k Kind) bool {
	for _, issue := range r.Errors {
		if issue.Kind == k {
			return true
		}
	}
	return false
}
