// Package convert compiles workflow graphs into wire documents and
// reconstructs graphs from wire documents.
package convert

import "github.com/meikuraledutech/flowgraph/registry"

// DefaultLayoutSpacing is the vertical distance between reconstructed nodes.
const (
	DefaultLayoutSpacing = 150
	layoutX              = 250
)

type options struct {
	registry *registry.Registry
	spacing  float64
}

// Option configures Compile, Reconstruct and Import.
type Option func(*options)

// WithRegistry sets the component registry. Without it every call uses a
// fresh registry holding only the builtin and provider components.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLayoutSpacing sets the vertical spacing of reconstructed nodes.
func WithLayoutSpacing(px float64) Option {
	return func(o *options) { o.spacing = px }
}

func buildOptions(opts []Option) *options {
	o := &options{spacing: DefaultLayoutSpacing}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = registry.New()
	}
	return o
}
