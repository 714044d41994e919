package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/registry"
	"github.com/meikuraledutech/flowgraph/wire"
)

// Feature tags reported by Compatibility.
const (
	FeatureLiteralEscape     = "literal_escape"
	FeatureMustExecute       = "must_execute"
	FeatureBatchSchema       = "batch_schema"
	FeatureTemplate          = "template"
	FeatureExternalComponent = "external_component"
	FeatureFlowOutput        = "flow_output"
)

// Report lists the runtime features a document depends on. It is advisory
// and never blocks an export.
type Report struct {
	Features        []string `json:"features"`
	Recommendations []string `json:"recommendations"`
}

// Has reports whether feature f was detected.
func (r *Report) Has(f string) bool {
	for _, got := range r.Features {
		if got == f {
			return true
		}
	}
	return false
}

// Compatibility inspects doc for features a consuming runtime must support.
func Compatibility(doc *wire.Document, reg *registry.Registry) *Report {
	rep := &Report{Features: []string{}, Recommendations: []string{}}
	if doc == nil {
		return rep
	}
	if reg == nil {
		reg = registry.New()
	}

	found := make(map[string]bool)
	var external []string
	envs := make(map[string][]string)
	for i := range doc.Steps {
		st := &doc.Steps[i]
		scanFeatures(st.Input, found)
		if st.MustExecute {
			found[FeatureMustExecute] = true
		}
		if !registry.IsBuiltin(st.Component) {
			found[FeatureExternalComponent] = true
			if !contains(external, st.Component) {
				external = append(external, st.Component)
			}
			if c, ok := reg.Get(st.Component); ok {
				for _, env := range c.RequiredEnv {
					if !contains(envs[env], st.Component) {
						envs[env] = append(envs[env], st.Component)
					}
				}
			}
		}
	}
	if doc.BatchSchema != nil {
		found[FeatureBatchSchema] = true
	}
	if doc.Output != nil {
		found[FeatureFlowOutput] = true
		scanFeatures(doc.Output, found)
	}

	for _, f := range []string{
		FeatureLiteralEscape, FeatureMustExecute, FeatureBatchSchema,
		FeatureTemplate, FeatureExternalComponent, FeatureFlowOutput,
	} {
		if found[f] {
			rep.Features = append(rep.Features, f)
		}
	}

	if found[FeatureLiteralEscape] {
		rep.Recommendations = append(rep.Recommendations,
			"literal values are passed through unevaluated; confirm the runtime supports {literal}")
	}
	if found[FeatureMustExecute] {
		rep.Recommendations = append(rep.Recommendations,
			"steps marked must_execute run even when upstream steps fail; make sure they tolerate missing input")
	}
	if found[FeatureBatchSchema] {
		rep.Recommendations = append(rep.Recommendations,
			"batch_schema runs the workflow once per item; check the runtime's batch limits")
	}
	if found[FeatureTemplate] {
		rep.Recommendations = append(rep.Recommendations,
			"templates render to text; use a native {step} reference where structured data is needed")
	}
	if found[FeatureExternalComponent] {
		rep.Recommendations = append(rep.Recommendations,
			fmt.Sprintf("ensure external plugin config includes required credentials for %s", strings.Join(external, ", ")))
		names := make([]string, 0, len(envs))
		for env := range envs {
			names = append(names, env)
		}
		sort.Strings(names)
		for _, env := range names {
			rep.Recommendations = append(rep.Recommendations,
				fmt.Sprintf("set %s for %s", env, strings.Join(envs[env], ", ")))
		}
	}
	return rep
}

func scanFeatures(e expr.Expr, found map[string]bool) {
	expr.Walk(e, "", func(_ string, n expr.Expr) {
		switch n.(type) {
		case expr.Literal:
			found[FeatureLiteralEscape] = true
		case expr.Template:
			found[FeatureTemplate] = true
		}
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
