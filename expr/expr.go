// Package expr models value-expressions: symbolic references to step
// outputs, workflow input, variables, templates, literals and other
// workflows, plus the plain JSON structure that contains them.
package expr

// Expr is a node of a value-expression tree. The implementations in this
// package form a closed set.
type Expr interface {
	exprNode()
}

// Scalar is a string, float64, bool or nil.
type Scalar struct {
	Value any
}

// Array is a list of expressions.
type Array []Expr

// Field is one key of an Object.
type Field struct {
	Key   string
	Value Expr
}

// Object is a plain structure with no reference tag. Keys keep insertion
// order.
type Object []Field

// StepRef is {step, path?}.
type StepRef struct {
	Step string
	Path string
}

// InputRef is {input}. Field "$" or "" addresses the whole input.
type InputRef struct {
	Field string
}

// VariableRef is {variable, default?}. HasDefault distinguishes an explicit
// null default from no default.
type VariableRef struct {
	Name       string
	Default    any
	HasDefault bool
}

// Template is {template}: text with embedded {{$step.X}}, {{$input}} and
// {{$variable.X}} markers.
type Template struct {
	Text string
}

// Literal is {literal}: its value is never interpreted.
type Literal struct {
	Value any
}

// FromRef is {from: {workflowPath?, step?, path?}}.
type FromRef struct {
	WorkflowPath string
	Step         string
	Path         string
}

func (Scalar) exprNode()      {}
func (Array) exprNode()       {}
func (Object) exprNode()      {}
func (StepRef) exprNode()     {}
func (InputRef) exprNode()    {}
func (VariableRef) exprNode() {}
func (Template) exprNode()    {}
func (Literal) exprNode()     {}
func (FromRef) exprNode()     {}

// Str returns a string scalar.
func Str(s string) Scalar { return Scalar{Value: s} }

// Num returns a numeric scalar.
func Num(f float64) Scalar { return Scalar{Value: f} }

// Bool returns a boolean scalar.
func Bool(b bool) Scalar { return Scalar{Value: b} }

// Null returns the null scalar.
func Null() Scalar { return Scalar{} }

// Step references the whole output of a step.
func Step(id string) StepRef { return StepRef{Step: id} }

// WholeInput references the whole workflow input.
func WholeInput() InputRef { return InputRef{Field: "$"} }

// Get returns the value stored under key.
func (o Object) Get(key string) (Expr, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// With returns o with key set to v, replacing an existing key in place or
// appending a new one.
func (o Object) With(key string, v Expr) Object {
	out := make(Object, len(o), len(o)+1)
	copy(out, o)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = v
			return out
		}
	}
	return append(out, Field{Key: key, Value: v})
}

// Keys returns the keys in order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, f := range o {
		keys[i] = f.Key
	}
	return keys
}

// IsReference reports whether e is one of the tagged reference forms.
func IsReference(e Expr) bool {
	switch e.(type) {
	case StepRef, InputRef, VariableRef, Template, Literal, FromRef:
		return true
	}
	return false
}
