package expr

// ToValue converts an expression to its JSON-like form. Objects become
// *OrderedMap so key order survives rendering.
func ToValue(e Expr) any {
	switch t := e.(type) {
	case nil:
		return nil
	case Scalar:
		return t.Value
	case Array:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = ToValue(item)
		}
		return out
	case Object:
		m := NewOrderedMap()
		for _, f := range t {
			m.Set(f.Key, ToValue(f.Value))
		}
		return m
	case StepRef:
		m := NewOrderedMap()
		m.Set(TagStep, t.Step)
		if t.Path != "" {
			m.Set("path", t.Path)
		}
		return m
	case InputRef:
		m := NewOrderedMap()
		m.Set(TagInput, t.Field)
		return m
	case VariableRef:
		m := NewOrderedMap()
		m.Set(TagVariable, t.Name)
		if t.HasDefault {
			m.Set("default", t.Default)
		}
		return m
	case Template:
		m := NewOrderedMap()
		m.Set(TagTemplate, t.Text)
		return m
	case Literal:
		m := NewOrderedMap()
		m.Set(TagLiteral, t.Value)
		return m
	case FromRef:
		inner := NewOrderedMap()
		if t.WorkflowPath != "" {
			inner.Set("workflowPath", t.WorkflowPath)
		}
		if t.Step != "" {
			inner.Set("step", t.Step)
		}
		if t.Path != "" {
			inner.Set("path", t.Path)
		}
		m := NewOrderedMap()
		m.Set(TagFrom, inner)
		return m
	}
	return nil
}

func (e Scalar) MarshalJSON() ([]byte, error)      { return MarshalJSON(ToValue(e)) }
func (e Array) MarshalJSON() ([]byte, error)       { return MarshalJSON(ToValue(e)) }
func (e Object) MarshalJSON() ([]byte, error)      { return MarshalJSON(ToValue(e)) }
func (e StepRef) MarshalJSON() ([]byte, error)     { return MarshalJSON(ToValue(e)) }
func (e InputRef) MarshalJSON() ([]byte, error)    { return MarshalJSON(ToValue(e)) }
func (e VariableRef) MarshalJSON() ([]byte, error) { return MarshalJSON(ToValue(e)) }
func (e Template) MarshalJSON() ([]byte, error)    { return MarshalJSON(ToValue(e)) }
func (e Literal) MarshalJSON() ([]byte, error)     { return MarshalJSON(ToValue(e)) }
func (e FromRef) MarshalJSON() ([]byte, error)     { return MarshalJSON(ToValue(e)) }
