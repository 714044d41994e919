package jsonpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// filter is a single comparison "@.field OP literal", or a bare "@.field"
// existence test when op is empty.
type filter struct {
	field []string
	op    string
	value any
}

var operators = []string{"==", "!=", "<=", ">=", "<", ">"}

func parseFilter(body string) (*filter, error) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "@") {
		return nil, errors.New("filter must start with '@'")
	}
	left, op, right := splitComparison(body)
	field, err := parseFieldRef(strings.TrimSpace(left))
	if err != nil {
		return nil, err
	}
	f := &filter{field: field, op: op}
	if op == "" {
		return f, nil
	}
	f.value, err = parseLiteral(strings.TrimSpace(right))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// splitComparison finds the first operator outside quotes.
func splitComparison(s string) (string, string, string) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		for _, op := range operators {
			if strings.HasPrefix(s[i:], op) {
				return s[:i], op, s[i+len(op):]
			}
		}
	}
	return s, "", ""
}

func parseFieldRef(s string) ([]string, error) {
	rest := strings.TrimPrefix(s, "@")
	if rest == "" {
		return nil, nil
	}
	if !strings.HasPrefix(rest, ".") {
		return nil, fmt.Errorf("invalid filter operand %q", s)
	}
	parts := strings.Split(rest[1:], ".")
	for _, part := range parts {
		if part == "" || strings.ContainsAny(part, " ()[]'\"") {
			return nil, fmt.Errorf("invalid filter operand %q", s)
		}
	}
	return parts, nil
}

func parseLiteral(s string) (any, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		inner := s[1 : len(s)-1]
		return strings.ReplaceAll(inner, `\`+string(s[0]), string(s[0])), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("unsupported filter literal %q", s)
	}
	return f, nil
}

func (f *filter) match(candidate any) bool {
	v, ok := candidate, true
	for _, name := range f.field {
		m, isMap := asMap(v)
		if !isMap {
			return false
		}
		v, ok = m[name]
		if !ok {
			return false
		}
	}
	if f.op == "" {
		return true
	}
	return compare(v, f.op, f.value)
}

func compare(left any, op string, right any) bool {
	if lf, ok := toFloat(left); ok {
		if rf, ok := toFloat(right); ok {
			switch op {
			case "==":
				return lf == rf
			case "!=":
				return lf != rf
			case "<":
				return lf < rf
			case "<=":
				return lf <= rf
			case ">":
				return lf > rf
			case ">=":
				return lf >= rf
			}
		}
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case "==":
				return ls == rs
			case "!=":
				return ls != rs
			case "<":
				return ls < rs
			case "<=":
				return ls <= rs
			case ">":
				return ls > rs
			case ">=":
				return ls >= rs
			}
		}
	}
	switch op {
	case "==":
		return scalarEqual(left, right)
	case "!=":
		return !scalarEqual(left, right)
	}
	return false
}

func scalarEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}
