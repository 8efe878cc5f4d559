package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Convention identifies which calling convention a ParamSet carries.
type Convention int

const (
	ConventionEmpty Convention = iota
	ConventionPositional
	ConventionNamed
)

func (c Convention) String() string {
	switch c {
	case ConventionPositional:
		return "positional"
	case ConventionNamed:
		return "named"
	default:
		return "empty"
	}
}

// ParamSet holds the caller supplied arguments for one request. Exactly one
// convention is active; the zero value is an empty set.
type ParamSet struct {
	convention Convention
	args       []any
	kwargs     map[string]any
}

// Empty returns a ParamSet carrying no arguments.
func Empty() ParamSet {
	return ParamSet{}
}

// Positional returns a ParamSet carrying ordered arguments.
func Positional(args ...any) ParamSet {
	if args == nil {
		args = []any{}
	}
	return ParamSet{convention: ConventionPositional, args: args}
}

// Named returns a ParamSet carrying named arguments.
func Named(kwargs map[string]any) ParamSet {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return ParamSet{convention: ConventionNamed, kwargs: kwargs}
}

// Convention reports the active calling convention.
func (p ParamSet) Convention() Convention {
	return p.convention
}

// Args returns the positional arguments. It is nil unless the convention is
// ConventionPositional.
func (p ParamSet) Args() []any {
	return p.args
}

// Kwargs returns the named arguments. It is nil unless the convention is
// ConventionNamed.
func (p ParamSet) Kwargs() map[string]any {
	return p.kwargs
}

// ParseParams decodes a request body into a ParamSet. The calling convention
// follows the JSON shape of the body: nothing, null or {} is Empty, an array
// is Positional, an object is Named, and any other scalar is a single
// positional argument.
//
// Numbers decode to int64 when integral and float64 otherwise.
func ParseParams(body []byte) (ParamSet, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Empty(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return ParamSet{}, fmt.Errorf("decode params: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ParamSet{}, fmt.Errorf("decode params: unexpected data after JSON value")
	}

	switch v := normalizeJSON(raw).(type) {
	case nil:
		return Empty(), nil
	case []any:
		return Positional(v...), nil
	case map[string]any:
		if len(v) == 0 {
			return Empty(), nil
		}
		return Named(v), nil
	default:
		return Positional(v), nil
	}
}

// normalizeJSON converts json.Number leaves into int64 or float64.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = normalizeJSON(x[i])
		}
		return x
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeJSON(val)
		}
		return x
	default:
		return v
	}
}
