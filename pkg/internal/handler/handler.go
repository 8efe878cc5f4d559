// Package handler provides reflection-based function adapters for the funcgate package.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/jdziat/funcgate/pkg/core"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// Handler adapts an arbitrary Go function to core.Callable.
// The function signature is inspected once, at construction.
type Handler struct {
	FuncName     string
	Desc         string
	Fn           reflect.Value
	ParamNames   []string
	InTypes      []reflect.Type // excludes the leading context.Context
	HasContext   bool
	Variadic     bool
	ReturnsError bool

	// StructArg is set when the function takes a single struct (or pointer
	// to struct) argument that named parameters decode into.
	StructArg bool
}

var _ core.Callable = (*Handler)(nil)

// NewHandler creates a Handler from a function.
//
// The function may take an optional leading context.Context followed by any
// number of JSON-decodable arguments, and may return any number of values
// optionally followed by an error. paramNames, when given, must name every
// argument after the context in order.
func NewHandler(name string, fn any, paramNames []string) (*Handler, error) {
	if fn == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	fnVal := reflect.ValueOf(fn)

	// Check for typed nil (e.g., var fn func() = nil)
	if fnVal.Kind() == reflect.Func && fnVal.IsNil() {
		return nil, fmt.Errorf("handler function cannot be nil")
	}

	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %s", fnType.Kind())
	}

	h := &Handler{
		FuncName: name,
		Fn:       fnVal,
		Variadic: fnType.IsVariadic(),
	}

	start := 0
	if fnType.NumIn() > 0 && fnType.In(0) == contextType {
		h.HasContext = true
		start = 1
	}
	for i := start; i < fnType.NumIn(); i++ {
		in := fnType.In(i)
		if in == contextType {
			return nil, fmt.Errorf("context.Context must be the first argument")
		}
		h.InTypes = append(h.InTypes, in)
	}

	if numOut := fnType.NumOut(); numOut > 0 && fnType.Out(numOut-1) == errorType {
		h.ReturnsError = true
	}

	if len(paramNames) > 0 {
		if len(paramNames) != len(h.InTypes) {
			return nil, fmt.Errorf("declared %d parameter names for %d arguments", len(paramNames), len(h.InTypes))
		}
		seen := make(map[string]struct{}, len(paramNames))
		for _, p := range paramNames {
			if strings.TrimSpace(p) == "" {
				return nil, fmt.Errorf("parameter names cannot be empty")
			}
			if _, dup := seen[p]; dup {
				return nil, fmt.Errorf("duplicate parameter name %q", p)
			}
			seen[p] = struct{}{}
		}
		h.ParamNames = append([]string(nil), paramNames...)
	}

	if len(h.InTypes) == 1 && !h.Variadic && isStructType(h.InTypes[0]) {
		h.StructArg = true
	}

	return h, nil
}

func isStructType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType
}

// Name returns the registered function name.
func (h *Handler) Name() string {
	return h.FuncName
}

// Params returns a copy of the declared parameter names.
func (h *Handler) Params() []string {
	if h.ParamNames == nil {
		return nil
	}
	return append([]string(nil), h.ParamNames...)
}

// Description returns the registered description.
func (h *Handler) Description() string {
	return h.Desc
}

// CallNamed binds args by name and invokes the function.
func (h *Handler) CallNamed(ctx context.Context, args map[string]any) (any, error) {
	if err := h.valid(); err != nil {
		return nil, err
	}

	if h.StructArg {
		argVal, err := decodeStrict(args, h.InTypes[0])
		if err != nil {
			return nil, core.Bindf("%s() %v", h.FuncName, err)
		}
		return h.call(ctx, []reflect.Value{argVal})
	}

	if len(h.ParamNames) == 0 {
		if len(args) == 0 && h.minArity() == 0 {
			return h.call(ctx, nil)
		}
		return nil, core.Bindf("%s() does not accept named arguments", h.FuncName)
	}

	declared := make(map[string]int, len(h.ParamNames))
	for i, p := range h.ParamNames {
		declared[p] = i
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := declared[k]; !ok {
			return nil, core.Bindf("%s() got an unexpected keyword argument '%s'", h.FuncName, k)
		}
	}

	in := make([]reflect.Value, 0, len(h.InTypes))
	for i, p := range h.ParamNames {
		v, ok := args[p]
		last := i == len(h.InTypes)-1
		if h.Variadic && last {
			if !ok {
				break
			}
			rest, ok := v.([]any)
			if !ok {
				rest = []any{v}
			}
			for j, elem := range rest {
				rv, err := convert(elem, h.InTypes[i].Elem())
				if err != nil {
					return nil, core.Bindf("%s() argument '%s'[%d]: %v", h.FuncName, p, j, err)
				}
				in = append(in, rv)
			}
			break
		}
		if !ok {
			return nil, core.Bindf("%s() missing required argument '%s'", h.FuncName, p)
		}
		rv, err := convert(v, h.InTypes[i])
		if err != nil {
			return nil, core.Bindf("%s() argument '%s': %v", h.FuncName, p, err)
		}
		in = append(in, rv)
	}

	return h.call(ctx, in)
}

// CallPositional binds args in order and invokes the function.
func (h *Handler) CallPositional(ctx context.Context, args []any) (any, error) {
	if err := h.valid(); err != nil {
		return nil, err
	}

	fixed := len(h.InTypes)
	if h.Variadic {
		fixed--
		if len(args) < fixed {
			return nil, core.Bindf("%s() takes at least %d positional arguments but %d were given", h.FuncName, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, core.Bindf("%s() takes %d positional arguments but %d were given", h.FuncName, fixed, len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		t := h.elemType(i)
		rv, err := convert(arg, t)
		if err != nil {
			return nil, core.Bindf("%s() argument %d: %v", h.FuncName, i, err)
		}
		in = append(in, rv)
	}

	return h.call(ctx, in)
}

func (h *Handler) valid() error {
	// Zero-value Handler built without NewHandler
	if !h.Fn.IsValid() || h.Fn.IsNil() {
		return core.Executionf("handler function is nil or invalid")
	}
	return nil
}

func (h *Handler) minArity() int {
	if h.Variadic {
		return len(h.InTypes) - 1
	}
	return len(h.InTypes)
}

func (h *Handler) elemType(i int) reflect.Type {
	if h.Variadic && i >= len(h.InTypes)-1 {
		return h.InTypes[len(h.InTypes)-1].Elem()
	}
	return h.InTypes[i]
}

// call runs the function. Panics and returned errors both become
// *core.ExecutionError.
func (h *Handler) call(ctx context.Context, in []reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = core.Executionf("%s() panicked: %v", h.FuncName, r)
		}
	}()

	if h.HasContext {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append([]reflect.Value{reflect.ValueOf(ctx)}, in...)
	}

	outs := h.Fn.Call(in)

	if h.ReturnsError {
		last := outs[len(outs)-1]
		outs = outs[:len(outs)-1]
		if !last.IsNil() {
			return nil, &core.ExecutionError{Err: last.Interface().(error)}
		}
	}

	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		return outs[0].Interface(), nil
	default:
		values := make([]any, len(outs))
		for i, out := range outs {
			values[i] = out.Interface()
		}
		return values, nil
	}
}

// convert coerces a decoded JSON value into t. Values that are already
// assignable pass through; everything else round-trips through JSON.
func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("failed to marshal value: %w", err)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %s as %s", describe(v), t)
	}
	return ptr.Elem(), nil
}

// decodeStrict decodes named arguments into a struct type, rejecting
// unknown fields.
func decodeStrict(args map[string]any, t reflect.Type) (reflect.Value, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("failed to marshal args: %w", err)
	}

	target := t
	if t.Kind() == reflect.Pointer {
		target = t.Elem()
	}
	ptr := reflect.New(target)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	if t.Kind() == reflect.Pointer {
		return ptr, nil
	}
	return ptr.Elem(), nil
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int64, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
