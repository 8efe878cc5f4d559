// Package canon converts arbitrary Go values into canonical wire values.
//
// A canonical value is one of nil, bool, int64, uint64, float64, string,
// []any or *core.Map, recursively. Canonicalize accepts any Go value and
// classifies it into a small set of shapes, tested in a fixed order:
//
//  1. scalars (bool, numeric and string kinds) are returned as-is
//  2. records (core.Record, or a plain struct) become ordered mappings
//  3. slices and arrays become sequences
//  4. maps become mappings
//  5. buffers (core.Buffer) are flattened to nested lists and converted again
//  6. instants (time.Time, core.Instant) become RFC 3339 strings, with an
//     ISO 8601 expanded year outside 0000-9999
//  7. attributed objects (core.Attributer) become mappings
//  8. anything else is rendered as a string
//
// Only two conditions fail: nesting deeper than the configured limit and
// reference cycles.
package canon

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/security"
)

var (
	timeType        = reflect.TypeOf(time.Time{})
	recordType      = reflect.TypeOf((*core.Record)(nil)).Elem()
	bufferType      = reflect.TypeOf((*core.Buffer)(nil)).Elem()
	instantType     = reflect.TypeOf((*core.Instant)(nil)).Elem()
	attributerType  = reflect.TypeOf((*core.Attributer)(nil)).Elem()
	textMarshalType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	stringerType    = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithMaxDepth sets the nesting limit. Values are clamped by
// security.ClampDepth.
func WithMaxDepth(n int) Option {
	return func(c *Canonicalizer) {
		c.maxDepth = security.ClampDepth(n)
	}
}

// Canonicalizer converts values to canonical form. It holds no mutable
// state and is safe for concurrent use.
type Canonicalizer struct {
	maxDepth int
}

// New creates a Canonicalizer.
func New(opts ...Option) *Canonicalizer {
	c := &Canonicalizer{maxDepth: security.DefaultMaxDepth}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCanonicalizer = New()

// Canonicalize converts v using the default settings.
func Canonicalize(v any) (any, error) {
	return defaultCanonicalizer.Canonicalize(v)
}

// MaxDepth returns the configured nesting limit.
func (c *Canonicalizer) MaxDepth() int {
	return c.maxDepth
}

// Canonicalize converts v to a canonical value. The error is
// core.ErrDepthExceeded or core.ErrCycleDetected, wrapped with the path
// where the walk stopped.
func (c *Canonicalizer) Canonicalize(v any) (any, error) {
	w := &walker{
		maxDepth: c.maxDepth,
		visiting: make(map[visitKey]struct{}),
	}
	return w.walk(v, 0, "$")
}

// visitKey identifies a reference-typed value on the current path.
type visitKey struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type walker struct {
	maxDepth int
	visiting map[visitKey]struct{}
}

func (w *walker) walk(v any, depth int, path string) (any, error) {
	if depth > w.maxDepth {
		return nil, fmt.Errorf("%w (%d) at %s", core.ErrDepthExceeded, w.maxDepth, path)
	}

	// Fast paths for values that are already canonical.
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, int64, string:
		return x, nil
	case float64:
		return canonicalFloat(x), nil
	case json.Number:
		return canonicalNumber(x), nil
	case time.Time:
		return formatInstant(x), nil
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	// 1. scalars
	if out, ok := scalar(rv); ok {
		return out, nil
	}

	// A struct value whose capabilities are declared on *T is classified
	// through an addressable copy.
	if rt.Kind() == reflect.Struct && hasPointerCapability(rt) {
		ptr := reflect.New(rt)
		ptr.Elem().Set(rv)
		v, rv, rt = ptr.Interface(), ptr, ptr.Type()
	}

	// 2. records
	if rt.Implements(recordType) && !isNilRef(rv) {
		return w.record(v.(core.Record), depth, path)
	}
	if rt.Kind() == reflect.Struct && isPlainStruct(rt) {
		return w.structRecord(rv, depth, path)
	}

	// 3. ordered collections
	switch rt.Kind() {
	case reflect.Slice, reflect.Array:
		if rt.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		if rt.Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(bytesOf(rv)), nil
		}
		return w.sequence(rv, depth, path)
	}

	// 4. keyed collections
	if m, ok := v.(*core.Map); ok {
		if m == nil {
			return nil, nil
		}
		return w.orderedMap(m, depth, path)
	}
	if rt.Kind() == reflect.Map {
		if rv.IsNil() {
			return nil, nil
		}
		return w.mapping(rv, depth, path)
	}

	// 5. buffers
	if rt.Implements(bufferType) && !isNilRef(rv) {
		return w.walk(v.(core.Buffer).ToList(), depth+1, path)
	}

	// 6. instants
	if rt.Implements(instantType) && !isNilRef(rv) {
		return formatInstant(v.(core.Instant).Instant()), nil
	}

	// 7. attributed objects
	if rt.Implements(attributerType) && !isNilRef(rv) {
		attrs := v.(core.Attributer).Attributes()
		if attrs == nil {
			return core.NewMap(0), nil
		}
		return w.mapping(reflect.ValueOf(attrs), depth, path)
	}

	// Pointers and interfaces carry no shape of their own.
	if rt.Kind() == reflect.Pointer || rt.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		if rt.Kind() == reflect.Pointer && isTextual(rt.Elem()) {
			return stringify(v), nil
		}
		if rt.Kind() == reflect.Pointer {
			key := visitKey{ptr: rv.Pointer(), typ: rt}
			if err := w.enter(key, path); err != nil {
				return nil, err
			}
			defer w.leave(key)
		}
		return w.walk(rv.Elem().Interface(), depth, path)
	}

	// 8. everything else
	return stringify(v), nil
}

func (w *walker) enter(key visitKey, path string) error {
	if _, seen := w.visiting[key]; seen {
		return fmt.Errorf("%w at %s", core.ErrCycleDetected, path)
	}
	w.visiting[key] = struct{}{}
	return nil
}

func (w *walker) leave(key visitKey) {
	delete(w.visiting, key)
}

func (w *walker) record(r core.Record, depth int, path string) (any, error) {
	fields := r.Fields()
	out := core.NewMap(len(fields))
	for _, f := range fields {
		cv, err := w.walk(f.Value, depth+1, path+"."+f.Name)
		if err != nil {
			return nil, err
		}
		out.Set(f.Name, cv)
	}
	return out, nil
}

func (w *walker) structRecord(rv reflect.Value, depth int, path string) (any, error) {
	out := core.NewMap(rv.NumField())
	if err := w.collectFields(rv, out, depth, path); err != nil {
		return nil, err
	}
	return out, nil
}

// collectFields adds the exported fields of rv to out in declaration order.
// Untagged embedded structs are flattened; the first occurrence of a name
// wins.
func (w *walker) collectFields(rv reflect.Value, out *core.Map, depth int, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name, skip := fieldName(f)
		if skip {
			continue
		}

		fv := rv.Field(i)
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && isPlainStruct(ft) {
				if err := w.collectFields(fv, out, depth, path); err != nil {
					return err
				}
				continue
			}
			if !f.IsExported() {
				continue
			}
			name = f.Name
		}
		if name == "" {
			name = f.Name
		}
		if out.Has(name) || !fv.CanInterface() {
			continue
		}

		cv, err := w.walk(fv.Interface(), depth+1, path+"."+name)
		if err != nil {
			return err
		}
		out.Set(name, cv)
	}
	return nil
}

// fieldName returns the wire name of a struct field from its json tag.
// An empty name means the Go field name applies.
func fieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() && !f.Anonymous {
		return "", true
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, false
}

func (w *walker) sequence(rv reflect.Value, depth int, path string) (any, error) {
	n := rv.Len()
	if rv.Kind() == reflect.Slice && n > 0 {
		key := visitKey{ptr: rv.Pointer(), typ: rv.Type(), len: n}
		if err := w.enter(key, path); err != nil {
			return nil, err
		}
		defer w.leave(key)
	}

	out := make([]any, n)
	for i := 0; i < n; i++ {
		cv, err := w.walk(rv.Index(i).Interface(), depth+1, path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

func (w *walker) orderedMap(m *core.Map, depth int, path string) (any, error) {
	key := visitKey{ptr: reflect.ValueOf(m).Pointer(), typ: reflect.TypeOf(m)}
	if err := w.enter(key, path); err != nil {
		return nil, err
	}
	defer w.leave(key)

	out := core.NewMap(m.Len())
	var walkErr error
	m.Range(func(k string, v any) bool {
		cv, err := w.walk(v, depth+1, path+"."+k)
		if err != nil {
			walkErr = err
			return false
		}
		out.Set(k, cv)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

// mapping converts a Go map. Go maps have no order, so keys are sorted to
// keep output deterministic.
func (w *walker) mapping(rv reflect.Value, depth int, path string) (any, error) {
	key := visitKey{ptr: rv.Pointer(), typ: rv.Type()}
	if err := w.enter(key, path); err != nil {
		return nil, err
	}
	defer w.leave(key)

	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{key: mapKey(iter.Key()), val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	out := core.NewMap(len(entries))
	for _, e := range entries {
		cv, err := w.walk(e.val.Interface(), depth+1, path+"."+e.key)
		if err != nil {
			return nil, err
		}
		out.Set(e.key, cv)
	}
	return out, nil
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.Type().Implements(textMarshalType) {
		if text, err := k.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			return string(text)
		}
	}
	return fmt.Sprint(k.Interface())
}

// scalar normalizes bool, numeric and string kinds.
func scalar(rv reflect.Value) (any, bool) {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u), true
		}
		return u, true
	case reflect.Float32:
		// Re-parse through the shortest float32 text so 0.1f stays 0.1.
		f, _ := strconv.ParseFloat(strconv.FormatFloat(rv.Float(), 'g', -1, 32), 64)
		return canonicalFloat(f), true
	case reflect.Float64:
		return canonicalFloat(rv.Float()), true
	case reflect.String:
		return rv.String(), true
	default:
		return nil, false
	}
}

// canonicalFloat keeps finite floats and renders the rest as strings, since
// JSON has no encoding for them.
func canonicalFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return f
	}
}

func canonicalNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return canonicalFloat(f)
	}
	return n.String()
}

// instantTail is RFC 3339 after the year.
const instantTail = "-01-02T15:04:05.999999999Z07:00"

// formatInstant renders t with full precision and its UTC offset. RFC 3339
// only has four-digit years, so years outside 0000-9999 use the ISO 8601
// expanded form: a sign and at least four digits, as in
// "+10000-01-01T00:00:00Z" or "-0044-03-15T00:00:00Z".
func formatInstant(t time.Time) string {
	year := t.Year()
	if year >= 0 && year <= 9999 {
		return t.Format(time.RFC3339Nano)
	}
	sign := "+"
	if year < 0 {
		sign, year = "-", -year
	}
	return fmt.Sprintf("%s%04d%s", sign, year, t.Format(instantTail))
}

var capabilityTypes = []reflect.Type{recordType, bufferType, instantType, attributerType, errorType, stringerType}

// hasPointerCapability reports whether *t has a capability that t lacks.
func hasPointerCapability(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	for _, capability := range capabilityTypes {
		if !t.Implements(capability) && pt.Implements(capability) {
			return true
		}
	}
	return false
}

// isPlainStruct reports whether a struct type should be read field by field.
// Errors and Stringers are rendered as text instead.
func isPlainStruct(t reflect.Type) bool {
	if t == timeType {
		return false
	}
	pt := reflect.PointerTo(t)
	for _, capability := range []reflect.Type{bufferType, instantType, attributerType, errorType, stringerType} {
		if t.Implements(capability) || pt.Implements(capability) {
			return false
		}
	}
	return true
}

// isTextual reports whether a struct type renders through Error or String.
func isTextual(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t == timeType {
		return false
	}
	pt := reflect.PointerTo(t)
	return t.Implements(errorType) || pt.Implements(errorType) ||
		t.Implements(stringerType) || pt.Implements(stringerType)
}

func isNilRef(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func bytesOf(rv reflect.Value) []byte {
	if rv.Kind() == reflect.Slice {
		return rv.Bytes()
	}
	b := make([]byte, rv.Len())
	for i := range b {
		b[i] = byte(rv.Index(i).Uint())
	}
	return b
}

func stringify(v any) string {
	switch x := v.(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
