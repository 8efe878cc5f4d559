package core

import "time"

// Field is one named field of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is implemented by tuple-like values whose fields have names and a
// stable order. Records canonicalize to an ordered mapping.
type Record interface {
	Fields() []Field
}

// Buffer is implemented by array-like values that can flatten themselves
// into nested slices, one nesting level per dimension.
type Buffer interface {
	ToList() any
}

// Instant is implemented by values that represent a point in time.
type Instant interface {
	Instant() time.Time
}

// Attributer is implemented by opaque objects that expose a set of named
// attributes.
type Attributer interface {
	Attributes() map[string]any
}
