package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesInsertionOrder(t *testing.T) {
	m := NewMap(3)
	m.Set("zeta", 1)
	m.Set("alpha", "x")
	m.Set("mid", nil)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())
	assert.Equal(t, 3, m.Len())

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"x","mid":null}`, string(b))
}

func TestMap_SetExistingKeepsPosition(t *testing.T) {
	m := NewMap(2)
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestMap_Nested(t *testing.T) {
	inner := NewMap(1)
	inner.Set("bid", 1.1)
	outer := NewMap(2)
	outer.Set("symbol", "EURUSD")
	outer.Set("tick", inner)
	outer.Set("rows", []any{[]any{int64(1), int64(2)}})

	b, err := json.Marshal(outer)
	require.NoError(t, err)
	assert.Equal(t, `{"symbol":"EURUSD","tick":{"bid":1.1},"rows":[[1,2]]}`, string(b))
}

func TestMap_NilReceiver(t *testing.T) {
	var m *Map
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Keys())
	assert.False(t, m.Has("x"))

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestMap_RangeStopsEarly(t *testing.T) {
	m := NewMap(3)
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	var seen []string
	m.Range(func(k string, _ any) bool {
		seen = append(seen, k)
		return k != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestErrors_Classification(t *testing.T) {
	nf := &NotFoundError{Name: "does_not_exist"}
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.Equal(t, "Function 'does_not_exist' not found", nf.Error())

	argErr := &ArgumentError{Err: Bindf("f() takes %d positional arguments but %d were given", 1, 2)}
	var bindErr *BindError
	require.True(t, errors.As(argErr, &bindErr))
	assert.Equal(t, "f() takes 1 positional arguments but 2 were given", bindErr.Msg)

	sentinel := errors.New("market closed")
	execErr := &ExecutionError{Err: sentinel}
	assert.True(t, errors.Is(execErr, sentinel))
	assert.Equal(t, "market closed", execErr.Error())
	assert.Equal(t, "execution failed", (&ExecutionError{}).Error())
}
