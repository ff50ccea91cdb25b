package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoscript/internal/heap"
	"chronoscript/internal/value"
	"chronoscript/internal/vm"
)

func newTestMachine() *vm.Machine {
	m := &vm.Machine{
		Heap:         heap.New(),
		Strings:      value.NewCache(),
		BuiltinNames: map[string]int{},
		MethodNames:  map[string]int{},
	}
	RegisterAll(m)
	return m
}

func call(t *testing.T, m *vm.Machine, name string, args ...value.Value) value.Value {
	t.Helper()
	idx, ok := m.BuiltinNames[name]
	require.True(t, ok, "builtin %q not registered", name)
	v, err := m.Builtins[idx](m, args)
	require.NoError(t, err)
	return v
}

func callMethod(t *testing.T, m *vm.Machine, name string, args ...value.Value) (value.Value, error) {
	t.Helper()
	idx, ok := m.MethodNames[name]
	require.True(t, ok, "method %q not registered", name)
	return m.Methods[idx](m, args)
}

func TestCreateEntityReadsDistinctXYZ(t *testing.T) {
	m := newTestMachine()
	model := call(t, m, "create_model", value.Str(m.Strings.Pop("crate")))

	ent := call(t, m, "create_entity", model, value.Dec(1), value.Dec(2), value.Dec(3))
	require.Equal(t, value.Pointer, ent.Tag)

	h, ok := m.HandleFor(ent)
	require.True(t, ok)
	e := h.(*Entity)
	assert.Equal(t, 1.0, e.X)
	assert.Equal(t, 2.0, e.Y)
	assert.Equal(t, 3.0, e.Z)
}

func TestMoveAppliesDistinctDxDyDz(t *testing.T) {
	m := newTestMachine()
	model := call(t, m, "create_model", value.Str(m.Strings.Pop("crate")))
	ent := call(t, m, "create_entity", model, value.Dec(0), value.Dec(0), value.Dec(0))

	_, err := callMethod(t, m, "move", ent, value.Dec(1), value.Dec(2), value.Dec(3))
	require.NoError(t, err)

	h, _ := m.HandleFor(ent)
	e := h.(*Entity)
	assert.Equal(t, 1.0, e.X)
	assert.Equal(t, 2.0, e.Y)
	assert.Equal(t, 3.0, e.Z)
}

func TestToDecimalFailsOnNonNumericString(t *testing.T) {
	m := newTestMachine()
	idx, ok := m.BuiltinNames["to_decimal"]
	require.True(t, ok)

	_, err := m.Builtins[idx](m, []value.Value{value.Str(m.Strings.Pop("not a number"))})
	assert.Error(t, err)

	v, err := m.Builtins[idx](m, []value.Value{value.Str(m.Strings.Pop("3.5"))})
	require.NoError(t, err)
	assert.Equal(t, 3.5, v.Dec)
}

func TestListAppendInsertRemove(t *testing.T) {
	m := newTestMachine()
	lst := value.Lst(m.Heap.PopList())

	call(t, m, "list_append", lst, value.Int(1))
	call(t, m, "list_append", lst, value.Int(2))
	call(t, m, "list_insert", lst, value.Int(1), value.Int(99))

	assert.Equal(t, 3, m.Heap.List(lst.Idx).Len())
	v, _ := m.Heap.List(lst.Idx).Get(1)
	assert.Equal(t, int32(99), v.Int)

	call(t, m, "list_remove", lst, value.Int(0))
	assert.Equal(t, 2, m.Heap.List(lst.Idx).Len())
}

func TestGlobalsIsStableAcrossCalls(t *testing.T) {
	m := newTestMachine()
	g1 := call(t, m, "globals")
	g2 := call(t, m, "globals")
	assert.Equal(t, g1.Idx, g2.Idx)
}

func TestSubstringMethod(t *testing.T) {
	m := newTestMachine()
	s := value.Str(m.Strings.Pop("hello world"))
	v, err := callMethod(t, m, "substring", s, value.Int(6))
	require.NoError(t, err)
	assert.Equal(t, "world", m.Strings.Get(v.Idx))

	v2, err := callMethod(t, m, "substring", s, value.Int(0), value.Int(5))
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Strings.Get(v2.Idx))
}
