package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoscript/internal/ssa"
	"chronoscript/internal/value"
	"chronoscript/internal/vm"
)

// buildAddFunction builds `function add(a, b) { return a + b; }`.
func buildAddFunction() *ssa.Function {
	fn := ssa.NewFunction("add", 2)
	b := ssa.NewBuilder(fn)
	entry := b.CreateBBAfter(nil)
	b.SealBlock(entry)

	a := &ssa.RValue{Kind: ssa.RVParam, ParamIndex: 0}
	bp := &ssa.RValue{Kind: ssa.RVParam, ParamIndex: 1}
	b.WriteVariable("a", entry, a)
	b.WriteVariable("b", entry, bp)

	av := b.ReadVariable("a", entry)
	bv := b.ReadVariable("b", entry)
	sum := &ssa.RValue{Kind: ssa.RVTemporary, ID: b.ValueID()}
	add := &ssa.Instruction{Op: ssa.OpAdd, Dst: sum, Srcs: []*ssa.RValue{av, bv}}
	sum.Def = add
	b.InsertInstruction(add, entry)

	ret := &ssa.Instruction{Op: ssa.OpReturn, Srcs: []*ssa.RValue{sum}}
	sum.Users = append(sum.Users, ret)
	b.InsertInstruction(ret, entry)
	return fn
}

// buildMainFunction builds `function main() { return add(3, 4); }`.
func buildMainFunction() *ssa.Function {
	fn := ssa.NewFunction("main", 0)
	b := ssa.NewBuilder(fn)
	entry := b.CreateBBAfter(nil)
	b.SealBlock(entry)

	three := b.AddConstant(&ssa.RValue{Value: value.Int(3)})
	four := b.AddConstant(&ssa.RValue{Value: value.Int(4)})

	result := &ssa.RValue{Kind: ssa.RVTemporary, ID: b.ValueID()}
	call := &ssa.Instruction{Op: ssa.OpCall, Dst: result, CalleeName: "add", Srcs: []*ssa.RValue{three, four}}
	result.Def = call
	b.InsertInstruction(call, entry)

	ret := &ssa.Instruction{Op: ssa.OpReturn, Srcs: []*ssa.RValue{result}}
	b.InsertInstruction(ret, entry)
	return fn
}

func TestCompileLinkAndRunEndToEnd(t *testing.T) {
	addFn := buildAddFunction()
	mainFn := buildMainFunction()

	globals := ssa.NewGlobalState()
	noBuiltins := func(string) (int, bool) { return 0, false }

	unit, err := Compile("test-unit", []*ssa.Function{addFn, mainFn}, globals, nil, noBuiltins)
	require.NoError(t, err)

	m := vm.NewMachine(unit.Module)
	mainBc := unit.Module.ByName["main"]
	require.NotNil(t, mainBc)

	result, err := m.Call(mainBc, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Integer, result.Tag)
	assert.Equal(t, int32(7), result.Int)
}

func TestCanonicalPathLowercasesAndForwardSlashes(t *testing.T) {
	assert.Equal(t, "scripts/foo.cs", CanonicalPath(`Scripts\Foo.cs`))
}
