package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoscript/internal/liveness"
	"chronoscript/internal/ssa"
	"chronoscript/internal/value"
)

// buildTwoIndependentTemps builds `a=1; b=2; return a+b` so a and b are
// simultaneously live and must receive different registers.
func buildTwoIndependentTemps(t *testing.T) *ssa.Function {
	t.Helper()
	fn := ssa.NewFunction("f", 0)
	b := ssa.NewBuilder(fn)
	entry := b.CreateBBAfter(nil)
	b.SealBlock(entry)

	a := b.AddConstant(&ssa.RValue{Value: value.Int(1)})
	bb := b.AddConstant(&ssa.RValue{Value: value.Int(2)})

	movA := &ssa.RValue{Kind: ssa.RVTemporary, ID: b.ValueID()}
	instA := &ssa.Instruction{Op: ssa.OpMov, Dst: movA, Srcs: []*ssa.RValue{a}}
	movA.Def = instA
	b.InsertInstruction(instA, entry)

	movB := &ssa.RValue{Kind: ssa.RVTemporary, ID: b.ValueID()}
	instB := &ssa.Instruction{Op: ssa.OpMov, Dst: movB, Srcs: []*ssa.RValue{bb}}
	movB.Def = instB
	b.InsertInstruction(instB, entry)

	sum := &ssa.RValue{Kind: ssa.RVTemporary, ID: b.ValueID()}
	add := &ssa.Instruction{Op: ssa.OpAdd, Dst: sum, Srcs: []*ssa.RValue{movA, movB}}
	sum.Def = add
	movA.Users = append(movA.Users, add)
	movB.Users = append(movB.Users, add)
	b.InsertInstruction(add, entry)

	ret := &ssa.Instruction{Op: ssa.OpReturn, Srcs: []*ssa.RValue{sum}}
	sum.Users = append(sum.Users, ret)
	b.InsertInstruction(ret, entry)

	ssa.PrepareForRegAlloc(fn)
	return fn
}

func TestSimultaneouslyLiveTempsGetDistinctRegisters(t *testing.T) {
	fn := buildTwoIndependentTemps(t)
	info := liveness.Compute(fn)
	g := liveness.NewGraph(fn, info)
	g.Coalesce(fn)
	g.BuildGraph(fn)
	result := Run(g)
	ApplyColors(fn, g, result)

	require.True(t, len(fn.Temporaries) >= 2)
	var movRegs []int
	for _, temp := range fn.Temporaries {
		if temp.Def != nil && temp.Def.Op == ssa.OpMov {
			movRegs = append(movRegs, temp.Reg)
		}
	}
	require.Len(t, movRegs, 2)
	assert.NotEqual(t, movRegs[0], movRegs[1])
}
