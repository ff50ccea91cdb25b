package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoscript/internal/ssa"
	"chronoscript/internal/value"
)

// buildStraightLine constructs `a=1; b=2; c=a+b; return c` as a single
// block and finalizes it, for liveness smoke testing.
func buildStraightLine(t *testing.T) *ssa.Function {
	t.Helper()
	fn := ssa.NewFunction("f", 0)
	b := ssa.NewBuilder(fn)
	entry := b.CreateBBAfter(nil)
	b.SealBlock(entry)

	a := b.AddConstant(&ssa.RValue{Value: value.Int(1)})
	bb := b.AddConstant(&ssa.RValue{Value: value.Int(2)})
	_ = a
	_ = bb

	dst := &ssa.RValue{Kind: ssa.RVTemporary, ID: b.ValueID()}
	add := &ssa.Instruction{Op: ssa.OpAdd, Dst: dst, Srcs: []*ssa.RValue{a, bb}}
	dst.Def = add
	b.InsertInstruction(add, entry)

	ret := &ssa.Instruction{Op: ssa.OpReturn, Srcs: []*ssa.RValue{dst}}
	dst.Users = append(dst.Users, ret)
	b.InsertInstruction(ret, entry)

	ssa.PrepareForRegAlloc(fn)
	return fn
}

func TestComputeLiveSetsNoLiveOutOfFunctionExit(t *testing.T) {
	fn := buildStraightLine(t)
	Compute(fn)
	exit := fn.Blocks[len(fn.Blocks)-1]
	var anyLive bool
	exit.LiveOut.Each(func(i int) { anyLive = true })
	assert.False(t, anyLive)
}

func TestComputeLiveIntervalsProducesNonEmptyRangeForUsedTemp(t *testing.T) {
	fn := buildStraightLine(t)
	info := Compute(fn)
	require.NotEmpty(t, fn.Temporaries)
	found := false
	for _, ranges := range info.Intervals {
		if len(ranges) > 0 {
			found = true
		}
	}
	assert.True(t, found)
}
