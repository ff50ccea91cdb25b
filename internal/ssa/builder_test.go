package ssa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoscript/internal/value"
)

func newUtil() (*BuildUtil, *Function) {
	fn := NewFunction("test", 0)
	b := NewBuilder(fn)
	globals := NewGlobalState()
	sc := value.NewCache()
	u := NewBuildUtil(b, globals, sc)
	entry := u.CreateBBAfter(nil)
	u.SealBlock(entry)
	u.SetCurrentBlock(entry)
	return u, fn
}

// TestIfElsePhiMatchesPredecessorCount builds `if (cond) x = 1 else x = 2`
// and checks the join block's phi for x has exactly one operand per
// predecessor (spec §3 invariant).
func TestIfElsePhiMatchesPredecessorCount(t *testing.T) {
	u, _ := newUtil()
	u.DeclareVariable("x")
	cond := u.ReadVariable("x") // placeholder boolean-ish value, unused for condition correctness here
	_ = cond

	one := u.MkConstInt(1)
	two := u.MkConstInt(2)

	u.IfElse(func() *RValue {
		return u.MkConstInt(1) // always-true-ish condition stub
	}, func() {
		u.WriteVariable("x", one)
	}, func() {
		u.WriteVariable("x", two)
	})

	got := u.ReadVariable("x")
	require.NotNil(t, got)
	if got.Def != nil && got.Def.Op == OpPhi {
		assert.Equal(t, len(u.CurrentBlock.Preds), len(got.Def.PhiSrcs))
		assert.Equal(t, len(got.Def.PhiSrcs), len(got.Def.PhiBlocks))
	}
}

// TestEverySSAValueHasSingleDefiningInstruction checks the core SSA
// invariant: every temporary RValue's Def is the one instruction whose
// Dst points back at it.
func TestEverySSAValueHasSingleDefiningInstruction(t *testing.T) {
	u, fn := newUtil()
	a := u.MkConstInt(5)
	b := u.MkConstInt(7)
	sum := u.MkBinaryOp(OpAdd, a, b)
	u.MkReturn(sum)

	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			if inst.Dst == nil || inst.Dst.Kind != RVTemporary {
				continue
			}
			assert.Same(t, inst, inst.Dst.Def)
		}
	}
}

// TestTripleNestedLoopDeadPhiElimination regression-guards the
// incomplete-phi/trivial-phi-removal interaction: a variable written
// once before three nested loops and never reassigned inside them must
// not leave behind a chain of dead phis after sealing.
func TestTripleNestedLoopDeadPhiElimination(t *testing.T) {
	u, fn := newUtil()
	u.DeclareVariable("counter")
	u.WriteVariable("counter", u.MkConstInt(0))

	depth := 0
	var descend func()
	descend = func() {
		depth++
		if depth > 3 {
			cur := u.ReadVariable("counter")
			next := u.MkBinaryOp(OpAdd, cur, u.MkConstInt(1))
			u.WriteVariable("counter", next)
			depth--
			return
		}
		u.WhileLoop(func() *RValue {
			return u.MkConstInt(1)
		}, func() {
			descend()
			u.Break()
		})
		depth--
	}
	descend()

	PrepareForRegAlloc(fn)

	final := u.ReadVariable("counter")
	require.NotNil(t, final)
	// A read after full unwind must resolve to a single concrete
	// definition, not an unresolved/removed phi.
	assert.False(t, final.IsUndef())
}

func TestBitSetUnionAndEach(t *testing.T) {
	a := NewBitSet()
	a.Set(1)
	a.Set(65)
	b := NewBitSet()
	b.Set(2)
	a.Union(b)

	var seen []int
	a.Each(func(i int) { seen = append(seen, i) })
	assert.ElementsMatch(t, []int{1, 2, 65}, seen)
	assert.True(t, a.Has(1))
	assert.False(t, a.Has(3))
}
