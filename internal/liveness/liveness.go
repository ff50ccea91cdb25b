// Package liveness computes per-block live sets and per-temporary live
// intervals over a finalized ssa.Function (C5), grounded on
// original_source/liveness.cpp: a DAG-DFS over the CFG (skipping loop
// back-edges) for liveIn/liveOut, followed by a loop-nesting-forest DFS
// that propagates a loop's live-through set into every member block.
package liveness

import "chronoscript/internal/ssa"

// Interval is a half-open live range [Begin, End) measured in the
// function's global instruction index space.
type Interval struct {
	Begin, End int
}

func (iv Interval) overlaps(other Interval) bool {
	return iv.Begin < other.End && other.Begin < iv.End
}

func (iv *Interval) extend(begin, end int) {
	if iv.Begin == 0 && iv.End == 0 {
		iv.Begin, iv.End = begin, end
		return
	}
	if begin < iv.Begin {
		iv.Begin = begin
	}
	if end > iv.End {
		iv.End = end
	}
}

// Info holds the liveness results for one function: per-temporary
// accumulated intervals (a temporary may hold several disjoint ranges
// across basic blocks; callers needing a single interval should union
// them, but interference testing works range-by-range like the
// original's addLiveRange/overlaps do).
type Info struct {
	Intervals map[int][]Interval // temporary ID -> ranges
}

// Compute runs ComputeLiveSets then ComputeLiveIntervals and returns the
// per-temporary interval lists ready for interference-graph
// construction (C6).
func Compute(fn *ssa.Function) *Info {
	ComputeLiveSets(fn)
	return ComputeLiveIntervals(fn)
}

// ComputeLiveSets fills every block's LiveIn/LiveOut bitsets.
func ComputeLiveSets(fn *ssa.Function) {
	if fn.Entry == nil {
		return
	}
	processed := make(map[*ssa.BasicBlock]bool)
	dagDFS(fn.Entry, processed)
	for _, loop := range fn.Loops {
		loopTreeDFS(loop)
	}
}

func dagDFS(block *ssa.BasicBlock, processed map[*ssa.BasicBlock]bool) {
	processed[block] = false // on the DFS stack
	live := ssa.NewBitSet()
	live.Union(block.PhiUses)

	for _, succ := range block.Succs {
		if block.Loop != nil && block.Loop.Header == succ {
			continue // skip loop back-edges, per the original
		}
		done, seen := processed[succ]
		if seen && !done {
			continue // edge to a block still on the DFS stack: a loop back-edge
		}
		if !seen {
			dagDFS(succ, processed)
		}
		// live |= liveIn(succ) - phiDefs(succ)
		temp := succ.LiveIn.Clone()
		andNot(temp, succ.PhiDefs)
		live.Union(temp)
	}
	block.LiveOut = live

	// walk instructions backward, skipping leading phis (not a program point)
	insts := block.Instructions
	liveLocal := live.Clone()
	for i := len(insts) - 1; i >= 0; i-- {
		inst := insts[i]
		if inst.Op == ssa.OpPhi {
			break
		}
		if inst.Dst != nil && inst.Dst.Kind == ssaTemporary() {
			liveLocal.Clear(inst.Dst.ID)
		}
		for _, op := range inst.Srcs {
			if op != nil && op.Kind == ssaTemporary() {
				liveLocal.Set(op.ID)
			}
		}
	}
	block.LiveIn = ssa.NewBitSet()
	block.LiveIn.Union(liveLocal)
	block.LiveIn.Union(block.PhiDefs)

	processed[block] = true
}

func loopTreeDFS(loop *ssa.Loop) {
	if loop.Header == nil {
		// a switch's break frame: no header or members, only nested loops
		for _, child := range loop.Children {
			loopTreeDFS(child)
		}
		return
	}
	n := loop.Header
	liveLoop := n.LiveIn.Clone()
	andNot(liveLoop, n.PhiDefs)

	for _, m := range loop.Members {
		m.LiveIn.Union(liveLoop)
		m.LiveOut.Union(liveLoop)
	}
	for _, child := range loop.Children {
		loopTreeDFS(child)
	}
}

// andNot clears from a every bit that is set in b (BitSet has no
// built-in AndNot; liveness is the only caller).
func andNot(a, b *ssa.BitSet) {
	if b == nil {
		return
	}
	b.Each(func(i int) { a.Clear(i) })
}

func ssaTemporary() ssa.RValueKind { return ssa.RVTemporary }

// ComputeLiveIntervals walks every block backward from LiveOut,
// accumulating a live range per temporary per block it is live in,
// grounded on LivenessAnalyzer::computeLiveIntervals.
func ComputeLiveIntervals(fn *ssa.Function) *Info {
	info := &Info{Intervals: make(map[int][]Interval)}

	for _, block := range fn.Blocks {
		if len(block.Instructions) == 0 {
			continue
		}
		blockEnd := block.Instructions[len(block.Instructions)-1].Index
		blockStart := block.Instructions[0].Index

		liveSet := make(map[int]bool)
		block.LiveOut.Each(func(i int) { liveSet[i] = true })

		for id := range liveSet {
			addLiveRange(info, id, blockStart, blockEnd)
		}

		i := len(block.Instructions) - 1
		for i >= 0 && block.Instructions[i].Op != ssa.OpPhi {
			inst := block.Instructions[i]
			if inst.Dst != nil && inst.Dst.Kind == ssa.RVTemporary {
				delete(liveSet, inst.Dst.ID)
			}
			for _, op := range inst.Srcs {
				if op == nil || op.Kind != ssa.RVTemporary {
					continue
				}
				if !liveSet[op.ID] {
					liveSet[op.ID] = true
					addLiveRange(info, op.ID, blockStart, inst.Index)
				}
			}
			i--
		}
	}

	return info
}

func addLiveRange(info *Info, temp, blockStart, end int) {
	begin := blockStart
	if begin > end {
		begin = end
	}
	if begin == end {
		return // empty ranges are only hazards for fixed regs; none here
	}
	ranges := info.Intervals[temp]
	for idx := range ranges {
		if ranges[idx].overlaps(Interval{begin, end}) || ranges[idx].End == begin || end == ranges[idx].Begin {
			ranges[idx].extend(begin, end)
			info.Intervals[temp] = ranges
			return
		}
	}
	info.Intervals[temp] = append(ranges, Interval{begin, end})
}
