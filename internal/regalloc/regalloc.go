// Package regalloc assigns registers to coalesced interference-graph
// nodes (C6), grounded on original_source/regalloc.cpp: Maximum
// Cardinality Search produces a simplicial elimination ordering of an
// SSA program's (chordal) interference graph, then greedy coloring in
// that order is optimal — using no more colors than the graph's maximum
// clique size.
//
// The original's WeightBuckets is a weight-indexed doubly linked list
// purely for O(1) "highest-weight vertex" pops; Go's GC and slice
// costs make that micro-optimization not worth the complexity here, so
// maximumCardinalitySearch below does the equivalent O(V^2) scan. The
// ordering produced, and therefore the coloring, is identical.
package regalloc

import (
	"chronoscript/internal/liveness"
	"chronoscript/internal/ssa"
)

// Result maps each interference node to an assigned register number
// (0-based). Nothing spills: bytecode.Build sizes each function's
// temporary register file to the highest register used.
type Result struct {
	Color map[*liveness.Node]int
}

// NumColors returns one greater than the highest color used — the
// number of registers this function needs.
func (r *Result) NumColors() int {
	max := -1
	for _, c := range r.Color {
		if c > max {
			max = c
		}
	}
	return max + 1
}

// Run executes MCS followed by greedy coloring over g's nodes.
func Run(g *liveness.Graph) *Result {
	ordering := maximumCardinalitySearch(g.Nodes())
	return greedyColoring(ordering)
}

// ApplyColors writes each temporary's assigned register number back
// into every RValue sharing that temporary's class (coalesced phi/mov
// families resolve to the same node, hence the same register) — the
// bridge C6 hands to C7's bytecode builder.
func ApplyColors(fn *ssa.Function, g *liveness.Graph, result *Result) {
	for _, t := range fn.Temporaries {
		node := g.NodeForTemp(t.ID)
		t.Reg = result.Color[node]
	}
}

func maximumCardinalitySearch(nodes []*liveness.Node) []*liveness.Node {
	weight := make(map[*liveness.Node]int, len(nodes))
	ordered := make(map[*liveness.Node]bool, len(nodes))
	for _, n := range nodes {
		weight[n] = 0
	}

	ordering := make([]*liveness.Node, len(nodes))
	for i := 0; i < len(nodes); i++ {
		var v *liveness.Node
		best := -1
		for _, n := range nodes {
			if ordered[n] {
				continue
			}
			if weight[n] > best {
				best = weight[n]
				v = n
			}
		}
		ordering[i] = v
		ordered[v] = true
		for u := range v.Interferes {
			if !ordered[u] {
				weight[u]++
			}
		}
	}
	return ordering
}

// greedyColoring assigns the smallest color not already used by a
// neighbor, processing nodes in MCS order (optimal for chordal graphs).
func greedyColoring(ordering []*liveness.Node) *Result {
	res := &Result{Color: make(map[*liveness.Node]int, len(ordering))}
	for _, n := range ordering {
		used := make(map[int]bool)
		for neighbor := range n.Interferes {
			if c, ok := res.Color[neighbor]; ok {
				used[c] = true
			}
		}
		color := 0
		for used[color] {
			color++
		}
		res.Color[n] = color
	}
	return res
}
