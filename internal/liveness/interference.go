package liveness

import "chronoscript/internal/ssa"

// Node is one interference-graph vertex, initially one per temporary,
// merged by union-find during coalescing (grounded on InterferenceNode
// in liveness.h/.cpp).
type Node struct {
	ID           int // assigned during BuildGraph, ordered by live-range start
	TempIDs      []int
	Live         []Interval
	Parent       *Node
	Interferes   map[*Node]bool
}

func newNode() *Node {
	return &Node{ID: -1, Interferes: make(map[*Node]bool)}
}

func (n *Node) root() *Node {
	if n.Parent != nil {
		return n.Parent.root()
	}
	return n
}

func (n *Node) overlapsAny(other *Node) bool {
	for _, a := range n.Live {
		for _, b := range other.Live {
			if a.overlaps(b) {
				return true
			}
		}
	}
	return false
}

// mergeInto unions src into dst if their live ranges don't overlap,
// mirroring InterferenceNode::mergeInto.
func mergeInto(src, dst *Node) bool {
	if dst.overlapsAny(src) {
		return false
	}
	dst.Live = append(dst.Live, src.Live...)
	dst.TempIDs = append(dst.TempIDs, src.TempIDs...)
	src.Parent = dst
	return true
}

// Graph is the coalesced interference graph for one function.
type Graph struct {
	nodeForTemp map[int]*Node
	nodes       []*Node // unique roots, set by BuildGraph
}

// NewGraph seeds one Node per temporary from the liveness Info.
func NewGraph(fn *ssa.Function, info *Info) *Graph {
	g := &Graph{nodeForTemp: make(map[int]*Node)}
	for _, t := range fn.Temporaries {
		n := newNode()
		n.TempIDs = []int{t.ID}
		n.Live = append([]Interval(nil), info.Intervals[t.ID]...)
		g.nodeForTemp[t.ID] = n
	}
	return g
}

func (g *Graph) nodeOf(tempID int) *Node { return g.nodeForTemp[tempID].root() }

func (g *Graph) merge(dstTemp, srcTemp int) bool {
	dst := g.nodeOf(dstTemp)
	src := g.nodeOf(srcTemp)
	if dst == src {
		return true
	}
	if !mergeInto(src, dst) {
		return false
	}
	g.nodeForTemp[srcTemp] = dst
	return true
}

// Coalesce merges every phi's destination with each of its (now
// phi-copy) sources, then tries to also merge each copy's source with
// the copy's own destination — exactly the two-step coalesce pass in
// LivenessAnalyzer::coalesce. Phi/phi-source merges are correctness
// requirements (they must always succeed, since PrepareForRegAlloc's
// phi-copy insertion guarantees disjoint ranges); the mov/mov-source
// merge is a best-effort register-pressure optimization.
func (g *Graph) Coalesce(fn *ssa.Function) {
	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			if inst.Op != ssa.OpPhi {
				continue
			}
			dst := inst.Dst.ID
			for _, src := range inst.PhiSrcs {
				if src == nil || src.Kind != ssa.RVTemporary {
					continue
				}
				g.merge(dst, src.ID)
				if src.Def != nil && src.Def.Op == ssa.OpMov && len(src.Def.Srcs) == 1 {
					inner := src.Def.Srcs[0]
					if inner != nil && inner.Kind == ssa.RVTemporary {
						g.merge(src.ID, inner.ID)
					}
				}
			}
		}
	}
}

// BuildGraph numbers the surviving unique nodes by live-range start and
// sweeps an active list to record pairwise interference (grounded on
// LivenessAnalyzer::buildInterferenceGraph). A node leaves the active
// list once its last range has ended. The sort is an insertion sort and
// each step scans the whole active list, so the worst case is O(n^2).
func (g *Graph) BuildGraph(fn *ssa.Function) {
	seen := make(map[*Node]bool)
	var roots []*Node
	for _, t := range fn.Temporaries {
		r := g.nodeOf(t.ID)
		if !seen[r] {
			seen[r] = true
			roots = append(roots, r)
		}
	}

	// stable-ish sort by earliest live-range start
	for i := 1; i < len(roots); i++ {
		for j := i; j > 0 && earliestStart(roots[j]) < earliestStart(roots[j-1]); j-- {
			roots[j], roots[j-1] = roots[j-1], roots[j]
		}
	}
	for i, r := range roots {
		r.ID = i
	}
	g.nodes = roots

	var active []*Node
	for _, cur := range roots {
		var kept []*Node
		for _, n := range active {
			if latestEnd(n) <= earliestStart(cur) {
				continue // expired
			}
			if n.overlapsAny(cur) {
				n.Interferes[cur] = true
				cur.Interferes[n] = true
			}
			kept = append(kept, n)
		}
		active = append(kept, cur)
	}
}

func earliestStart(n *Node) int {
	if len(n.Live) == 0 {
		return 0
	}
	m := n.Live[0].Begin
	for _, iv := range n.Live[1:] {
		if iv.Begin < m {
			m = iv.Begin
		}
	}
	return m
}

func latestEnd(n *Node) int {
	if len(n.Live) == 0 {
		return 0
	}
	m := n.Live[0].End
	for _, iv := range n.Live[1:] {
		if iv.End > m {
			m = iv.End
		}
	}
	return m
}

// Nodes returns the unique, numbered interference-graph vertices, ready
// for C6's MCS elimination ordering.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodeForTemp returns the (coalesced) node a temporary ID now belongs
// to, for writing an assigned register back into every RValue sharing
// that temporary's class.
func (g *Graph) NodeForTemp(tempID int) *Node { return g.nodeOf(tempID) }
