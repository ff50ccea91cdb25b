package ssa

// PrepareForRegAlloc runs the post-build clean-up pass the builder's
// consumers (liveness, regalloc, bytecode) depend on (spec §4.1 step
// list): dead-code elimination, phi-copy insertion, Preds-derived Succs,
// dense temporary renumbering, sequential instruction indices, and the
// per-block PhiDefs/PhiUses bitsets.
func PrepareForRegAlloc(fn *Function) {
	removeDeadInstructions(fn)
	insertPhiCopies(fn)
	buildSuccs(fn)
	renumberTemporaries(fn)
	assignInstructionIndices(fn)
	computePhiBitsets(fn)
}

// removeDeadInstructions iteratively deletes instructions that define a
// temporary with no remaining users and carry no side effect, until a
// fixed point (spec §4.1: "calls and Set are never dead").
func removeDeadInstructions(fn *Function) {
	for {
		changed := false
		for _, block := range fn.Blocks {
			kept := block.Instructions[:0:0]
			for _, inst := range block.Instructions {
				if isDead(inst) {
					dropFromUserLists(inst)
					changed = true
					continue
				}
				kept = append(kept, inst)
			}
			block.Instructions = kept
		}
		if !changed {
			return
		}
	}
}

func isDead(inst *Instruction) bool {
	if inst.Op.HasSideEffects() {
		return false
	}
	if inst.Dst == nil {
		return false
	}
	return len(inst.Dst.Users) == 0
}

// dropFromUserLists removes inst from the user list of every RValue it
// reads, so a chain of now-unused definitions becomes removable on a
// later pass.
func dropFromUserLists(inst *Instruction) {
	for _, op := range inst.AllOperands() {
		if op == nil || op.Kind != RVTemporary {
			continue
		}
		filtered := op.Users[:0:0]
		for _, u := range op.Users {
			if u != inst {
				filtered = append(filtered, u)
			}
		}
		op.Users = filtered
	}
}

// insertPhiCopies inserts a Mov for every phi operand into the tail of
// its source predecessor block (spec §4.1 step 2), and redirects any
// other use of that operand which is dominated by the copy (through the
// phi's own block, excluded so the phi itself keeps reading the
// original source) to read the new, shorter-lived temporary instead.
func insertPhiCopies(fn *Function) {
	for _, block := range fn.Blocks {
		for _, phi := range block.Instructions {
			if phi.Op != OpPhi {
				continue
			}
			for i, pred := range phi.PhiBlocks {
				src := phi.PhiSrcs[i]
				mov := &Instruction{Op: OpMov, IsPhiMove: true, Block: pred}
				dst := &RValue{Kind: RVTemporary, ID: fn.valueID(), Def: mov}
				mov.Dst = dst
				mov.Srcs = []*RValue{src}
				if src != nil && src.Kind == RVTemporary {
					src.Users = append(src.Users, mov)
				}
				insertBeforeTerminator(pred, mov)

				phi.PhiSrcs[i] = dst
				dst.Users = append(dst.Users, phi)

				redirectDominatedUses(src, dst, pred, block)
			}
		}
	}
}

// insertBeforeTerminator places inst just ahead of block's last
// instruction (its jump/branch/return terminator), or at the end if the
// block has none yet.
func insertBeforeTerminator(block *BasicBlock, inst *Instruction) {
	n := len(block.Instructions)
	if n == 0 {
		block.Instructions = append(block.Instructions, inst)
		return
	}
	last := block.Instructions[n-1]
	switch last.Op {
	case OpJmp, OpBranchTrue, OpBranchFalse, OpBranchEqual, OpReturn:
		block.Instructions = append(block.Instructions[:n], inst)
		copy(block.Instructions[n:], block.Instructions[n-1:n])
		block.Instructions[n-1] = inst
	default:
		block.Instructions = append(block.Instructions, inst)
	}
}

// redirectDominatedUses rewrites every remaining use of src, other than
// the phi itself, to read movDst instead, provided the use is dominated
// by pred (the block the new Mov now lives in) once paths through the
// phi's own block are excluded. This shrinks src's live range without
// changing any value actually observed.
func redirectDominatedUses(src, movDst *RValue, pred, phiBlock *BasicBlock) {
	if src == nil || src.Kind != RVTemporary {
		return
	}
	var remaining []*Instruction
	for _, u := range src.Users {
		if u.Dst == movDst {
			remaining = append(remaining, u)
			continue
		}
		if u.Block != nil && pred.Dominates(u.Block, phiBlock) {
			u.ReplaceOperand(src, movDst)
			movDst.Users = append(movDst.Users, u)
			continue
		}
		remaining = append(remaining, u)
	}
	src.Users = remaining
}

func buildSuccs(fn *Function) {
	for _, block := range fn.Blocks {
		block.Succs = nil
	}
	for _, block := range fn.Blocks {
		for _, pred := range block.Preds {
			pred.Succs = append(pred.Succs, block)
		}
	}
}

// renumberTemporaries assigns dense, emission-order IDs to every
// surviving temporary and repopulates Function.Temporaries so
// Temporaries[i].ID == i (required by C5/C6's bitset indexing).
func renumberTemporaries(fn *Function) {
	fn.Temporaries = fn.Temporaries[:0]
	next := 0
	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			if inst.Dst == nil || inst.Dst.Kind != RVTemporary {
				continue
			}
			inst.Dst.ID = next
			next++
			fn.Temporaries = append(fn.Temporaries, inst.Dst)
		}
	}
}

func assignInstructionIndices(fn *Function) {
	idx := 0
	for _, block := range fn.Blocks {
		block.StartIndex = idx
		for _, inst := range block.Instructions {
			inst.Index = idx
			idx++
		}
	}
}

// computePhiBitsets fills PhiDefs (temporaries defined by a phi in this
// block) and PhiUses (temporaries read as a phi operand sourced from
// this block) — the special cases liveness's loop-propagation step
// needs (spec §5, "phi operands are live-out of their source block but
// must not be unioned into the phi's own block's live-in").
func computePhiBitsets(fn *Function) {
	for _, block := range fn.Blocks {
		block.PhiDefs = NewBitSet()
		block.PhiUses = NewBitSet()
	}
	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			if inst.Op != OpPhi {
				continue
			}
			block.PhiDefs.Set(inst.Dst.ID)
			for i, src := range inst.PhiSrcs {
				if src == nil || src.Kind != RVTemporary {
					continue
				}
				pred := inst.PhiBlocks[i]
				pred.PhiUses.Set(src.ID)
			}
		}
	}
}
