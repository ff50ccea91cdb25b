package ssa

// Builder constructs one Function's SSA body using Braun et al.'s
// on-the-fly algorithm (no dominator tree), grounded on
// original_source/ssa.cpp's SSABuilder and the teacher's
// internal/ir/builder.go incomplete-phi/sealed-block scaffolding.
type Builder struct {
	Func *Function
}

func NewBuilder(fn *Function) *Builder {
	return &Builder{Func: fn}
}

// CreateBBAfter appends a new block to the function's block list
// (mirrors SSABuilder::createBBAfter; "after" is purely a textual-order
// hint here, as in the original, since actual control flow is expressed
// via Preds/Succs).
func (b *Builder) CreateBBAfter(existing *BasicBlock) *BasicBlock {
	blk := &BasicBlock{
		ID:             b.Func.newBlockID(),
		Func:           b.Func,
		IncompletePhis: make(map[string]*Instruction),
		CurrentDef:     make(map[string]*RValue),
		domMemo:        make(map[*BasicBlock]*bool),
	}
	b.Func.Blocks = append(b.Func.Blocks, blk)
	if b.Func.Entry == nil {
		b.Func.Entry = blk
	}
	return blk
}

// InsertInstruction appends inst to block, after any existing phis
// (spec §3 invariant: "within a block, all phis precede all non-phi
// instructions").
func (b *Builder) InsertInstruction(inst *Instruction, block *BasicBlock) {
	inst.Block = block
	if inst.Op == OpPhi {
		// phis are only ever inserted at the start by readVariable/addPhiOperands;
		// callers append non-phi instructions, which always land after.
		block.Instructions = append([]*Instruction{inst}, block.Instructions...)
		return
	}
	block.Instructions = append(block.Instructions, inst)
}

// InsertInstructionAtStart forces inst to the very front of block,
// ahead of any phis. Nothing in this module calls it.
func (b *Builder) InsertInstructionAtStart(inst *Instruction, block *BasicBlock) {
	inst.Block = block
	block.Instructions = append([]*Instruction{inst}, block.Instructions...)
}

func (b *Builder) ValueID() int { return b.Func.valueID() }

// AddConstant interns value v as a Constant RValue for this function
// (mirrors SSABuilder::addConstant — constants are function-scoped).
// Every call appends a new slot; equal values are not merged, here or
// when bytecode.Build copies the pool.
func (b *Builder) AddConstant(v *RValue) *RValue {
	v.Kind = RVConstant
	v.ConstID = len(b.Func.Constants)
	b.Func.Constants = append(b.Func.Constants, v)
	return v
}

// ---- Braun et al. on-the-fly SSA construction (spec §4.1) ----

// WriteVariable records that v holds value val at the end of block
// (mirrors SSABuilder::writeVariable).
func (b *Builder) WriteVariable(v string, block *BasicBlock, val *RValue) {
	block.CurrentDef[v] = val
}

// ReadVariable resolves v's current value at the end of block, recursing
// through unsealed/single-predecessor/merge cases per Braun's algorithm.
func (b *Builder) ReadVariable(v string, block *BasicBlock) *RValue {
	if val, ok := block.CurrentDef[v]; ok {
		return val
	}
	return b.readVariableRecursive(v, block)
}

func (b *Builder) readVariableRecursive(v string, block *BasicBlock) *RValue {
	var val *RValue

	if !block.Sealed {
		// Incomplete CFG: place an operand-less phi and remember it.
		phi := b.newPhi(block)
		block.IncompletePhis[v] = phi
		val = phi.Dst
	} else if len(block.Preds) == 1 {
		val = b.ReadVariable(v, block.Preds[0])
	} else {
		phi := b.newPhi(block)
		val = phi.Dst
		// Break potential cycles before recursing into predecessors.
		b.WriteVariable(v, block, val)
		val = b.addPhiOperands(v, phi)
	}

	b.WriteVariable(v, block, val)
	return val
}

func (b *Builder) newPhi(block *BasicBlock) *Instruction {
	dst := &RValue{Kind: RVTemporary, ID: b.ValueID()}
	phi := &Instruction{Op: OpPhi, Dst: dst, Block: block}
	dst.Def = phi
	// phis always live at the very front of the block, ahead of any
	// non-phi instructions already present.
	block.Instructions = append([]*Instruction{phi}, block.Instructions...)
	return phi
}

// addPhiOperands fills phi with one operand per predecessor of its
// owning block, then attempts trivial-phi elimination.
func (b *Builder) addPhiOperands(v string, phi *Instruction) *RValue {
	block := phi.Block
	for _, pred := range block.Preds {
		src := b.ReadVariable(v, pred)
		phi.PhiSrcs = append(phi.PhiSrcs, src)
		phi.PhiBlocks = append(phi.PhiBlocks, pred)
		addUser(src, phi)
	}
	return b.tryRemoveTrivialPhi(phi)
}

func addUser(v *RValue, user *Instruction) {
	if v == nil || v.Kind != RVTemporary {
		return
	}
	v.Users = append(v.Users, user)
}

// tryRemoveTrivialPhi replaces a trivial phi (at most one distinct
// non-self operand) by that operand, rewriting all uses — including
// uses by other phis, which are recursively re-tested (spec §4.1).
func (b *Builder) tryRemoveTrivialPhi(phi *Instruction) *RValue {
	var same *RValue
	for _, op := range phi.PhiSrcs {
		if op == phi.Dst || op == same {
			continue
		}
		if same != nil {
			// more than one distinct operand: not trivial
			return phi.Dst
		}
		same = op
	}

	if same == nil {
		same = Undef()
	}

	users := phi.Dst.Users
	phi.Dst.Users = nil
	phi.removed = true
	removeInstruction(phi)

	// Rewrite every use of phi.Dst to same, recursively re-testing phi users.
	for _, u := range users {
		if u == phi {
			continue
		}
		u.ReplaceOperand(phi.Dst, same)
		addUser(same, u)
		if u.Op == OpPhi && !u.removed {
			b.tryRemoveTrivialPhi(u)
		}
	}

	// Fix up any currentDef cell still pointing at the removed phi.
	for _, blk := range b.Func.Blocks {
		for name, val := range blk.CurrentDef {
			if val == phi.Dst {
				blk.CurrentDef[name] = same
			}
		}
	}

	return same
}

func removeInstruction(inst *Instruction) {
	blk := inst.Block
	for i, in := range blk.Instructions {
		if in == inst {
			blk.Instructions = append(blk.Instructions[:i], blk.Instructions[i+1:]...)
			return
		}
	}
}

// SealBlock finalizes block's predecessor set: every incomplete phi
// gets its operands filled in, then the block is marked sealed. A
// sealed block's predecessors must never change afterward (spec §4.1,
// §9 "Implementers must preserve the sealing discipline").
func (b *Builder) SealBlock(block *BasicBlock) {
	for v, phi := range block.IncompletePhis {
		b.addPhiOperands(v, phi)
		_ = v
	}
	block.IncompletePhis = make(map[string]*Instruction)
	block.Sealed = true
}
