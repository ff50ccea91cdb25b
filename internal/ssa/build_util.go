package ssa

import "chronoscript/internal/value"

// LoopCtx tracks the blocks a `break`/`continue` inside the current loop
// must target (spec §4.1 "Loops push their after-block onto a break
// stack and their continue target onto a continue stack").
type LoopCtx struct {
	Loop        *Loop
	BreakTarget *BasicBlock
	ContinueTarget *BasicBlock
	parent      *LoopCtx
}

// BuildUtil is ChronoScript's parser-facing SSA construction API (spec
// §4.1's "high-level build API"), grounded on SSABuildUtil in ssa.cpp.
// The parser is a thin front-end that calls only these methods as it
// reduces productions.
type BuildUtil struct {
	Builder      *Builder
	Globals      *GlobalState
	StringCache  *value.Cache
	CurrentBlock *BasicBlock
	scope        *scope
	loop         *LoopCtx
}

func NewBuildUtil(b *Builder, g *GlobalState, sc *value.Cache) *BuildUtil {
	return &BuildUtil{Builder: b, Globals: g, StringCache: sc, scope: newScope(nil)}
}

func (u *BuildUtil) SetCurrentBlock(b *BasicBlock) { u.CurrentBlock = b }

func (u *BuildUtil) CreateBBAfter(existing *BasicBlock) *BasicBlock {
	blk := u.Builder.CreateBBAfter(existing)
	blk.Loop = u.currentLoop()
	return blk
}

func (u *BuildUtil) SealBlock(b *BasicBlock) { u.Builder.SealBlock(b) }

func (u *BuildUtil) currentLoop() *Loop {
	if u.loop == nil {
		return nil
	}
	return u.loop.Loop
}

// ---- scopes ----

func (u *BuildUtil) PushScope() { u.scope = newScope(u.scope) }

func (u *BuildUtil) PopScope() {
	if u.scope.parent != nil {
		u.scope = u.scope.parent
	}
}

// DeclareVariable fails if name already exists in the innermost scope or
// as a global (spec §4.1).
func (u *BuildUtil) DeclareVariable(name string) bool {
	if u.scope.hasLocal(name) {
		return false
	}
	if _, isGlobal := u.Globals.Lookup(name); isGlobal {
		return false
	}
	u.scope.names[name] = true
	return true
}

// DeclareGlobal declares a global variable, failing on redefinition.
func (u *BuildUtil) DeclareGlobal(name string) (int, bool) {
	return u.Globals.Declare(name)
}

// WriteVariable routes to a global Export when name is global, otherwise
// to the local SSA definition (spec §4.1).
func (u *BuildUtil) WriteVariable(name string, val *RValue) bool {
	if u.scope.has(name) {
		u.Builder.WriteVariable(name, u.CurrentBlock, val)
		val.LV = &LValue{Name: name}
		return true
	}
	if gid, ok := u.Globals.Lookup(name); ok {
		u.MkExport(gid, val)
		return true
	}
	return false
}

// ReadVariable mirrors WriteVariable's routing; an Undef is returned for
// names that are neither local nor global.
func (u *BuildUtil) ReadVariable(name string) *RValue {
	if u.scope.has(name) {
		v := u.Builder.ReadVariable(name, u.CurrentBlock)
		return stampLV(v, &LValue{Name: name})
	}
	if gid, ok := u.Globals.Lookup(name); ok {
		return u.mkGetGlobal(gid)
	}
	return Undef()
}

func stampLV(v *RValue, lv *LValue) *RValue {
	if v != nil && v.LV == nil {
		v.LV = lv
	}
	return v
}

// ---- loops ----

func (u *BuildUtil) PushLoop(loop *Loop, breakTarget, continueTarget *BasicBlock) {
	loop.Parent = u.currentLoop()
	if loop.Parent == nil {
		u.Builder.Func.Loops = append(u.Builder.Func.Loops, loop)
	} else {
		loop.Parent.Children = append(loop.Parent.Children, loop)
	}
	u.loop = &LoopCtx{Loop: loop, BreakTarget: breakTarget, ContinueTarget: continueTarget, parent: u.loop}
}

func (u *BuildUtil) PopLoop() {
	if u.loop != nil {
		u.loop = u.loop.parent
	}
}

func (u *BuildUtil) BreakTarget() *BasicBlock {
	if u.loop == nil {
		return nil
	}
	return u.loop.BreakTarget
}

func (u *BuildUtil) ContinueTarget() *BasicBlock {
	if u.loop == nil {
		return nil
	}
	return u.loop.ContinueTarget
}

// ---- instruction constructors (mk* family) ----

func (u *BuildUtil) mkGetGlobal(id int) *RValue {
	dst := &RValue{Kind: RVTemporary, ID: u.Builder.ValueID()}
	inst := &Instruction{Op: OpGetGlobal, Dst: dst, GlobalID: id}
	dst.Def = inst
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	return dst
}

func (u *BuildUtil) MkExport(globalID int, src *RValue) *Instruction {
	inst := &Instruction{Op: OpExport, GlobalID: globalID, Srcs: []*RValue{src}}
	addUser(src, inst)
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	return inst
}

func (u *BuildUtil) MkUnaryOp(op OpCode, src *RValue) *RValue {
	if src.IsConstant() {
		if folded, ok := FoldUnary(u.StringCache, op, src.Value); ok {
			return u.Builder.AddConstant(&RValue{Value: folded})
		}
	}
	dst := &RValue{Kind: RVTemporary, ID: u.Builder.ValueID()}
	inst := &Instruction{Op: op, Dst: dst, Srcs: []*RValue{src}}
	dst.Def = inst
	addUser(src, inst)
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	return applyBoolPeephole(u, op, dst, src, nil)
}

func (u *BuildUtil) MkBinaryOp(op OpCode, src0, src1 *RValue) *RValue {
	if src0.IsConstant() && src1.IsConstant() {
		if folded, ok := FoldBinary(u.StringCache, op, src0.Value, src1.Value); ok {
			return u.Builder.AddConstant(&RValue{Value: folded})
		}
	}
	dst := &RValue{Kind: RVTemporary, ID: u.Builder.ValueID()}
	inst := &Instruction{Op: op, Dst: dst, Srcs: []*RValue{src0, src1}}
	dst.Def = inst
	addUser(src0, inst)
	addUser(src1, inst)
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	return applyBoolPeephole(u, op, dst, src0, src1)
}

func (u *BuildUtil) MkConstInt(i int32) *RValue {
	return u.Builder.AddConstant(&RValue{Value: value.Int(i)})
}

func (u *BuildUtil) MkConstFloat(f float64) *RValue {
	return u.Builder.AddConstant(&RValue{Value: value.Dec(f)})
}

func (u *BuildUtil) MkConstString(s string) *RValue {
	return u.Builder.AddConstant(&RValue{Value: value.ParseStringConstant(u.StringCache, s)})
}

func (u *BuildUtil) MkNull() *RValue {
	return u.Builder.AddConstant(&RValue{Value: value.Nil()})
}

func (u *BuildUtil) MkJump(op OpCode, target *BasicBlock, srcs ...*RValue) *Instruction {
	inst := &Instruction{Op: op, Target: target, Srcs: srcs}
	for _, s := range srcs {
		addUser(s, inst)
	}
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	return inst
}

func (u *BuildUtil) MkReturn(src *RValue) *Instruction {
	inst := &Instruction{Op: OpReturn}
	if src != nil {
		inst.Srcs = []*RValue{src}
		addUser(src, inst)
	}
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	return inst
}

func (u *BuildUtil) MkMove(src *RValue) *RValue {
	dst := &RValue{Kind: RVTemporary, ID: u.Builder.ValueID()}
	inst := &Instruction{Op: OpMov, Dst: dst, Srcs: []*RValue{src}}
	dst.Def = inst
	addUser(src, inst)
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	return dst
}

// StartCall / InsertCall split call construction into "build the
// operand list" and "place it in the block", mirroring
// startFunctionCall/insertFunctionCall (so method receivers and params
// can be appended before the call joins the instruction stream).
func (u *BuildUtil) StartCall(op OpCode, name string) *Instruction {
	dst := &RValue{Kind: RVTemporary, ID: u.Builder.ValueID()}
	inst := &Instruction{Op: op, Dst: dst, CalleeName: name}
	dst.Def = inst
	return inst
}

func (u *BuildUtil) AppendCallArg(call *Instruction, arg *RValue) {
	call.Srcs = append(call.Srcs, arg)
	addUser(arg, call)
}

func (u *BuildUtil) InsertCall(call *Instruction) *RValue {
	u.Builder.InsertInstruction(call, u.CurrentBlock)
	return call.Dst
}

func (u *BuildUtil) MkGet(container, key *RValue) *RValue {
	dst := &RValue{Kind: RVTemporary, ID: u.Builder.ValueID()}
	inst := &Instruction{Op: OpGet, Dst: dst, Container: container, Key: key}
	dst.Def = inst
	addUser(container, inst)
	addUser(key, inst)
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	dst.LV = &LValue{IsContainer: true, Container: container, Key: key}
	return dst
}

func (u *BuildUtil) MkSet(container, key, rhs *RValue) *Instruction {
	inst := &Instruction{Op: OpSet, Container: container, Key: key, Srcs: []*RValue{rhs}}
	addUser(container, inst)
	addUser(key, inst)
	addUser(rhs, inst)
	u.Builder.InsertInstruction(inst, u.CurrentBlock)
	return inst
}

// MkAssignment implements spec §4.1's `mkAssignment(lv, rhs)`: writes a
// variable, or emits a Set when lv names a container slot.
func (u *BuildUtil) MkAssignment(lv *LValue, rhs *RValue) {
	if lv.IsContainer {
		u.MkSet(lv.Container, lv.Key, rhs)
		return
	}
	u.WriteVariable(lv.Name, rhs)
}

// ReadBack reconstructs the current value named by lv, for compound
// assignment desugaring (`+=` etc. build
// mkAssignment(lv, mkBinaryOp(op, readBack(lv), rhs))`).
func (u *BuildUtil) ReadBack(lv *LValue) *RValue {
	if lv.IsContainer {
		return u.MkGet(lv.Container, lv.Key)
	}
	return u.ReadVariable(lv.Name)
}
