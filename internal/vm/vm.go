// Package vm is ChronoScript's direct-dispatch bytecode interpreter
// (C8), grounded on original_source/Interpreter.cpp's execFunction: a
// single switch over ExecInstruction.opCode, operands fetched from one
// of four register files (temp/param/global/constant) by a packed
// 16-bit (file, index) pair.
package vm

import (
	"fmt"

	"chronoscript/internal/bytecode"
	"chronoscript/internal/heap"
	"chronoscript/internal/value"
	"chronoscript/internal/ssa"
)

// Builtin is a host function's Go implementation (spec §4.7's
// "host-call failure convention": an error return is a script-level
// runtime failure, not a Go panic).
type Builtin func(m *Machine, args []value.Value) (value.Value, error)

// HostHandle is a host-defined Pointer type (spec §4.7: "host-type
// handles carry a small type tag so that get/set against them can
// dispatch to per-type property accessors"), grounded on
// ScriptHandle::getScriptProperty/setScriptProperty in
// original_source/ScriptHandle.hpp and FakeEngineTypes.cpp.
type HostHandle interface {
	GetProperty(m *Machine, name string) (value.Value, error)
	SetProperty(m *Machine, name string, v value.Value) error
}

// Machine owns every piece of state one script execution needs: the
// container heap, string cache, global variable slots, and the
// compiled module being run — mirroring Interpreter's globals/constants
// plus the ambient StrCache/ObjectHeap singletons the original keeps as
// process-wide globals.
type Machine struct {
	Module       *bytecode.Module
	Heap         *heap.Heap
	Strings      *value.Cache
	Globals      []value.Value
	Builtins     []Builtin
	BuiltinNames map[string]int
	Methods      []Builtin
	MethodNames  map[string]int
	Handles      []HostHandle
	ScriptArgs   []string // runscript's argv, surfaced to scripts via get_args()
}

func NewMachine(mod *bytecode.Module) *Machine {
	return NewMachineWithStrings(mod, value.NewCache())
}

// NewMachineWithStrings builds a Machine that runs mod against an
// already-populated string cache rather than a fresh empty one.
// Required whenever mod's constant pool was folded during parsing
// against a specific *value.Cache (spec §4.1's constant folding funnels
// new string constants into that same cache): a String value.Value's
// Idx only means anything relative to the cache it was interned into,
// so the cache the parser built constants against and the cache the
// VM reads them back out of must be the same instance.
func NewMachineWithStrings(mod *bytecode.Module, sc *value.Cache) *Machine {
	return &Machine{
		Module:       mod,
		Heap:         heap.New(),
		Strings:      sc,
		Globals:      make([]value.Value, len(mod.Globals)),
		BuiltinNames: make(map[string]int),
		MethodNames:  make(map[string]int),
	}
}

// RegisterBuiltin installs a host function at a stable index, resolved
// by name at link time (C9/C10) into OpCallBuiltin's BuiltinIndex.
func (m *Machine) RegisterBuiltin(name string, fn Builtin) int {
	idx := len(m.Builtins)
	m.Builtins = append(m.Builtins, fn)
	m.BuiltinNames[name] = idx
	return idx
}

// RegisterMethod installs a method function in the separate methods
// table OpCallMethod indexes into — free builtins and methods are two
// independently sorted/resolved tables (spec §4.7), never confused with
// each other even though both are Go Builtin funcs under the hood.
func (m *Machine) RegisterMethod(name string, fn Builtin) int {
	idx := len(m.Methods)
	m.Methods = append(m.Methods, fn)
	m.MethodNames[name] = idx
	return idx
}

// RegisterHandle stores h and returns the PtrID a value.Ptr should carry
// to reference it; ptrType is caller-chosen (e.g. one tag per host type)
// and is never interpreted by the VM itself.
func (m *Machine) RegisterHandle(h HostHandle) uint32 {
	id := uint32(len(m.Handles))
	m.Handles = append(m.Handles, h)
	return id
}

func (m *Machine) handle(v value.Value) (HostHandle, bool) {
	if v.Tag != value.Pointer || int(v.PtrID) >= len(m.Handles) {
		return nil, false
	}
	return m.Handles[v.PtrID], true
}

// HandleFor exposes handle lookup to builtins that need to recover the
// concrete Go type behind a Pointer value (e.g. create_entity resolving
// its model parameter, move() resolving its entity receiver).
func (m *Machine) HandleFor(v value.Value) (HostHandle, bool) {
	return m.handle(v)
}

func (m *Machine) containerToString(tag value.Tag, idx int32) string {
	return m.Heap.ToString(tag, idx)
}

// ContainerToString exposes the Add/ToString container-stringification
// hook (package value's ContainerToString callback) to builtins that
// need to render an arbitrary value, e.g. to_string/log.
func (m *Machine) ContainerToString(tag value.Tag, idx int32) string {
	return m.containerToString(tag, idx)
}

// Call runs fn to completion with the given arguments and returns its
// result (mirrors Interpreter::runFunction / execFunction).
func (m *Machine) Call(fn *bytecode.Function, params []value.Value) (value.Value, error) {
	gprs := make([]value.Value, fn.NumTemps)
	callParams := make([]value.Value, fn.MaxCallParams)

	index := 0
	for {
		if index >= len(fn.Instructions) {
			return value.Nil(), fmt.Errorf("fell off the end of %s", fn.Name)
		}
		inst := &fn.Instructions[index]
		jumped := false

		switch inst.OpCode {
		case ssa.OpJmp:
			index = int(inst.Src2)
			jumped = true

		case ssa.OpBranchTrue, ssa.OpBranchFalse:
			src0 := m.fetch(inst.Src0, gprs, params, fn)
			should := value.IsTrue(src0)
			if inst.OpCode == ssa.OpBranchFalse {
				should = !should
			}
			if should {
				index = int(inst.Src2)
				jumped = true
			}

		case ssa.OpBranchEqual:
			src0 := m.fetch(inst.Src0, gprs, params, fn)
			src1 := m.fetch(inst.Src1, gprs, params, fn)
			if value.IsTrue(value.Eq(m.Strings, src0, src1)) {
				index = int(inst.Src2)
				jumped = true
			}

		case ssa.OpReturn:
			if inst.Src0 != bytecode.MakeOperand(bytecode.FileNone, 0) {
				return m.promoteReturn(m.fetch(inst.Src0, gprs, params, fn)), nil
			}
			return value.Nil(), nil

		case ssa.OpMov:
			gprs[inst.Dst] = m.fetch(inst.Src0, gprs, params, fn)

		case ssa.OpNeg, ssa.OpBoolNot, ssa.OpBitNot, ssa.OpBool:
			src0 := m.fetch(inst.Src0, gprs, params, fn)
			v, err := m.applyUnary(inst.OpCode, src0)
			if err != nil {
				return value.Nil(), err
			}
			gprs[inst.Dst] = v

		case ssa.OpBitOr, ssa.OpXor, ssa.OpBitAnd, ssa.OpEq, ssa.OpNe, ssa.OpLt, ssa.OpGt,
			ssa.OpGe, ssa.OpLe, ssa.OpShl, ssa.OpShr, ssa.OpAdd, ssa.OpSub, ssa.OpMul, ssa.OpDiv,
			ssa.OpMod, ssa.OpBoolOr, ssa.OpBoolAnd:
			src0 := m.fetch(inst.Src0, gprs, params, fn)
			src1 := m.fetch(inst.Src1, gprs, params, fn)
			v, err := m.applyBinary(inst.OpCode, src0, src1)
			if err != nil {
				return value.Nil(), err
			}
			gprs[inst.Dst] = v

		case ssa.OpGet:
			container := m.fetch(inst.Src0, gprs, params, fn)
			key := m.fetch(inst.Src1, gprs, params, fn)
			var v value.Value
			var err error
			if h, ok := m.handle(container); ok {
				if key.Tag != value.String {
					return value.Nil(), fmt.Errorf("property name must be a string")
				}
				v, err = h.GetProperty(m, m.Strings.Get(key.Idx))
			} else {
				v, err = m.Heap.Get(m.Strings, container, key)
			}
			if err != nil {
				return value.Nil(), err
			}
			gprs[inst.Dst] = v

		case ssa.OpSet:
			container := m.fetch(inst.Src0, gprs, params, fn)
			key := m.fetch(inst.Src1, gprs, params, fn)
			rhs := m.fetch(inst.Src2, gprs, params, fn)
			if h, ok := m.handle(container); ok {
				if key.Tag != value.String {
					return value.Nil(), fmt.Errorf("property name must be a string")
				}
				if err := h.SetProperty(m, m.Strings.Get(key.Idx), rhs); err != nil {
					return value.Nil(), err
				}
			} else if err := m.Heap.Set(m.Strings, container, key, rhs); err != nil {
				return value.Nil(), err
			}

		case ssa.OpGetGlobal:
			gprs[inst.Dst] = m.Globals[inst.Src0.Index()]

		case ssa.OpExport:
			m.Globals[inst.Dst] = m.fetch(inst.Src0, gprs, params, fn)

		case ssa.OpCall, ssa.OpCallBuiltin, ssa.OpCallMethod:
			paramsIdx := int(inst.Src0)
			numParams := int(fn.CallParams[paramsIdx])
			args := callParams[:numParams]
			for i := 0; i < numParams; i++ {
				args[i] = m.fetch(bytecode.Operand(fn.CallParams[paramsIdx+i+1]), gprs, params, fn)
			}
			var result value.Value
			var err error
			switch inst.OpCode {
			case ssa.OpCallBuiltin:
				result, err = m.Builtins[int(inst.Src1)](m, args)
			case ssa.OpCallMethod:
				result, err = m.Methods[int(inst.Src1)](m, args)
			default:
				target := fn.CallTargets[int(inst.Src1)]
				if target == nil {
					return value.Nil(), fmt.Errorf("unresolved call target in %s", fn.Name)
				}
				result, err = m.Call(target, append([]value.Value(nil), args...))
			}
			if err != nil {
				return value.Nil(), err
			}
			gprs[inst.Dst] = result

		default:
			return value.Nil(), fmt.Errorf("unknown opcode %v in %s", inst.OpCode, fn.Name)
		}

		if !jumped {
			index++
		}
	}
}

// promoteReturn ref-promotes a returned string so it survives the
// caller's next temporary sweep, mirroring StrCache_PopPersistent's
// role at the return edge of Interpreter::runFunction/execFunction —
// Call is the one dispatch loop used for both a nested OpCall and the
// CLI's own top-level invocation, so every return (not just the
// outermost one) gets the same promotion. The caller is responsible
// for Unref-ing a top-level result once it is done with it (see
// cmd/chronoscript's main, which mirrors Main.cpp's
// ScriptVariant_Unref(&retval) right after printing).
func (m *Machine) promoteReturn(v value.Value) value.Value {
	if v.Tag == value.String {
		m.Strings.Ref(v.Idx)
	}
	return v
}

func (m *Machine) fetch(src bytecode.Operand, gprs, params []value.Value, fn *bytecode.Function) value.Value {
	switch src.File() {
	case bytecode.FileTemp:
		return gprs[src.Index()]
	case bytecode.FileParam:
		return params[src.Index()]
	case bytecode.FileGlobal:
		return m.Globals[src.Index()]
	default:
		if src.File() >= bytecode.FileConstant {
			bank := int(src.File() - bytecode.FileConstant)
			id := bank*256 + src.Index()
			return fn.Constants[id]
		}
		return value.Nil()
	}
}

func (m *Machine) applyUnary(op ssa.OpCode, a value.Value) (value.Value, error) {
	switch op {
	case ssa.OpNeg:
		return value.Neg(a)
	case ssa.OpBoolNot:
		return value.BoolNot(a), nil
	case ssa.OpBitNot:
		return value.BitNot(a)
	case ssa.OpBool:
		return value.Bool(a), nil
	default:
		return value.Nil(), fmt.Errorf("not a unary opcode: %v", op)
	}
}

func (m *Machine) applyBinary(op ssa.OpCode, a, b value.Value) (value.Value, error) {
	switch op {
	case ssa.OpBitOr:
		return value.BitOr(a, b)
	case ssa.OpXor:
		return value.BitXor(a, b)
	case ssa.OpBitAnd:
		return value.BitAnd(a, b)
	case ssa.OpEq:
		return value.Eq(m.Strings, a, b), nil
	case ssa.OpNe:
		return value.Ne(m.Strings, a, b), nil
	case ssa.OpLt:
		return value.Lt(m.Strings, a, b), nil
	case ssa.OpGt:
		return value.Gt(m.Strings, a, b), nil
	case ssa.OpGe:
		return value.Ge(m.Strings, a, b), nil
	case ssa.OpLe:
		return value.Le(m.Strings, a, b), nil
	case ssa.OpShl:
		return value.Shl(a, b)
	case ssa.OpShr:
		return value.Shr(a, b)
	case ssa.OpAdd:
		return value.Add(m.Strings, a, b, m.containerToString)
	case ssa.OpSub:
		return value.Sub(a, b)
	case ssa.OpMul:
		return value.Mul(a, b)
	case ssa.OpDiv:
		return value.Div(a, b)
	case ssa.OpMod:
		return value.Mod(a, b)
	case ssa.OpBoolOr:
		return value.Bool01(value.IsTrue(a) || value.IsTrue(b)), nil
	case ssa.OpBoolAnd:
		return value.Bool01(value.IsTrue(a) && value.IsTrue(b)), nil
	default:
		return value.Nil(), fmt.Errorf("not a binary opcode: %v", op)
	}
}
