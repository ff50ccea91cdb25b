// Package module implements ChronoScript's compilation pipeline and
// cross-file import cache (C9), grounded on original_source/
// ImportCache.cpp: canonicalize an import path, reuse an already
// compiled unit if cached, otherwise compile it and cache the result;
// `link` resolves each call to a local function, an imported one (last
// import wins on name clash), or a builtin.
package module

import (
	"fmt"
	"strings"

	"chronoscript/internal/bytecode"
	"chronoscript/internal/diag"
	"chronoscript/internal/liveness"
	"chronoscript/internal/regalloc"
	"chronoscript/internal/ssa"
	"chronoscript/token"
)

// Unit is one compiled script file: its callable functions plus the
// list of units it imports, in import order (later entries shadow
// earlier ones on a name clash, per ImportList_GetFunctionPointer).
type Unit struct {
	Path    string
	Module  *bytecode.Module
	Imports []*Unit
}

// BuiltinResolver reports whether name is a registered builtin and, if
// so, its stable index (spec §4.7). The parser consults it before any
// function lookup, so a call to a builtin's name always becomes
// OpCallBuiltin; a local or imported function of the same name does not
// shadow the builtin.
type BuiltinResolver func(name string) (index int, ok bool)

// Cache is the process-wide compiled-script cache (CompiledScripts in
// the original), keyed by canonicalized path.
type Cache struct {
	units map[string]*Unit
}

func NewCache() *Cache {
	return &Cache{units: make(map[string]*Unit)}
}

// CanonicalPath lowercases path and forces forward slashes, exactly as
// ImportCache_ImportFile does before every cache lookup.
func CanonicalPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}

// Get returns a cached unit for path, if one was already compiled and
// stored via Put.
func (c *Cache) Get(path string) (*Unit, bool) {
	u, ok := c.units[CanonicalPath(path)]
	return u, ok
}

func (c *Cache) Put(path string, u *Unit) {
	c.units[CanonicalPath(path)] = u
}

// ResolveFunction looks up name across u's import list, later imports
// shadowing earlier ones (ImportList_GetFunctionPointer).
func (u *Unit) ResolveFunction(name string) *bytecode.Function {
	for i := len(u.Imports) - 1; i >= 0; i-- {
		if f, ok := u.Imports[i].Module.ByName[name]; ok {
			return f
		}
	}
	return nil
}

// Compile runs the C4-through-C7 pipeline (dead-code elimination
// already folded into ssa.PrepareForRegAlloc, liveness, coalescing,
// register allocation, then bytecode encoding) over every function,
// then links each remaining OpCall to a local function or an imported
// one. `link`'s third fallback tier — an unresolved name turning out to
// be a builtin — is handled earlier here than in the original: the
// parser consults resolveBuiltin while building SSA and emits
// OpCallBuiltin directly (spec §4.7), so by the time Compile runs, a
// plain OpCall always names a script function.
func Compile(name string, funcs []*ssa.Function, globals *ssa.GlobalState, imports []*Unit, resolveBuiltin BuiltinResolver) (*Unit, error) {
	mod, bySSA := CompileFunctions(funcs, globals)
	return Link(name, mod, funcs, bySSA, imports, resolveBuiltin, nil), nil
}

// CompileFunctions runs C4-through-C7 (dead-code elimination already
// folded into ssa.PrepareForRegAlloc, liveness, coalescing, register
// allocation, then bytecode encoding) over every function, independent
// of any other unit. Split out from Compile so a cyclic import pair
// (spec §8 scenario 5) can have both sides' bytecode.Module fully built
// — and thus resolvable by name — before either side links its calls,
// regardless of which file's compile started first.
func CompileFunctions(funcs []*ssa.Function, globals *ssa.GlobalState) (*bytecode.Module, map[*ssa.Function]*bytecode.Function) {
	mod := bytecode.NewModule()
	mod.Globals = append([]string(nil), globals.Names()...)

	bySSA := make(map[*ssa.Function]*bytecode.Function, len(funcs))
	for _, fn := range funcs {
		ssa.PrepareForRegAlloc(fn)

		info := liveness.Compute(fn)
		graph := liveness.NewGraph(fn, info)
		graph.Coalesce(fn)
		graph.BuildGraph(fn)
		result := regalloc.Run(graph)
		regalloc.ApplyColors(fn, graph, result)

		bcFn := bytecode.Build(fn)
		mod.AddFunction(bcFn)
		bySSA[fn] = bcFn
	}
	return mod, bySSA
}

// Link resolves each OpCall in funcs to a local function (mod.ByName)
// or an imported one (u.ResolveFunction). Per spec §4.6 step 5 and §7
// ("Link warnings — unresolved call; logged at compile time, not
// fatal; invoking the unresolved call at runtime is a runtime error"),
// an unresolved name is never fatal here: it is reported through
// reporter (if non-nil) as a diag.Link warning and the instruction's
// CallTargets slot is left nil, to be caught by vm.Machine.Call's own
// nil-target runtime-error branch if the call actually executes. The
// original's third fallback tier — an unresolved name turning out to
// be a builtin — never fires in practice here, since the parser
// already resolves builtins directly into OpCallBuiltin while building
// SSA (spec §4.7); it is kept only to word the warning precisely.
func Link(name string, mod *bytecode.Module, funcs []*ssa.Function, bySSA map[*ssa.Function]*bytecode.Function, imports []*Unit, resolveBuiltin BuiltinResolver, reporter *diag.Reporter) *Unit {
	u := &Unit{Path: name, Module: mod, Imports: imports}

	for _, fn := range funcs {
		bcFn := bySSA[fn]
		callIdx := 0
		for _, block := range fn.Blocks {
			for _, inst := range block.Instructions {
				if inst.Op != ssa.OpCall {
					continue
				}
				if target, ok := mod.ByName[inst.CalleeName]; ok {
					bcFn.CallTargets[callIdx] = target
				} else if target := u.ResolveFunction(inst.CalleeName); target != nil {
					bcFn.CallTargets[callIdx] = target
				} else {
					if reporter != nil {
						reporter.Report(diag.Diagnostic{
							Kind:    diag.Link,
							Message: unresolvedCallMessage(name, inst.CalleeName, resolveBuiltin),
							Pos:     token.Position{},
							Warning: true,
						})
					}
				}
				callIdx++
			}
		}
	}

	return u
}

func unresolvedCallMessage(unit, callee string, resolveBuiltin BuiltinResolver) string {
	if _, ok := resolveBuiltin(callee); ok {
		return fmt.Sprintf("%s: call to %q should have been emitted as a builtin call during SSA construction", unit, callee)
	}
	return fmt.Sprintf("%s: couldn't resolve call to %q", unit, callee)
}
