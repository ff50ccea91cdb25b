// Command chronoscript is the `runscript` CLI (spec §6), grounded on
// original_source/Main.cpp's doTest: preprocess, parse straight to SSA,
// compile/link, run `main`, print its return value, then run one final
// mark-and-sweep GC pass before clearing the process-wide caches.
package main

import (
	"fmt"
	"os"

	"chronoscript/internal/builtins"
	"chronoscript/internal/bytecode"
	"chronoscript/internal/config"
	"chronoscript/internal/diag"
	"chronoscript/internal/logging"
	"chronoscript/internal/module"
	"chronoscript/internal/parser"
	"chronoscript/internal/preprocessor"
	"chronoscript/internal/ssa"
	"chronoscript/internal/value"
	"chronoscript/internal/vm"
)

// exit codes (spec §6: "0 on success, 1 on usage error, and failure
// code otherwise"); the original names only those two, so the finer
// split below between a compile-time and a run-time failure is this
// CLI's own choice.
const (
	exitOK           = 0
	exitUsage        = 1
	exitCompileError = 2
	exitRuntimeError = 3
)

func main() {
	log := logging.Init(1, "chronoscript")

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	unit, sc, err := compileFile(cfg.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCompileError)
	}

	mainFn, ok := unit.Module.ByName["main"]
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: no 'main' function\n", cfg.Path)
		os.Exit(exitCompileError)
	}

	if cfg.DumpBytecode {
		dumpModule(unit.Module)
	}

	m := vm.NewMachineWithStrings(unit.Module, sc)
	m.ScriptArgs = cfg.ScriptArgs
	builtins.RegisterAll(m)

	log.Infof("running function 'main'")
	result, err := m.Call(mainFn, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %s\n", err)
		os.Exit(exitRuntimeError)
	}
	fmt.Printf("\nReturned value: %s\n", displayValue(m, result))
	if result.Tag == value.String {
		// mirrors Main.cpp's ScriptVariant_Unref(&retval): release the
		// promotion Call's OpReturn gave this string now that it has
		// been displayed, instead of letting it survive indefinitely.
		m.Strings.Unref(result.Idx)
	}

	// original_source/Main.cpp's own shutdown sequence: push every global
	// into the gray set, run the collector once, then clear the
	// temporary (non-persistent, refcount-only) halves of both caches.
	for _, g := range m.Globals {
		if g.Tag == value.Object || g.Tag == value.List {
			m.Heap.PushGray(g.Idx)
		}
	}
	m.Heap.MarkAll()
	m.Heap.Sweep()
	m.Heap.ClearTemporary()
	m.Strings.ClearTemporary()

	os.Exit(exitOK)
}

// unitGraph is one file's parse result together with the import paths
// it still needs resolved — collected in full before anything is
// compiled, so a genuine A<->B import cycle (spec §8 scenario 5) has
// both sides' functions already parsed by the time either side's
// compile/link step runs.
type unitGraph struct {
	path    string
	funcs   []*ssa.Function
	imports []string
}

// compileFile parses path and every file it (transitively) `#import`s,
// then compiles and links all of them. Parsing happens breadth over the
// whole import graph first; compiling and linking happen only once that
// graph is fully known, which is what lets a cyclic pair of imports
// resolve instead of recursing forever. The returned *value.Cache is
// the same one every file's string constants were interned into; the
// caller must run the result against that same cache (vm.NewMachine
// would start a disjoint, empty one).
func compileFile(path string) (*module.Unit, *value.Cache, error) {
	globals := ssa.NewGlobalState()
	sc := value.NewCache()
	graphs := make(map[string]*unitGraph)
	order, err := parseGraph(path, globals, sc, graphs, nil)
	if err != nil {
		return nil, nil, err
	}

	// Compile each unit's own functions independently (no cross-unit
	// reference is needed yet: CompileFunctions only encodes a function's
	// own body, it does not resolve OpCall targets).
	mods := make(map[string]*bytecode.Module, len(order))
	bySSA := make(map[string]map[*ssa.Function]*bytecode.Function, len(order))
	for _, canon := range order {
		g := graphs[canon]
		mod, fnIdx := module.CompileFunctions(g.funcs, globals)
		mods[canon] = mod
		bySSA[canon] = fnIdx
	}

	// Now every unit's Module.ByName is complete, so linking can proceed
	// in any order, including across a cycle. An unresolved call is a
	// link warning (spec §7), never fatal here — it only becomes a
	// runtime error if the call in question actually executes.
	linkDiag := diag.NewReporter(path, "")
	units := make(map[string]*module.Unit, len(order))
	for _, canon := range order {
		g := graphs[canon]
		var imports []*module.Unit
		for _, impPath := range g.imports {
			impCanon := module.CanonicalPath(impPath)
			imports = append(imports, &module.Unit{Path: impPath, Module: mods[impCanon]})
		}
		units[canon] = module.Link(g.path, mods[canon], g.funcs, bySSA[canon], imports, builtins.Resolver(), linkDiag)
	}
	linkDiag.Print()

	return units[module.CanonicalPath(path)], sc, nil
}

// parseGraph preprocesses and parses path (unless already visited),
// recording it and its imports into graphs, and returns the set of
// canonical paths reachable from path in a valid compile order (imports
// before their importer, except where a cycle makes that impossible —
// compiling is order-independent per compileFile's comment above, so
// any order that includes every node exactly once is fine). Every file
// parses against the same globals and sc so cross-file global refs and
// string constants stay consistent.
func parseGraph(path string, globals *ssa.GlobalState, sc *value.Cache, graphs map[string]*unitGraph, visiting map[string]bool) ([]string, error) {
	canon := module.CanonicalPath(path)
	if _, done := graphs[canon]; done {
		return nil, nil
	}
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	if visiting[canon] {
		return nil, nil
	}
	visiting[canon] = true

	pp := preprocessor.New(".")
	src, err := pp.Run(path)
	if err != nil {
		return nil, err
	}
	for _, w := range pp.Warnings {
		fmt.Fprintf(os.Stderr, "%s:%d: warning: %s\n", w.File, w.Line, w.Message)
	}

	p, err := parser.New(path, src, globals, sc, builtins.Resolver(), builtins.MethodResolver())
	if err != nil {
		return nil, err
	}
	result, err := p.ParseProgram()
	if err != nil {
		p.Reporter().Print()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	result.Reporter.Print()

	var importPaths []string
	var order []string
	for _, imp := range pp.Imports {
		importPaths = append(importPaths, imp.Path)
		sub, err := parseGraph(imp.Path, globals, sc, graphs, visiting)
		if err != nil {
			return nil, err
		}
		order = append(order, sub...)
	}

	graphs[canon] = &unitGraph{path: path, funcs: result.Functions, imports: importPaths}
	order = append(order, canon)
	return order, nil
}

func displayValue(m *vm.Machine, v value.Value) string {
	return value.ToString(m.Strings, v, m.ContainerToString)
}

// dumpModule prints a flat disassembly of mod to stdout (the
// "-dump-bytecode" development flag; spec §6 names no such flag, but
// SPEC_FULL.md's Configuration section lists it as a debugging aid for
// the compiler pipeline, the same way a teacher's own CLIs tend to
// carry a debug-dump flag alongside the real one).
func dumpModule(mod *bytecode.Module) {
	for _, fn := range mod.Functions {
		fmt.Printf("function %s(params=%d temps=%d)\n", fn.Name, fn.NumParams, fn.NumTemps)
		for i, inst := range fn.Instructions {
			fmt.Printf("  %4d  op=%-3d dst=%d src0=%d src1=%d src2=%d\n",
				i, inst.OpCode, inst.Dst, inst.Src0, inst.Src1, inst.Src2)
		}
	}
}
