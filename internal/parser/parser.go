// Package parser implements ChronoScript's recursive-descent front end
// (spec §6 "Source grammar (surface)"): the concrete "parser grammar"
// external collaborator named in SPEC_FULL.md, calling only the
// internal/ssa builder API as it reduces productions — it never builds
// a separate AST, matching the teacher's own internal/parser in never
// reaching into IR internals, generalized one step further since
// ChronoScript compiles straight to SSA (Braun-style, spec §4.1).
package parser

import (
	"fmt"

	"chronoscript/internal/diag"
	"chronoscript/internal/lexer"
	"chronoscript/internal/ssa"
	"chronoscript/internal/value"
	"chronoscript/token"
)

// Resolver looks up a registered builtin/method by name, returning its
// stable table index (mirrors module.BuiltinResolver; kept as its own
// type here so this package need not import internal/module).
type Resolver func(name string) (int, bool)

// Parser consumes one file's token stream and produces its functions
// plus the shared global-variable table.
type Parser struct {
	toks    *lexer.Stream
	diag    *diag.Reporter
	builtin Resolver
	method  Resolver
	globals *ssa.GlobalState
	sc      *value.Cache

	u        *ssa.BuildUtil
	funcs    []*ssa.Function
	tmpCount int
}

// Reporter exposes the parser's diagnostic sink so a caller can print
// accumulated errors/warnings even when ParseProgram fails before
// producing a Result (Result.Reporter only exists on success).
func (p *Parser) Reporter() *diag.Reporter {
	return p.diag
}

// New builds a Parser over already macro-expanded source text.
func New(filename, source string, globals *ssa.GlobalState, sc *value.Cache, builtin, method Resolver) (*Parser, error) {
	toks, err := lexer.Tokenize(filename, source)
	if err != nil {
		return nil, err
	}
	return &Parser{
		toks:    toks,
		diag:    diag.NewReporter(filename, source),
		builtin: builtin,
		method:  method,
		globals: globals,
		sc:      sc,
	}, nil
}

// Result is everything ParseProgram produces for module.Compile.
type Result struct {
	Functions []*ssa.Function
	Reporter  *diag.Reporter
}

// ParseProgram parses every top-level declaration (spec §6: "top-level
// declarations are either global variables ... or functions"). Global
// names are pre-declared in a lightweight first pass so a function
// earlier in the file may reference a global declared later in it,
// mirroring a script's whole-unit global lifetime (spec §5).
func (p *Parser) ParseProgram() (*Result, error) {
	p.prescanGlobals()

	hasInit := false
	var initInst []*ssa.Instruction
	_ = initInst

	for p.peek().Type != token.EOF {
		if p.looksLikeFunction() {
			fn, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			p.funcs = append(p.funcs, fn)
			continue
		}
		inits, err := p.parseGlobalDecl()
		if err != nil {
			return nil, err
		}
		if len(inits) > 0 {
			hasInit = true
			p.funcs = append(p.funcs, p.buildInitFunction(inits))
		}
	}

	if p.diag.ErrorCount() > 0 {
		return nil, fmt.Errorf("parse failed with %d error(s)", p.diag.ErrorCount())
	}
	_ = hasInit
	return &Result{Functions: p.funcs, Reporter: p.diag}, nil
}

// globalInit pairs a declared global's id with its constant initializer.
type globalInit struct {
	id  int
	val *ssa.RValue
}

// buildInitFunction synthesizes the "$init" function that assigns every
// global's constant initializer via OpExport before main() runs —
// nothing in the already-built bytecode/vm layer has a slot for an
// initial global value other than the zero Value, so initializers are
// lowered as ordinary code instead.
func (p *Parser) buildInitFunction(inits []globalInit) *ssa.Function {
	fn := ssa.NewFunction("$init", 0)
	b := ssa.NewBuilder(fn)
	u := ssa.NewBuildUtil(b, p.globals, p.sc)
	entry := u.CreateBBAfter(nil)
	u.SetCurrentBlock(entry)
	for _, in := range inits {
		u.MkExport(in.id, in.val)
	}
	u.MkReturn(nil)
	u.SealBlock(entry)
	return fn
}

func (p *Parser) peek() lexer.Tok  { return p.toks.Peek(0) }
func (p *Parser) peekAt(n int) lexer.Tok { return p.toks.Peek(n) }
func (p *Parser) next() lexer.Tok  { return p.toks.Next() }

func (p *Parser) check(tt token.TokenType) bool { return p.peek().Type == tt }

func (p *Parser) match(tt token.TokenType) bool {
	if p.check(tt) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(tt token.TokenType, context string) (lexer.Tok, error) {
	if p.check(tt) {
		return p.next(), nil
	}
	tok := p.peek()
	err := fmt.Errorf("%s:%d:%d: expected %s %s, found %q", tok.Pos.Filename, tok.Pos.Line, tok.Pos.Column, tt, context, tok.Lit)
	p.reportDiag(diag.Parse, err.Error(), tok.Pos)
	p.synchronize()
	return tok, err
}

// reportDiag records a diagnostic of the given kind at pos.
func (p *Parser) reportDiag(kind diag.Kind, message string, pos token.Position) {
	p.diag.Report(diag.Diagnostic{Kind: kind, Message: message, Pos: pos})
}

// ReportCompile is the compile-error-kind sibling of reportDiag, exposed
// for decl.go's global-initializer checks.
func (p *Parser) ReportCompile(message string, pos token.Position) {
	p.reportDiag(diag.Compile, message, pos)
}

// reportDiagPublic is expr.go/stmt.go's parse-error-kind entry point.
func (p *Parser) reportDiagPublic(message string, pos token.Position) {
	p.reportDiag(diag.Parse, message, pos)
}

// synchronize implements spec §7's panic-mode recovery: consume tokens
// until one that plausibly starts a new top-level/statement production.
func (p *Parser) synchronize() {
	for {
		t := p.peek()
		if t.Type == token.EOF {
			return
		}
		if t.Type == token.SEMICOLON {
			p.next()
			return
		}
		switch t.Type {
		case token.RBRACE, token.IF, token.WHILE, token.FOR, token.DO, token.SWITCH,
			token.RETURN, token.BREAK, token.CONTINUE:
			return
		}
		p.next()
	}
}

func (p *Parser) freshTempName() string {
	p.tmpCount++
	return fmt.Sprintf("$t%d", p.tmpCount)
}

// isTypeLikeIdent accepts any identifier as a type name — ChronoScript
// is dynamically typed (C1's tagged Value), so declaration "types" are
// never checked; they are parsed and discarded, mirroring the way
// FakeEngineTypes-era scripts wrote `int`/`float`/`object` purely as
// documentation.
func (p *Parser) isTypeLikeIdent(t lexer.Tok) bool { return t.Type == token.IDENT }
