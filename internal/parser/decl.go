package parser

import (
	"fmt"

	"chronoscript/internal/lexer"
	"chronoscript/internal/ssa"
	"chronoscript/token"
)

// prescanGlobals walks the whole token stream once, read-only, declaring
// every top-level global-variable name ahead of any function body being
// built (spec §4.1's scope discipline assumes a name is already known to
// be global the moment any function reads it, including a function
// textually earlier in the file than the global's own declaration).
func (p *Parser) prescanGlobals() {
	toks := p.toks.Tokens
	i := 0
	for i < len(toks) && toks[i].Type != token.EOF {
		if toks[i].Type == token.IDENT && i+1 < len(toks) && toks[i+1].Type == token.IDENT {
			if i+2 < len(toks) && toks[i+2].Type == token.LPAREN {
				i = skipFunctionDecl(toks, i)
				continue
			}
			i = p.prescanGlobalList(toks, i)
			continue
		}
		i++
	}
}

func (p *Parser) prescanGlobalList(toks []lexer.Tok, i int) int {
	j := i + 1 // at first variable name
	for j < len(toks) && toks[j].Type == token.IDENT {
		if _, ok := p.globals.Declare(toks[j].Lit); !ok {
			pos := toks[j].Pos
			p.ReportCompile(fmt.Sprintf("%s:%d:%d: global %q redeclared", pos.Filename, pos.Line, pos.Column, toks[j].Lit), pos)
		}
		j++
		j = skipBalancedUntil(toks, j, token.COMMA, token.SEMICOLON)
		if j < len(toks) && toks[j].Type == token.COMMA {
			j++
			continue
		}
		break
	}
	if j < len(toks) && toks[j].Type == token.SEMICOLON {
		j++
	}
	return j
}

// skipBalancedUntil advances past tokens, respecting nested
// paren/brace/bracket depth, stopping at the first occurrence of any
// stop type seen at depth 0.
func skipBalancedUntil(toks []lexer.Tok, j int, stop ...token.TokenType) int {
	depth := 0
	for j < len(toks) {
		t := toks[j].Type
		if depth == 0 {
			for _, s := range stop {
				if t == s {
					return j
				}
			}
		}
		switch t {
		case token.LPAREN, token.LBRACE, token.LBRACKET:
			depth++
		case token.RPAREN, token.RBRACE, token.RBRACKET:
			depth--
		}
		j++
	}
	return j
}

func skipFunctionDecl(toks []lexer.Tok, i int) int {
	j := i + 2 // at '('
	depth := 0
	for j < len(toks) {
		switch toks[j].Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				j++
				goto body
			}
		}
		j++
	}
body:
	for j < len(toks) && toks[j].Type != token.LBRACE {
		j++
	}
	depth = 0
	for j < len(toks) {
		switch toks[j].Type {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth == 0 {
				j++
				return j
			}
		}
		j++
	}
	return j
}

func (p *Parser) looksLikeFunction() bool {
	return p.peek().Type == token.IDENT && p.peekAt(1).Type == token.IDENT && p.peekAt(2).Type == token.LPAREN
}

// parseGlobalDecl consumes one `type name [= expr] [, name [= expr]]* ;`
// production (spec §6). Initializers must fold to constants (spec §7
// "non-constant global initializer" is a compile error); each one is
// returned for buildInitFunction to assign via OpExport before main().
func (p *Parser) parseGlobalDecl() ([]globalInit, error) {
	p.next() // type, discarded: ChronoScript's Value is dynamically tagged (C1)
	var inits []globalInit
	for {
		nameTok, err := p.expect(token.IDENT, "global variable name")
		if err != nil {
			return inits, err
		}
		gid, ok := p.globals.Lookup(nameTok.Lit)
		if !ok {
			// prescanGlobals declares every name its token scan recognises
			// (and reports a repeated one there); only reachable for a
			// declaration that scan did not pick up.
			err := fmt.Errorf("%s:%d:%d: global %q redeclared", nameTok.Pos.Filename, nameTok.Pos.Line, nameTok.Pos.Column, nameTok.Lit)
			p.ReportCompile(err.Error(), nameTok.Pos)
			return inits, err
		}
		if p.match(token.ASSIGN) {
			val, err := p.parseConstGlobalInit(nameTok)
			if err != nil {
				return inits, err
			}
			inits = append(inits, globalInit{id: gid, val: val})
		}
		if p.match(token.COMMA) {
			continue
		}
		break
	}
	if _, err := p.expect(token.SEMICOLON, "after global declaration"); err != nil {
		return inits, err
	}
	return inits, nil
}

// parseConstGlobalInit parses an initializer expression using a
// throwaway BuildUtil bound to a scratch function (no locals are in
// scope; a call, builtin or not, yields a non-constant and is
// rejected), then requires the result to be a folded constant.
func (p *Parser) parseConstGlobalInit(nameTok lexer.Tok) (*ssa.RValue, error) {
	scratch := ssa.NewFunction("$globalinit", 0)
	b := ssa.NewBuilder(scratch)
	u := ssa.NewBuildUtil(b, p.globals, p.sc)
	blk := u.CreateBBAfter(nil)
	u.SealBlock(blk)
	u.SetCurrentBlock(blk)
	ep := &exprParser{p: p, u: u}
	val := ep.ParseExpression()
	if !val.IsConstant() {
		err := fmt.Errorf("%s:%d:%d: initializer for global %q is not a compile-time constant", nameTok.Pos.Filename, nameTok.Pos.Line, nameTok.Pos.Column, nameTok.Lit)
		p.ReportCompile(err.Error(), nameTok.Pos)
		return val, err
	}
	return val, nil
}

// parseFunction consumes one `type name(type param, …) { stmts }`
// top-level declaration (spec §6), binding each parameter as a local
// variable whose current value is the matching RVParam.
func (p *Parser) parseFunction() (*ssa.Function, error) {
	p.next() // return type, discarded
	nameTok, err := p.expect(token.IDENT, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN, "after function name"); err != nil {
		return nil, err
	}
	var params []string
	if !p.check(token.RPAREN) {
		for {
			if p.check(token.RPAREN) {
				break
			}
			p.next() // param type, discarded
			pname, err := p.expect(token.IDENT, "parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, pname.Lit)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(token.RPAREN, "to close parameter list"); err != nil {
		return nil, err
	}

	fn := ssa.NewFunction(nameTok.Lit, len(params))
	b := ssa.NewBuilder(fn)
	u := ssa.NewBuildUtil(b, p.globals, p.sc)
	entry := u.CreateBBAfter(nil)
	u.SealBlock(entry) // a function entry has no predecessors, ever
	u.SetCurrentBlock(entry)

	for i, name := range params {
		u.DeclareVariable(name)
		u.WriteVariable(name, &ssa.RValue{Kind: ssa.RVParam, ParamIndex: i})
	}

	sp := &stmtParser{p: p, u: u}
	if _, err := p.expect(token.LBRACE, "to open function body"); err != nil {
		return nil, err
	}
	terminated := sp.parseStmtListUntil(token.RBRACE)
	if _, err := p.expect(token.RBRACE, "to close function body"); err != nil {
		return nil, err
	}
	if !terminated {
		u.MkReturn(nil)
	}
	return fn, nil
}
