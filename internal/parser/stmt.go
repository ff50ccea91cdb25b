package parser

import (
	"fmt"

	"chronoscript/internal/diag"
	"chronoscript/internal/lexer"
	"chronoscript/internal/ssa"
	"chronoscript/token"
)

// stmtParser builds SSA for statements (spec §6: "block, expression,
// if/else, switch/case/default, while, do/while, for, break, continue,
// return, local declarations with initializers"), sharing one
// ssa.BuildUtil with the enclosing function's expression parser.
type stmtParser struct {
	p *Parser
	u *ssa.BuildUtil
}

func (sp *stmtParser) exprParser() *exprParser { return &exprParser{p: sp.p, u: sp.u} }

// parseStmtListUntil parses statements until the stop token (not
// consumed) or EOF, returning whether the final statement parsed
// unconditionally terminates control flow (a `return` at this
// syntactic level — used by parseFunction to decide whether it must
// synthesize an implicit `return;`).
func (sp *stmtParser) parseStmtListUntil(stop token.TokenType) bool {
	terminated := false
	for !sp.p.check(stop) && !sp.p.check(token.EOF) {
		terminated = sp.parseStmt()
	}
	return terminated
}

// parseStmt parses one statement and reports whether it unconditionally
// returns from the enclosing function.
func (sp *stmtParser) parseStmt() bool {
	switch sp.p.peek().Type {
	case token.LBRACE:
		return sp.parseBlock()
	case token.IF:
		return sp.parseIf()
	case token.WHILE:
		return sp.parseWhile()
	case token.DO:
		return sp.parseDoWhile()
	case token.FOR:
		return sp.parseFor()
	case token.SWITCH:
		return sp.parseSwitch()
	case token.BREAK:
		sp.p.next()
		sp.p.expect(token.SEMICOLON, "after 'break'")
		sp.u.Break()
		return false
	case token.CONTINUE:
		sp.p.next()
		sp.p.expect(token.SEMICOLON, "after 'continue'")
		sp.u.Continue()
		return false
	case token.RETURN:
		return sp.parseReturn()
	case token.SEMICOLON:
		sp.p.next()
		return false
	default:
		if sp.looksLikeLocalDecl() {
			sp.parseLocalDecl()
			return false
		}
		ep := sp.exprParser()
		ep.ParseExpression()
		sp.p.expect(token.SEMICOLON, "after expression statement")
		return false
	}
}

func (sp *stmtParser) looksLikeLocalDecl() bool {
	return sp.p.peek().Type == token.IDENT && sp.p.peekAt(1).Type == token.IDENT
}

func (sp *stmtParser) parseBlock() bool {
	sp.p.next() // '{'
	sp.u.PushScope()
	terminated := sp.parseStmtListUntil(token.RBRACE)
	sp.u.PopScope()
	sp.p.expect(token.RBRACE, "to close block")
	return terminated
}

// parseLocalDecl consumes `type name [= expr] [, name [= expr]]* ;`
// (spec §6), declaring each name in the current scope. Unlike a global
// declaration's initializer, a local's initializer may be any
// expression, not just a constant.
func (sp *stmtParser) parseLocalDecl() {
	sp.p.next() // type, discarded
	for {
		nameTok, err := sp.p.expect(token.IDENT, "local variable name")
		if err != nil {
			return
		}
		if !sp.u.DeclareVariable(nameTok.Lit) {
			sp.p.reportDiagPublic(fmt.Sprintf("%q already declared in this scope", nameTok.Lit), nameTok.Pos)
		}
		var init *ssa.RValue
		if sp.p.match(token.ASSIGN) {
			init = sp.exprParser().ParseExpression()
		} else {
			init = sp.u.MkNull()
		}
		sp.u.WriteVariable(nameTok.Lit, init)
		if !sp.p.match(token.COMMA) {
			break
		}
	}
	sp.p.expect(token.SEMICOLON, "after local declaration")
}

func (sp *stmtParser) parseReturn() bool {
	sp.p.next() // 'return'
	if sp.p.match(token.SEMICOLON) {
		sp.u.MkReturn(nil)
		return true
	}
	val := sp.exprParser().ParseExpression()
	sp.p.expect(token.SEMICOLON, "after return value")
	sp.u.MkReturn(val)
	return true
}

// parseIf lowers `if (cond) then [else other]` via ssa.BuildUtil.IfElse.
// Whether an `else` is actually present can only be known once the
// then-branch has been fully parsed (its length is unknown ahead of
// time), which is exactly when IfElse invokes the els callback — so the
// els closure itself performs the `else` keyword check, rather than any
// speculative lookahead.
func (sp *stmtParser) parseIf() bool {
	sp.p.next() // 'if'
	sp.p.expect(token.LPAREN, "after 'if'")
	cond := sp.exprParser().ParseExpression()
	sp.p.expect(token.RPAREN, "to close if-condition")

	thenTerm := false
	elseTerm := false
	hasElse := false

	sp.u.IfElse(
		func() *ssa.RValue { return cond },
		func() {
			sp.u.PushScope()
			thenTerm = sp.parseStmt()
			sp.u.PopScope()
		},
		func() {
			if !sp.p.match(token.ELSE) {
				return
			}
			hasElse = true
			sp.u.PushScope()
			elseTerm = sp.parseStmt()
			sp.u.PopScope()
		},
	)
	return hasElse && thenTerm && elseTerm
}

func (sp *stmtParser) parseWhile() bool {
	sp.p.next() // 'while'
	sp.p.expect(token.LPAREN, "after 'while'")
	// cond is built lazily: WhileLoop calls cond() with CurrentBlock
	// already set to the loop header, so the condition expression reads
	// the header's phis rather than the preheader's values.
	sp.u.WhileLoop(
		func() *ssa.RValue {
			v := sp.exprParser().ParseExpression()
			sp.p.expect(token.RPAREN, "to close while-condition")
			return v
		},
		func() {
			sp.u.PushScope()
			sp.parseStmt()
			sp.u.PopScope()
		},
	)
	return false
}

func (sp *stmtParser) parseDoWhile() bool {
	sp.p.next() // 'do'
	sp.u.DoWhileLoop(
		func() {
			sp.u.PushScope()
			sp.parseStmt()
			sp.u.PopScope()
		},
		func() *ssa.RValue {
			sp.p.expect(token.WHILE, "after do-while body")
			sp.p.expect(token.LPAREN, "after 'while'")
			v := sp.exprParser().ParseExpression()
			sp.p.expect(token.RPAREN, "to close do-while condition")
			sp.p.expect(token.SEMICOLON, "after do-while statement")
			return v
		},
	)
	return false
}

// parseFor lowers `for (init; cond; post) body` (spec §6). Source order
// places the post-clause's tokens before the body's, but
// ssa.BuildUtil.ForLoop builds the post-block after the body (so the
// loop's CFG has postBlock between body and the back-edge to header).
// This parses init and cond eagerly in source order, then skips over
// the post-clause's tokens without building SSA for them yet, parses
// the body, and only then rewinds to re-walk the post-clause's token
// span — for real this time, with CurrentBlock pointed at postBlock —
// once ForLoop invokes the post callback.
func (sp *stmtParser) parseFor() bool {
	sp.p.next() // 'for'
	sp.p.expect(token.LPAREN, "after 'for'")

	sp.u.PushScope()
	defer sp.u.PopScope()

	if sp.p.check(token.SEMICOLON) {
		sp.p.next()
	} else if sp.looksLikeLocalDecl() {
		sp.parseLocalDecl()
	} else {
		sp.exprParser().ParseExpression()
		sp.p.expect(token.SEMICOLON, "after for-init")
	}

	var condFn func() *ssa.RValue
	if !sp.p.check(token.SEMICOLON) {
		condFn = func() *ssa.RValue { return sp.exprParser().ParseExpression() }
	}
	sp.p.expect(token.SEMICOLON, "after for-condition")

	postStart := sp.p.toks.Pos()
	if !sp.p.check(token.RPAREN) {
		skipBalancedTokens(sp.p.toks, token.RPAREN)
	}
	postEnd := sp.p.toks.Pos()
	hasPost := postEnd > postStart
	sp.p.toks.Seek(postEnd)
	sp.p.expect(token.RPAREN, "to close for-clauses")

	sp.u.ForLoop(
		nil,
		condFn,
		func() {
			if !hasPost {
				return
			}
			resume := sp.p.toks.Pos()
			sp.p.toks.Seek(postStart)
			sp.exprParser().ParseExpression()
			sp.p.toks.Seek(resume)
		},
		func() {
			sp.u.PushScope()
			sp.parseStmt()
			sp.u.PopScope()
		},
	)
	return false
}

// skipBalancedTokens advances the stream past tokens up to (not
// including) the next occurrence of stop at paren/bracket/brace depth
// 0, for the for-statement's post-clause pre-scan.
func skipBalancedTokens(s *lexer.Stream, stop token.TokenType) {
	skipUntilAny(s, stop)
}

// skipUntilAny advances s past tokens until one of stops is seen at
// paren/brace/bracket depth 0, without consuming that token.
func skipUntilAny(s *lexer.Stream, stops ...token.TokenType) {
	depth := 0
	for {
		t := s.Peek(0)
		if t.Type == token.EOF {
			return
		}
		if depth == 0 {
			for _, st := range stops {
				if t.Type == st {
					return
				}
			}
		}
		switch t.Type {
		case token.LPAREN, token.LBRACE, token.LBRACKET:
			depth++
		case token.RPAREN, token.RBRACE, token.RBRACKET:
			depth--
		}
		s.Next()
	}
}

// parseSwitch lowers `switch (subject) { case v: ...; default: ... }`
// (spec §6) onto ssa.BuildUtil.Switch. Case values must be compile-time
// constants (parsed in a scratch function, same as a global initializer);
// case/default bodies are recorded as token spans during a single forward
// scan, then replayed as Switch's Body closures in the same left-to-right
// order Switch already invokes them in, so no block needs rebuilding.
func (sp *stmtParser) parseSwitch() bool {
	sp.p.next() // 'switch'
	sp.p.expect(token.LPAREN, "after 'switch'")
	subject := sp.exprParser().ParseExpression()
	sp.p.expect(token.RPAREN, "to close switch-subject")
	sp.p.expect(token.LBRACE, "to open switch body")

	type span struct {
		value      *ssa.RValue
		start, end int
		tok        lexer.Tok
	}
	var spans []span
	var defSpan *span

	for !sp.p.check(token.RBRACE) && !sp.p.check(token.EOF) {
		switch {
		case sp.p.check(token.CASE):
			caseTok := sp.p.next()
			val := sp.parseConstCaseValue(caseTok)
			sp.p.expect(token.COLON, "after case value")
			start := sp.p.toks.Pos()
			skipUntilAny(sp.p.toks, token.CASE, token.DEFAULT, token.RBRACE)
			spans = append(spans, span{value: val, start: start, end: sp.p.toks.Pos(), tok: caseTok})
		case sp.p.check(token.DEFAULT):
			sp.p.next()
			sp.p.expect(token.COLON, "after 'default'")
			start := sp.p.toks.Pos()
			skipUntilAny(sp.p.toks, token.CASE, token.DEFAULT, token.RBRACE)
			s := span{start: start, end: sp.p.toks.Pos()}
			defSpan = &s
		default:
			sp.p.next() // stray token; skip to avoid looping forever
		}
	}
	sp.p.expect(token.RBRACE, "to close switch")

	cases := make([]ssa.SwitchCase, len(spans))
	for i := range spans {
		sVal := spans[i]
		hasFollowing := i+1 < len(spans) || defSpan != nil
		cases[i] = ssa.SwitchCase{
			Value: sVal.value,
			Body: func() {
				sp.u.PushScope()
				sp.p.toks.Seek(sVal.start)
				for sp.p.toks.Pos() < sVal.end && !sp.p.check(token.EOF) {
					sp.parseStmt()
				}
				if hasFollowing {
					sp.fallthroughCheck(sVal.tok)
				}
				sp.u.PopScope()
			},
		}
	}

	var defaultBody func()
	if defSpan != nil {
		dSpan := *defSpan
		defaultBody = func() {
			sp.u.PushScope()
			sp.p.toks.Seek(dSpan.start)
			for sp.p.toks.Pos() < dSpan.end && !sp.p.check(token.EOF) {
				sp.parseStmt()
			}
			sp.u.PopScope()
		}
	}

	sp.u.Switch(subject, cases, defaultBody)
	return false
}

// parseConstCaseValue parses a case label's value in a throwaway scratch
// function, mirroring decl.go's parseConstGlobalInit — case values are
// compile-time constants compared against the subject by BranchEqual.
func (sp *stmtParser) parseConstCaseValue(caseTok lexer.Tok) *ssa.RValue {
	scratch := ssa.NewFunction("$caseval", 0)
	b := ssa.NewBuilder(scratch)
	u := ssa.NewBuildUtil(b, sp.p.globals, sp.p.sc)
	blk := u.CreateBBAfter(nil)
	u.SealBlock(blk)
	u.SetCurrentBlock(blk)
	ep := &exprParser{p: sp.p, u: u}
	val := ep.ParseExpression()
	if !val.IsConstant() {
		sp.p.reportDiagPublic("case label must be a compile-time constant", caseTok.Pos)
	}
	return val
}

// fallthroughCheck warns when a case body falls through to the next case
// without a "fall through"-shaped comment (spec §6) preceding the next
// case/default/closing-brace to mark the fallthrough as intentional.
func (sp *stmtParser) fallthroughCheck(caseTok lexer.Tok) {
	bb := sp.u.CurrentBlock
	if bb == nil || blockTerminated(bb) {
		return
	}
	nextTok := sp.p.peek()
	for line := caseTok.Pos.Line; line <= nextTok.Pos.Line; line++ {
		if sp.p.toks.FallthroughHints[line] {
			return
		}
	}
	sp.p.diag.Report(diag.Diagnostic{
		Kind:    diag.Compile,
		Message: "case falls through without 'break' or a fall-through comment",
		Pos:     nextTok.Pos,
		Warning: true,
	})
}

func blockTerminated(b *ssa.BasicBlock) bool {
	n := len(b.Instructions)
	if n == 0 {
		return false
	}
	switch b.Instructions[n-1].Op {
	case ssa.OpJmp, ssa.OpBranchTrue, ssa.OpBranchFalse, ssa.OpBranchEqual, ssa.OpReturn:
		return true
	default:
		return false
	}
}
