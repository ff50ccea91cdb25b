package parser

import (
	"fmt"

	"chronoscript/internal/lexer"
	"chronoscript/internal/ssa"
	"chronoscript/token"
)

// exprParser builds SSA for one expression production (spec §6:
// "Expressions cover the C operator set up through ?:"), grounded on
// the shape of the deleted internal/parser/parser_pratt.go: a
// binaryPrecedence table plus a precedence-climbing core, here rewired
// to call ssa.BuildUtil instead of building AST nodes.
type exprParser struct {
	p *Parser
	u *ssa.BuildUtil
}

// binaryPrecedence assigns each binary operator token a binding
// strength; higher binds tighter. Mirrors the C standard's operator
// table down through multiplicative, excluding assignment and `?:`,
// which ParseExpression handles as their own levels above this table.
var binaryPrecedence = map[token.TokenType]int{
	token.LOGICAL_OR:  1,
	token.LOGICAL_AND: 2,
	token.PIPE:        3,
	token.CARET:       4,
	token.AMPERSAND:   5,
	token.EQ:          6,
	token.NOT_EQ:      6,
	token.LT:          7,
	token.GT:          7,
	token.LE:          7,
	token.GE:          7,
	token.SHL:         8,
	token.SHR:         8,
	token.PLUS:        9,
	token.MINUS:       9,
	token.ASTERISK:    10,
	token.SLASH:       10,
	token.PERCENT:     10,
}

var binaryOp = map[token.TokenType]ssa.OpCode{
	token.LOGICAL_OR:  ssa.OpBoolOr,
	token.LOGICAL_AND: ssa.OpBoolAnd,
	token.PIPE:        ssa.OpBitOr,
	token.CARET:       ssa.OpXor,
	token.AMPERSAND:   ssa.OpBitAnd,
	token.EQ:          ssa.OpEq,
	token.NOT_EQ:      ssa.OpNe,
	token.LT:          ssa.OpLt,
	token.GT:          ssa.OpGt,
	token.LE:          ssa.OpLe,
	token.GE:          ssa.OpGe,
	token.SHL:         ssa.OpShl,
	token.SHR:         ssa.OpShr,
	token.PLUS:        ssa.OpAdd,
	token.MINUS:       ssa.OpSub,
	token.ASTERISK:    ssa.OpMul,
	token.SLASH:       ssa.OpDiv,
	token.PERCENT:     ssa.OpMod,
}

var assignOps = map[token.TokenType]ssa.OpCode{
	token.PLUS_ASSIGN:  ssa.OpAdd,
	token.MINUS_ASSIGN: ssa.OpSub,
	token.STAR_ASSIGN:  ssa.OpMul,
	token.SLASH_ASSIGN: ssa.OpDiv,
	token.PCT_ASSIGN:   ssa.OpMod,
}

// ParseExpression is the single entry point: assignment (lowest
// precedence, right-associative), then `?:`, then the binary table,
// then unary/postfix/primary.
func (ep *exprParser) ParseExpression() *ssa.RValue {
	return ep.parseAssignment()
}

func (ep *exprParser) parseAssignment() *ssa.RValue {
	lhs := ep.parseTernary()

	tt := ep.p.peek().Type
	if tt == token.ASSIGN {
		ep.p.next()
		if lhs.LV == nil {
			ep.err("invalid assignment target")
			return lhs
		}
		rhs := ep.parseAssignment()
		ep.u.MkAssignment(lhs.LV, rhs)
		return ep.u.ReadBack(lhs.LV)
	}
	if op, ok := assignOps[tt]; ok {
		ep.p.next()
		if lhs.LV == nil {
			ep.err("invalid assignment target")
			return lhs
		}
		rhs := ep.parseAssignment()
		cur := ep.u.ReadBack(lhs.LV)
		result := ep.u.MkBinaryOp(op, cur, rhs)
		ep.u.MkAssignment(lhs.LV, result)
		return ep.u.ReadBack(lhs.LV)
	}
	return lhs
}

// parseTernary lowers `cond ? a : b` via a synthetic hidden variable:
// IfElse writes the chosen branch's value into it, and reading the
// variable back after the join block triggers Braun's automatic phi
// insertion at the merge point (spec §4.1).
func (ep *exprParser) parseTernary() *ssa.RValue {
	cond := ep.parseBinary(1)
	if !ep.p.match(token.QUESTION) {
		return cond
	}
	name := ep.p.freshTempName()
	ep.u.DeclareVariable(name)

	var thenVal, elseVal *ssa.RValue
	ep.u.IfElse(
		func() *ssa.RValue { return cond },
		func() {
			thenVal = ep.parseAssignment()
			ep.u.WriteVariable(name, thenVal)
			if _, err := ep.p.expect(token.COLON, "in ternary expression"); err != nil {
				return
			}
		},
		func() {
			elseVal = ep.parseTernary()
			ep.u.WriteVariable(name, elseVal)
		},
	)
	_ = thenVal
	_ = elseVal
	return ep.u.ReadVariable(name)
}

func (ep *exprParser) parseBinary(minPrec int) *ssa.RValue {
	left := ep.parseUnary()
	for {
		tt := ep.p.peek().Type
		prec, ok := binaryPrecedence[tt]
		if !ok || prec < minPrec {
			return left
		}
		ep.p.next()
		right := ep.parseBinary(prec + 1)
		left = ep.u.MkBinaryOp(binaryOp[tt], left, right)
	}
}

func (ep *exprParser) parseUnary() *ssa.RValue {
	switch ep.p.peek().Type {
	case token.MINUS:
		ep.p.next()
		return ep.u.MkUnaryOp(ssa.OpNeg, ep.parseUnary())
	case token.BANG:
		ep.p.next()
		return ep.u.MkUnaryOp(ssa.OpBoolNot, ep.parseUnary())
	case token.TILDE:
		ep.p.next()
		return ep.u.MkUnaryOp(ssa.OpBitNot, ep.parseUnary())
	case token.PLUS:
		ep.p.next()
		return ep.parseUnary()
	case token.INC, token.DEC:
		opTok := ep.p.next()
		operand := ep.parseUnary()
		if operand.LV == nil {
			ep.err("invalid increment/decrement target")
			return operand
		}
		delta := ssa.OpAdd
		if opTok.Type == token.DEC {
			delta = ssa.OpSub
		}
		result := ep.u.MkBinaryOp(delta, operand, ep.u.MkConstInt(1))
		ep.u.MkAssignment(operand.LV, result)
		return ep.u.ReadBack(operand.LV)
	}
	return ep.parsePostfix()
}

func (ep *exprParser) parsePostfix() *ssa.RValue {
	val := ep.parsePrimary()
	for {
		switch ep.p.peek().Type {
		case token.DOT:
			ep.p.next()
			nameTok, err := ep.p.expect(token.IDENT, "after '.'")
			if err != nil {
				return val
			}
			if ep.p.check(token.LPAREN) {
				val = ep.parseMethodCall(val, nameTok.Lit)
				continue
			}
			key := ep.u.MkConstString(nameTok.Lit)
			val = ep.u.MkGet(val, key)
		case token.LBRACKET:
			ep.p.next()
			key := ep.ParseExpression()
			ep.p.expect(token.RBRACKET, "to close index expression")
			val = ep.u.MkGet(val, key)
		case token.INC, token.DEC:
			opTok := ep.p.next()
			if val.LV == nil {
				ep.err("invalid increment/decrement target")
				continue
			}
			old := ep.u.ReadBack(val.LV)
			delta := ssa.OpAdd
			if opTok.Type == token.DEC {
				delta = ssa.OpSub
			}
			next := ep.u.MkBinaryOp(delta, old, ep.u.MkConstInt(1))
			ep.u.MkAssignment(val.LV, next)
			val = old
		default:
			return val
		}
	}
}

// parseMethodCall builds a CallMethod instruction with receiver as the
// first argument (spec §4.7: "methods receive the receiver as arg 0").
func (ep *exprParser) parseMethodCall(receiver *ssa.RValue, name string) *ssa.RValue {
	ep.p.next() // '('
	idx, ok := ep.p.method(name)
	if !ok {
		ep.err(fmt.Sprintf("unknown method %q", name))
	}
	call := ep.u.StartCall(ssa.OpCallMethod, name)
	call.BuiltinIndex = idx
	ep.u.AppendCallArg(call, receiver)
	ep.parseArgList(call)
	ep.p.expect(token.RPAREN, "to close method call")
	return ep.u.InsertCall(call)
}

// parseCall builds either a builtin call (name resolved ahead of time,
// spec §4.7) or a plain Call left for module.Compile's linker (spec
// §4.6) to resolve against local functions or imports.
func (ep *exprParser) parseCall(name string) *ssa.RValue {
	ep.p.next() // '('
	var call *ssa.Instruction
	if idx, ok := ep.p.builtin(name); ok {
		call = ep.u.StartCall(ssa.OpCallBuiltin, name)
		call.BuiltinIndex = idx
	} else {
		call = ep.u.StartCall(ssa.OpCall, name)
	}
	ep.parseArgList(call)
	ep.p.expect(token.RPAREN, "to close call")
	return ep.u.InsertCall(call)
}

func (ep *exprParser) parseArgList(call *ssa.Instruction) {
	if ep.p.check(token.RPAREN) {
		return
	}
	for {
		arg := ep.parseAssignment()
		ep.u.AppendCallArg(call, arg)
		if !ep.p.match(token.COMMA) {
			break
		}
	}
}

func (ep *exprParser) parsePrimary() *ssa.RValue {
	t := ep.p.peek()
	switch t.Type {
	case token.INT:
		ep.p.next()
		return ep.u.MkConstInt(parseIntLiteral(t.Lit))
	case token.DECIMAL:
		ep.p.next()
		return ep.u.MkConstFloat(parseDecimalLiteral(t.Lit))
	case token.STRING:
		ep.p.next()
		return ep.u.MkConstString(t.Lit)
	case token.TRUE:
		ep.p.next()
		return ep.u.MkConstInt(1)
	case token.FALSE:
		ep.p.next()
		return ep.u.MkConstInt(0)
	case token.NULL:
		ep.p.next()
		return ep.u.MkNull()
	case token.LPAREN:
		ep.p.next()
		v := ep.ParseExpression()
		ep.p.expect(token.RPAREN, "to close parenthesized expression")
		return v
	case token.LBRACE:
		return ep.parseObjectLiteral()
	case token.LBRACKET:
		return ep.parseListLiteral()
	case token.IDENT:
		ep.p.next()
		if ep.p.check(token.LPAREN) {
			return ep.parseCall(t.Lit)
		}
		return ep.u.ReadVariable(t.Lit)
	}
	ep.err(fmt.Sprintf("unexpected token %q in expression", t.Lit))
	ep.p.next()
	return ssa.Undef()
}

// parseObjectLiteral lowers `{key: val, …}` (spec §6) to a new_object
// builtin call followed by one Set per entry.
func (ep *exprParser) parseObjectLiteral() *ssa.RValue {
	ep.p.next() // '{'
	obj := ep.newContainerCall("new_object")
	if !ep.p.check(token.RBRACE) {
		for {
			var keyTok lexer.Tok
			if ep.p.check(token.STRING) || ep.p.check(token.IDENT) {
				keyTok = ep.p.next()
			} else {
				ep.err("expected object key")
				break
			}
			ep.p.expect(token.COLON, "after object key")
			val := ep.parseAssignment()
			ep.u.MkSet(obj, ep.u.MkConstString(keyTok.Lit), val)
			if !ep.p.match(token.COMMA) {
				break
			}
			if ep.p.check(token.RBRACE) {
				break
			}
		}
	}
	ep.p.expect(token.RBRACE, "to close object literal")
	return obj
}

// parseListLiteral lowers `[val, …]` (spec §6) to a new_list builtin
// call followed by one list_append per element.
func (ep *exprParser) parseListLiteral() *ssa.RValue {
	ep.p.next() // '['
	lst := ep.newContainerCall("new_list")
	if !ep.p.check(token.RBRACKET) {
		for {
			val := ep.parseAssignment()
			ep.appendBuiltinCall("list_append", lst, val)
			if !ep.p.match(token.COMMA) {
				break
			}
			if ep.p.check(token.RBRACKET) {
				break
			}
		}
	}
	ep.p.expect(token.RBRACKET, "to close list literal")
	return lst
}

func (ep *exprParser) newContainerCall(name string) *ssa.RValue {
	idx, ok := ep.p.builtin(name)
	if !ok {
		ep.err(fmt.Sprintf("internal: %q builtin not registered", name))
	}
	call := ep.u.StartCall(ssa.OpCallBuiltin, name)
	call.BuiltinIndex = idx
	return ep.u.InsertCall(call)
}

func (ep *exprParser) appendBuiltinCall(name string, args ...*ssa.RValue) {
	idx, ok := ep.p.builtin(name)
	if !ok {
		ep.err(fmt.Sprintf("internal: %q builtin not registered", name))
	}
	call := ep.u.StartCall(ssa.OpCallBuiltin, name)
	call.BuiltinIndex = idx
	for _, a := range args {
		ep.u.AppendCallArg(call, a)
	}
	ep.u.InsertCall(call)
}

func (ep *exprParser) err(msg string) {
	t := ep.p.peek()
	ep.p.reportDiagPublic(msg, t.Pos)
}
