// Package lexer implements ChronoScript's tokenizer — the concrete
// instance of spec §1's "external lexical preprocessor" token-stream
// contract — adapted from the teacher's grammar/lexer.go participle
// stateful lexer, generalized from Kanso's Move-like token set to the
// C-subset surface of spec §6 (string/decimal literals, the full C
// operator set, `null`).
package lexer

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"chronoscript/token"
)

// Rules is the participle stateful lexer definition; exported so
// internal/parser's tests can build a Definition directly if needed.
var Rules = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"DocComment", `///[^\n]*`, nil},
		{"Comment", `//[^\n]*`, nil},
		{"BlockComment", `/\*([^*]|\*[^/])*\*/`, nil},
		{"String", `"(\\.|[^"\\])*"`, nil},
		{"Decimal", `[0-9]+\.[0-9]+`, nil},
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Operator", `(<<=|>>=|<<|>>|\+\+|--|&&|\|\||==|!=|<=|>=|\+=|-=|\*=|/=|%=|[-+*/%&|^~!<>=?])`, nil},
		{"Punctuation", `[{}()\[\]:;,.]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

// Tok carries a participle-lexed token reclassified into
// ChronoScript's token.TokenType, with its source position.
type Tok struct {
	Type token.TokenType
	Lit  string
	Pos  token.Position
}

// Stream tokenizes src (already macro-expanded by internal/preprocessor)
// into a slice of Tok, skipping whitespace and comments, and recognizing
// a "/* fall through */"-shaped comment as a fallthrough-hint marker
// (spec §6) recorded in FallthroughHints by line number.
type Stream struct {
	Tokens            []Tok
	pos               int
	FallthroughHints  map[int]bool // source line of the comment -> hint present
}

func fallthroughPhrase(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "fall through") || strings.Contains(lower, "fallthrough") || strings.Contains(lower, "fall-through")
}

// Tokenize runs the stateful lexer over src and returns the resulting Stream.
func Tokenize(filename, src string) (*Stream, error) {
	def, err := Rules.Lex(filename, strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("lexer: %w", err)
	}
	st := &Stream{FallthroughHints: make(map[int]bool)}
	for {
		lt, err := def.Next()
		if err != nil {
			return nil, fmt.Errorf("lexer: %w", err)
		}
		if lt.EOF() {
			break
		}
		pos := token.Position{Filename: lt.Pos.Filename, Line: lt.Pos.Line, Column: lt.Pos.Column}
		symbol := Rules.Symbols()
		name := symbolName(symbol, lt.Type)
		switch name {
		case "Whitespace":
			continue
		case "DocComment", "Comment", "BlockComment":
			if fallthroughPhrase(lt.Value) {
				st.FallthroughHints[lt.Pos.Line] = true
			}
			continue
		case "String":
			st.Tokens = append(st.Tokens, Tok{Type: token.STRING, Lit: unquote(lt.Value), Pos: pos})
		case "Decimal":
			st.Tokens = append(st.Tokens, Tok{Type: token.DECIMAL, Lit: lt.Value, Pos: pos})
		case "Integer":
			st.Tokens = append(st.Tokens, Tok{Type: token.INT, Lit: lt.Value, Pos: pos})
		case "Ident":
			st.Tokens = append(st.Tokens, Tok{Type: token.LookupIdent(lt.Value), Lit: lt.Value, Pos: pos})
		case "Operator", "Punctuation":
			st.Tokens = append(st.Tokens, Tok{Type: operatorType(lt.Value), Lit: lt.Value, Pos: pos})
		default:
			return nil, fmt.Errorf("lexer: unrecognized token %q at %s", lt.Value, pos)
		}
	}
	st.Tokens = append(st.Tokens, Tok{Type: token.EOF, Pos: token.Position{Filename: filename}})
	return st, nil
}

func symbolName(symbols map[string]lexer.TokenType, t lexer.TokenType) string {
	for name, tt := range symbols {
		if tt == t {
			return name
		}
	}
	return ""
}

func unquote(s string) string {
	s = s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\':
				b.WriteByte(s[i])
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

var operatorTypes = map[string]token.TokenType{
	"=": token.ASSIGN, "+": token.PLUS, "-": token.MINUS, "!": token.BANG,
	"*": token.ASTERISK, "/": token.SLASH, "%": token.PERCENT, "~": token.TILDE,
	"&": token.AMPERSAND, "|": token.PIPE, "^": token.CARET,
	"<<": token.SHL, ">>": token.SHR, "<": token.LT, ">": token.GT,
	"<=": token.LE, ">=": token.GE, "==": token.EQ, "!=": token.NOT_EQ,
	"&&": token.LOGICAL_AND, "||": token.LOGICAL_OR, "?": token.QUESTION,
	"+=": token.PLUS_ASSIGN, "-=": token.MINUS_ASSIGN, "*=": token.STAR_ASSIGN,
	"/=": token.SLASH_ASSIGN, "%=": token.PCT_ASSIGN,
	"++": token.INC, "--": token.DEC,
	",": token.COMMA, ";": token.SEMICOLON, ":": token.COLON,
	"(": token.LPAREN, ")": token.RPAREN, "{": token.LBRACE, "}": token.RBRACE,
	"[": token.LBRACKET, "]": token.RBRACKET, ".": token.DOT,
}

func operatorType(lit string) token.TokenType {
	if t, ok := operatorTypes[lit]; ok {
		return t
	}
	return token.ILLEGAL
}

// Peek returns the token n ahead of the cursor without consuming it.
func (s *Stream) Peek(n int) Tok {
	i := s.pos + n
	if i >= len(s.Tokens) {
		return s.Tokens[len(s.Tokens)-1]
	}
	return s.Tokens[i]
}

// Next consumes and returns the current token.
func (s *Stream) Next() Tok {
	t := s.Peek(0)
	if s.pos < len(s.Tokens)-1 {
		s.pos++
	}
	return t
}

// Pos returns the stream's current cursor index, and Seek resets it.
// Used by the `for` statement's post-clause, which must be re-walked
// once after its tokens are first skipped over (to find the closing
// paren) and again when ssa.BuildUtil.ForLoop is ready to build it in
// the post-block, out of source order relative to the loop body.
func (s *Stream) Pos() int      { return s.pos }
func (s *Stream) Seek(pos int)  { s.pos = pos }
