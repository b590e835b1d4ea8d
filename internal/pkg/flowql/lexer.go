package flowql

import (
	"strings"
)

// Lexer tokenizes flowql source text.
//
// Only the space character is skipped between tokens; newlines are
// significant statement separators and are emitted as tokens. Block
// comments (/* ... */, non-nesting) are skipped wherever a space would be.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a Lexer over the given source text.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token, or a *SyntaxError for unmatched input.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}

	if l.pos >= len(l.input) {
		return Token{Kind: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '\n':
		l.pos++
		return Token{Kind: TokenNewline, Text: "\n", Pos: start}, nil
	case '"':
		return l.readString()
	case ',':
		l.pos++
		return Token{Kind: TokenComma, Text: ",", Pos: start}, nil
	case '(':
		l.pos++
		return Token{Kind: TokenLParen, Text: "(", Pos: start}, nil
	case ')':
		l.pos++
		return Token{Kind: TokenRParen, Text: ")", Pos: start}, nil
	case '|':
		if l.peekAt(1) == '|' {
			return Token{}, l.errHere("'|' may not be followed by '|'")
		}
		l.pos++
		return Token{Kind: TokenPipe, Text: "|", Pos: start}, nil
	case '=':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Kind: TokenEq, Text: "==", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: TokenAssign, Text: "=", Pos: start}, nil
	case '!':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Kind: TokenNe, Text: "!=", Pos: start}, nil
		}
		return Token{}, l.errHere("'!' must be followed by '='")
	case '>':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Kind: TokenGe, Text: ">=", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: TokenGt, Text: ">", Pos: start}, nil
	case '<':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Kind: TokenLe, Text: "<=", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: TokenLt, Text: "<", Pos: start}, nil
	case '-':
		if isDigit(l.peekAt(1)) {
			return l.readInt()
		}
		return Token{}, l.errHere("'-' must begin an integer literal")
	}

	if isDigit(ch) {
		return l.readInt()
	}
	if isIdentChar(ch) {
		return l.readIdent()
	}

	return Token{}, l.errHere("unmatched input")
}

// skipTrivia consumes spaces and block comments. No whitespace or comment
// may appear inside an atomic token, so this runs only between tokens.
func (l *Lexer) skipTrivia() error {
	for l.pos < len(l.input) {
		switch {
		case l.input[l.pos] == ' ':
			l.pos++
		case strings.HasPrefix(l.input[l.pos:], "/*"):
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				return &SyntaxError{
					Offset:    l.pos,
					Remainder: truncate(l.input[l.pos:]),
					Msg:       "unterminated block comment",
				}
			}
			l.pos += 2 + end + 2
		default:
			return nil
		}
	}
	return nil
}

// readString consumes a "-delimited literal. No escape processing: the
// literal cannot contain a '"'.
func (l *Lexer) readString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		if l.input[l.pos] == '\n' {
			break
		}
		l.pos++
	}
	if l.pos >= len(l.input) || l.input[l.pos] != '"' {
		l.pos = start
		return Token{}, l.errHere("unterminated string literal")
	}
	value := l.input[start+1 : l.pos]
	l.pos++ // closing quote
	return Token{Kind: TokenString, Text: value, Pos: start}, nil
}

// readInt consumes an integer literal: optional '-', then '0' alone or a
// non-zero digit followed by digits. No leading zeros.
func (l *Lexer) readInt() (Token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	if l.input[l.pos] == '0' {
		l.pos++
	} else {
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Kind: TokenInt, Text: l.input[start:l.pos], Pos: start}, nil
}

func (l *Lexer) readIdent() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	text := l.input[start:l.pos]

	kind := TokenIdent
	switch text {
	case "and":
		kind = TokenAnd
	case "or":
		kind = TokenOr
	case "not":
		kind = TokenNot
	case "where":
		kind = TokenWhere
	case "extend":
		kind = TokenExtend
	case "true", "True", "TRUE", "false", "False", "FALSE":
		kind = TokenBool
	}

	return Token{Kind: kind, Text: text, Pos: start}, nil
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *Lexer) errHere(msg string) *SyntaxError {
	return &SyntaxError{
		Offset:    l.pos,
		Remainder: truncate(l.input[l.pos:]),
		Msg:       msg,
	}
}

func truncate(s string) string {
	const max = 24
	if len(s) > max {
		return s[:max]
	}
	return s
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentChar(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
