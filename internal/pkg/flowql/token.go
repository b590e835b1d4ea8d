package flowql

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNewline
	TokenIdent
	TokenBool
	TokenInt
	TokenString
	TokenEq     // ==
	TokenNe     // !=
	TokenGt     // >
	TokenLt     // <
	TokenGe     // >=
	TokenLe     // <=
	TokenAssign // =
	TokenComma
	TokenLParen
	TokenRParen
	TokenPipe
	TokenAnd
	TokenOr
	TokenNot
	TokenWhere
	TokenExtend
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of input"
	case TokenNewline:
		return "newline"
	case TokenIdent:
		return "identifier"
	case TokenBool:
		return "bool literal"
	case TokenInt:
		return "int literal"
	case TokenString:
		return "string literal"
	case TokenEq:
		return "'=='"
	case TokenNe:
		return "'!='"
	case TokenGt:
		return "'>'"
	case TokenLt:
		return "'<'"
	case TokenGe:
		return "'>='"
	case TokenLe:
		return "'<='"
	case TokenAssign:
		return "'='"
	case TokenComma:
		return "','"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenPipe:
		return "'|'"
	case TokenAnd:
		return "'and'"
	case TokenOr:
		return "'or'"
	case TokenNot:
		return "'not'"
	case TokenWhere:
		return "'where'"
	case TokenExtend:
		return "'extend'"
	default:
		return "unknown token"
	}
}

// Token is a classified lexeme. Tokens are produced by the lexer and
// consumed immediately by the parser; they are not retained.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int // byte offset into the source
}

// isIdentLike reports whether the token can stand in identifier position.
// Keywords are not reserved at the token level; grammar position
// disambiguates.
func isIdentLike(k TokenKind) bool {
	switch k {
	case TokenIdent, TokenAnd, TokenOr, TokenNot, TokenWhere, TokenExtend:
		return true
	}
	return false
}
