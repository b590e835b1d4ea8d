package flowql

import (
	"strconv"

	"github.com/coffersTech/nanoflow/internal/record"
)

// Parser consumes a token stream into a Query AST. The first syntax or
// grammar error aborts the parse; there is no error recovery.
type Parser struct {
	lexer   *Lexer
	current Token
}

// Parse parses flowql source text into a Query.
func Parse(input string) (*Query, error) {
	p := &Parser{lexer: NewLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseQuery()
}

func (p *Parser) advance() error {
	tok, err := p.lexer.Next()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *Parser) expected(what string) error {
	return &ParseError{Pos: p.current.Pos, Expected: what, Found: p.current}
}

func (p *Parser) skipNewlines() error {
	for p.current.Kind == TokenNewline {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

// parseQuery handles: identifier EOI | identifier (newline* statement)+ newline* EOI
func (p *Parser) parseQuery() (*Query, error) {
	if !isIdentLike(p.current.Kind) {
		return nil, p.expected("source identifier")
	}
	q := &Query{Source: p.current.Text}
	if err := p.advance(); err != nil {
		return nil, err
	}

	for {
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		switch p.current.Kind {
		case TokenEOF:
			return q, nil
		case TokenPipe:
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			q.Statements = append(q.Statements, stmt)
		default:
			return nil, p.expected("'|' or end of input")
		}
	}
}

// parseStatement handles one "| where ..." or "| extend ..." statement.
func (p *Parser) parseStatement() (Node, error) {
	// current is the pipe
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch p.current.Kind {
	case TokenWhere:
		if err := p.advance(); err != nil {
			return nil, err
		}
		pred, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		return FilterStatement{Predicate: pred}, nil

	case TokenExtend:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseExtend()

	default:
		return nil, p.expected("'where' or 'extend'")
	}
}

func (p *Parser) parseExtend() (Node, error) {
	stmt := ExtendStatement{}
	for {
		a, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		stmt.Assignments = append(stmt.Assignments, a)
		if p.current.Kind != TokenComma {
			return stmt, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseAssignment() (Assignment, error) {
	if !isIdentLike(p.current.Kind) {
		return Assignment{}, p.expected("assignment target identifier")
	}
	a := Assignment{Target: p.current.Text, Pos: p.current.Pos}
	if err := p.advance(); err != nil {
		return Assignment{}, err
	}
	if p.current.Kind != TokenAssign {
		return Assignment{}, p.expected("'='")
	}
	if err := p.advance(); err != nil {
		return Assignment{}, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return Assignment{}, err
	}
	a.Value = value
	return a, nil
}

// parsePredicate handles: binary_logical | comparison | negated.
// A bare identifier, literal or enclosed expression is not a predicate.
func (p *Parser) parsePredicate() (Node, error) {
	if p.current.Kind == TokenNot {
		return p.parseNegated()
	}

	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}

	switch {
	case p.current.Kind == TokenAnd || p.current.Kind == TokenOr:
		return p.parseLogicalChain(base)
	case isCompareOp(p.current.Kind):
		return p.parseComparison(base)
	default:
		return nil, p.expected("comparison or logical operator")
	}
}

// parseExpression handles the full expression choice:
// binary_logical | comparison | negated | expression_base.
func (p *Parser) parseExpression() (Node, error) {
	if p.current.Kind == TokenNot {
		return p.parseNegated()
	}

	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}

	switch {
	case p.current.Kind == TokenAnd || p.current.Kind == TokenOr:
		return p.parseLogicalChain(base)
	case isCompareOp(p.current.Kind):
		return p.parseComparison(base)
	default:
		return base, nil
	}
}

// parseLogicalChain handles expression_base (and expression)+ and the or
// counterpart. The right-hand expression is parsed greedily, so a chain
// mixing both operators nests to the right: a and b or c parses as
// and(a, or(b, c)). Chains of one operator are flattened into a single
// node with ordered operands.
func (p *Parser) parseLogicalChain(base Node) (Node, error) {
	op := OpAnd
	kind := p.current.Kind
	if kind == TokenOr {
		op = OpOr
	}

	operands := []Node{base}
	for p.current.Kind == kind {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if b, ok := operand.(BinaryLogical); ok && b.Op == op {
			operands = append(operands, b.Operands...)
		} else {
			operands = append(operands, operand)
		}
	}
	return BinaryLogical{Op: op, Operands: operands}, nil
}

// parseComparison handles expression_base <op> expression. The right
// operand is a full expression, so comparisons associate to the right.
func (p *Parser) parseComparison(left Node) (Node, error) {
	pos := p.current.Pos
	op, ok := compareOpFor(p.current.Kind)
	if !ok {
		return nil, p.expected("comparison operator")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return Comparison{Op: op, Left: left, Right: right, Pos: pos}, nil
}

// parseNegated handles: not "(" expression ")". Negation only ever applies
// to a fully parenthesized expression.
func (p *Parser) parseNegated() (Node, error) {
	// current is 'not'
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.current.Kind != TokenLParen {
		return nil, p.expected("'(' after 'not'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	inner, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.current.Kind != TokenRParen {
		return nil, p.expected("')'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return Negated{Inner: inner}, nil
}

// parseBase handles: identifier | literal | "(" expression ")".
func (p *Parser) parseBase() (Node, error) {
	tok := p.current
	switch {
	case isIdentLike(tok.Kind):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Identifier{Name: tok.Text, Pos: tok.Pos}, nil

	case tok.Kind == TokenBool:
		if err := p.advance(); err != nil {
			return nil, err
		}
		v := tok.Text == "true" || tok.Text == "True" || tok.Text == "TRUE"
		return Literal{Value: record.Bool(v), Pos: tok.Pos}, nil

	case tok.Kind == TokenInt:
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Offset: tok.Pos, Remainder: tok.Text, Msg: "integer literal out of range"}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Literal{Value: record.Int(n), Pos: tok.Pos}, nil

	case tok.Kind == TokenString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Literal{Value: record.String(tok.Text), Pos: tok.Pos}, nil

	case tok.Kind == TokenLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.current.Kind != TokenRParen {
			return nil, p.expected("')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return EnclosedExpr{Inner: inner}, nil

	default:
		return nil, p.expected("identifier, literal or '('")
	}
}

func isCompareOp(k TokenKind) bool {
	_, ok := compareOpFor(k)
	return ok
}

func compareOpFor(k TokenKind) (CompareOp, bool) {
	switch k {
	case TokenEq:
		return OpEq, true
	case TokenNe:
		return OpNe, true
	case TokenGt:
		return OpGt, true
	case TokenLt:
		return OpLt, true
	case TokenGe:
		return OpGe, true
	case TokenLe:
		return OpLe, true
	}
	return 0, false
}
