package flowql

import "github.com/coffersTech/nanoflow/internal/record"

// Node is the interface implemented by all AST nodes. The AST is an
// immutable tree produced once per parse; each node owns its children
// exclusively.
type Node interface {
	node() // marker method
}

// LogicalOp is a logical combinator.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpAnd {
		return "and"
	}
	return "or"
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpGe:
		return ">="
	default:
		return "<="
	}
}

// Literal is a bool, int or string constant.
type Literal struct {
	Value record.Value
	Pos   int
}

func (Literal) node() {}

// Identifier names a record attribute, resolved at evaluation time.
type Identifier struct {
	Name string
	Pos  int
}

func (Identifier) node() {}

// EnclosedExpr is a parenthesized expression. The wrapper is kept in the
// tree so grouping survives structurally.
type EnclosedExpr struct {
	Inner Node
}

func (EnclosedExpr) node() {}

// BinaryLogical combines two or more operands with a single logical
// operator. Chains of the same operator are flattened.
type BinaryLogical struct {
	Op       LogicalOp
	Operands []Node // len >= 2
}

func (BinaryLogical) node() {}

// Comparison compares two expressions.
type Comparison struct {
	Op    CompareOp
	Left  Node
	Right Node
	Pos   int
}

func (Comparison) node() {}

// Negated inverts a fully parenthesized expression: not ( expr ).
type Negated struct {
	Inner Node
}

func (Negated) node() {}

// Assignment computes a value into a named attribute.
type Assignment struct {
	Target string
	Value  Node
	Pos    int
}

func (Assignment) node() {}

// FilterStatement is "| where predicate".
type FilterStatement struct {
	Predicate Node
}

func (FilterStatement) node() {}

// ExtendStatement is "| extend a = expr, b = expr, ...".
type ExtendStatement struct {
	Assignments []Assignment
}

func (ExtendStatement) node() {}

// Query is a source identifier followed by zero or more statements.
type Query struct {
	Source     string
	Statements []Node // FilterStatement or ExtendStatement
}

func (Query) node() {}
