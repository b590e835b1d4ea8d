package flowql

import (
	"errors"
	"fmt"

	"github.com/coffersTech/nanoflow/internal/record"
)

// Schema declares the attribute kinds the compiler may check comparisons
// against. A nil Schema means the record shape is dynamic: identifier
// resolution and type checks are deferred to evaluation time.
type Schema map[string]record.Kind

// kindUnknown marks an expression whose kind cannot be determined at
// compile time.
const kindUnknown = record.Kind(255)

type stepKind uint8

const (
	stepWhere stepKind = iota
	stepExtend
)

// evalFunc computes one value from a record.
type evalFunc func(*record.Record) (record.Value, error)

type planStep struct {
	kind  stepKind
	pred  func(*record.Record) (bool, error) // where steps
	field string                             // extend steps
	value evalFunc                           // extend steps
}

// Plan is an ordered sequence of compiled steps, immutable after
// compilation and shared read-only by every record evaluation.
type Plan struct {
	source string
	steps  []planStep
}

// Source returns the query's source identifier.
func (p *Plan) Source() string { return p.source }

// Len returns the number of compiled steps.
func (p *Plan) Len() int { return len(p.steps) }

// Execute runs the plan against one record. It returns whether the record
// survives the plan. A where step that evaluates false terminates the plan
// for that record. A non-nil error means a per-record evaluation failure;
// the record must be dropped and the error counted, never propagated as a
// pipeline failure.
func (p *Plan) Execute(rec *record.Record) (bool, error) {
	for i := range p.steps {
		step := &p.steps[i]
		switch step.kind {
		case stepWhere:
			ok, err := step.pred(rec)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		case stepExtend:
			v, err := step.value(rec)
			if err != nil {
				return false, err
			}
			rec.Set(step.field, v)
		}
	}
	return true, nil
}

// Compile lowers a parsed query into an Evaluation Plan. Each filter
// statement becomes one predicate step; each extend statement becomes one
// projection step per assignment, executed left to right, with later
// assignments seeing attributes written by earlier ones in the same
// statement.
func Compile(q *Query, schema Schema) (*Plan, error) {
	if q == nil {
		return nil, errors.New("flowql: nil query")
	}

	// The scope starts as a copy of the declared schema and grows with
	// extend targets so sequential visibility is type-checked too.
	var scope Schema
	if schema != nil {
		scope = make(Schema, len(schema))
		for k, v := range schema {
			scope[k] = v
		}
	}

	plan := &Plan{source: q.Source}
	for _, stmt := range q.Statements {
		switch s := stmt.(type) {
		case FilterStatement:
			pred, err := compilePredicate(s.Predicate, scope)
			if err != nil {
				return nil, err
			}
			plan.steps = append(plan.steps, planStep{kind: stepWhere, pred: pred})

		case ExtendStatement:
			for _, a := range s.Assignments {
				fn, kind, err := compileExpr(a.Value, scope)
				if err != nil {
					return nil, err
				}
				plan.steps = append(plan.steps, planStep{kind: stepExtend, field: a.Target, value: fn})
				if scope != nil {
					scope[a.Target] = kind
				}
			}

		default:
			return nil, fmt.Errorf("flowql: unexpected statement node %T", stmt)
		}
	}
	return plan, nil
}

// compilePredicate compiles a where predicate: the expression must yield a
// boolean at evaluation time.
func compilePredicate(expr Node, scope Schema) (func(*record.Record) (bool, error), error) {
	fn, kind, err := compileExpr(expr, scope)
	if err != nil {
		return nil, err
	}
	if kind != kindUnknown && kind != record.KindBool {
		return nil, &CompileError{Pos: nodePos(expr), Msg: fmt.Sprintf("predicate is %s, not bool", kind)}
	}
	return func(rec *record.Record) (bool, error) {
		v, err := fn(rec)
		if err != nil {
			return false, err
		}
		if v.Kind() != record.KindBool {
			return false, &EvaluationError{Msg: fmt.Sprintf("predicate evaluated to %s, not bool", v.Kind())}
		}
		return v.Bool(), nil
	}, nil
}

// compileExpr lowers one expression into a closure. Literals fold to
// constants. The returned kind is the statically known result kind, or
// kindUnknown when the schema is dynamic.
func compileExpr(expr Node, scope Schema) (evalFunc, record.Kind, error) {
	switch n := expr.(type) {
	case Literal:
		v := n.Value
		return func(*record.Record) (record.Value, error) { return v, nil }, v.Kind(), nil

	case Identifier:
		name := n.Name
		kind := kindUnknown
		if scope != nil {
			k, ok := scope[name]
			if !ok {
				return nil, 0, &CompileError{Pos: n.Pos, Msg: fmt.Sprintf("unknown identifier %q", name)}
			}
			kind = k
		}
		return func(rec *record.Record) (record.Value, error) {
			v, ok := rec.Get(name)
			if !ok {
				return record.Value{}, &EvaluationError{Field: name, Msg: "attribute not present"}
			}
			return v, nil
		}, kind, nil

	case EnclosedExpr:
		return compileExpr(n.Inner, scope)

	case Negated:
		inner, kind, err := compileExpr(n.Inner, scope)
		if err != nil {
			return nil, 0, err
		}
		if kind != kindUnknown && kind != record.KindBool {
			return nil, 0, &CompileError{Pos: nodePos(n.Inner), Msg: fmt.Sprintf("cannot negate %s", kind)}
		}
		return func(rec *record.Record) (record.Value, error) {
			v, err := inner(rec)
			if err != nil {
				return record.Value{}, err
			}
			if v.Kind() != record.KindBool {
				return record.Value{}, &EvaluationError{Msg: fmt.Sprintf("cannot negate %s", v.Kind())}
			}
			return record.Bool(!v.Bool()), nil
		}, record.KindBool, nil

	case BinaryLogical:
		return compileLogical(n, scope)

	case Comparison:
		return compileComparison(n, scope)

	default:
		return nil, 0, fmt.Errorf("flowql: unexpected expression node %T", expr)
	}
}

func compileLogical(n BinaryLogical, scope Schema) (evalFunc, record.Kind, error) {
	operands := make([]evalFunc, len(n.Operands))
	for i, op := range n.Operands {
		fn, kind, err := compileExpr(op, scope)
		if err != nil {
			return nil, 0, err
		}
		if kind != kindUnknown && kind != record.KindBool {
			return nil, 0, &CompileError{Pos: nodePos(op), Msg: fmt.Sprintf("%s operand is %s, not bool", n.Op, kind)}
		}
		operands[i] = fn
	}

	isAnd := n.Op == OpAnd
	opName := n.Op.String()
	return func(rec *record.Record) (record.Value, error) {
		// Short-circuit left to right.
		for _, fn := range operands {
			v, err := fn(rec)
			if err != nil {
				return record.Value{}, err
			}
			if v.Kind() != record.KindBool {
				return record.Value{}, &EvaluationError{Msg: fmt.Sprintf("%s operand is %s, not bool", opName, v.Kind())}
			}
			if isAnd && !v.Bool() {
				return record.Bool(false), nil
			}
			if !isAnd && v.Bool() {
				return record.Bool(true), nil
			}
		}
		return record.Bool(isAnd), nil
	}, record.KindBool, nil
}

func compileComparison(n Comparison, scope Schema) (evalFunc, record.Kind, error) {
	left, lk, err := compileExpr(n.Left, scope)
	if err != nil {
		return nil, 0, err
	}
	right, rk, err := compileExpr(n.Right, scope)
	if err != nil {
		return nil, 0, err
	}

	if lk != kindUnknown && rk != kindUnknown {
		if lk != rk {
			return nil, 0, &CompileError{Pos: n.Pos, Msg: fmt.Sprintf("type mismatch: cannot compare %s to %s", lk, rk)}
		}
		if ordered(n.Op) && lk == record.KindBool {
			return nil, 0, &CompileError{Pos: n.Pos, Msg: "bool operands have no ordering"}
		}
	}

	op := n.Op
	return func(rec *record.Record) (record.Value, error) {
		lv, err := left(rec)
		if err != nil {
			return record.Value{}, err
		}
		rv, err := right(rec)
		if err != nil {
			return record.Value{}, err
		}
		ok, err := applyCompare(op, lv, rv)
		if err != nil {
			return record.Value{}, &EvaluationError{Msg: fmt.Sprintf("%s %s %s: %v", lv.GoString(), op, rv.GoString(), err)}
		}
		return record.Bool(ok), nil
	}, record.KindBool, nil
}

func applyCompare(op CompareOp, lv, rv record.Value) (bool, error) {
	switch op {
	case OpEq:
		return lv.Equal(rv)
	case OpNe:
		eq, err := lv.Equal(rv)
		if err != nil {
			return false, err
		}
		return !eq, nil
	default:
		c, err := lv.Compare(rv)
		if err != nil {
			return false, err
		}
		switch op {
		case OpGt:
			return c > 0, nil
		case OpLt:
			return c < 0, nil
		case OpGe:
			return c >= 0, nil
		default:
			return c <= 0, nil
		}
	}
}

func ordered(op CompareOp) bool {
	return op != OpEq && op != OpNe
}

// nodePos reports the closest source position an expression carries.
func nodePos(n Node) int {
	switch v := n.(type) {
	case Literal:
		return v.Pos
	case Identifier:
		return v.Pos
	case Comparison:
		return v.Pos
	case EnclosedExpr:
		return nodePos(v.Inner)
	case Negated:
		return nodePos(v.Inner)
	case BinaryLogical:
		if len(v.Operands) > 0 {
			return nodePos(v.Operands[0])
		}
	}
	return 0
}
