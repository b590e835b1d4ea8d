package flowql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanoflow/internal/record"
)

func mustParse(t *testing.T, input string) *Query {
	t.Helper()
	q, err := Parse(input)
	require.NoError(t, err)
	return q
}

func TestParseSourceOnly(t *testing.T) {
	q := mustParse(t, "Events")
	assert.Equal(t, "Events", q.Source)
	assert.Empty(t, q.Statements)

	// Keywords are not reserved in identifier position.
	q = mustParse(t, "where")
	assert.Equal(t, "where", q.Source)
}

func TestParseWhereComparison(t *testing.T) {
	q := mustParse(t, `Events | where status == "OK"`)
	require.Len(t, q.Statements, 1)

	f, ok := q.Statements[0].(FilterStatement)
	require.True(t, ok)
	cmp, ok := f.Predicate.(Comparison)
	require.True(t, ok)
	assert.Equal(t, OpEq, cmp.Op)
	assert.Equal(t, Identifier{Name: "status", Pos: 15}, cmp.Left)

	lit, ok := cmp.Right.(Literal)
	require.True(t, ok)
	assert.Equal(t, record.KindString, lit.Value.Kind())
	assert.Equal(t, "OK", lit.Value.Str())
}

func TestParseExtend(t *testing.T) {
	q := mustParse(t, `Events | extend ok = true, copy = status`)
	require.Len(t, q.Statements, 1)

	e, ok := q.Statements[0].(ExtendStatement)
	require.True(t, ok)
	require.Len(t, e.Assignments, 2)
	assert.Equal(t, "ok", e.Assignments[0].Target)
	assert.Equal(t, "copy", e.Assignments[1].Target)
	assert.IsType(t, Literal{}, e.Assignments[0].Value)
	assert.IsType(t, Identifier{}, e.Assignments[1].Value)
}

func TestParseMultipleStatements(t *testing.T) {
	q := mustParse(t, "Events\n| where value > 10\n| extend ok = true\n")
	require.Len(t, q.Statements, 2)
	assert.IsType(t, FilterStatement{}, q.Statements[0])
	assert.IsType(t, ExtendStatement{}, q.Statements[1])

	// Blank lines between statements are fine.
	q = mustParse(t, "Events\n\n\n| where value > 10")
	assert.Len(t, q.Statements, 1)
}

func TestParseLogicalChains(t *testing.T) {
	// Same-op chains flatten into one node with ordered operands.
	q := mustParse(t, "Events | where a == 1 and b == 2 and c == 3")
	f := q.Statements[0].(FilterStatement)
	b, ok := f.Predicate.(BinaryLogical)
	require.True(t, ok)
	assert.Equal(t, OpAnd, b.Op)
	assert.Len(t, b.Operands, 3)

	// Mixed chains nest to the right: the second operator binds inside.
	q = mustParse(t, "Events | where a == 1 and b == 2 or c == 3")
	b = q.Statements[0].(FilterStatement).Predicate.(BinaryLogical)
	assert.Equal(t, OpAnd, b.Op)
	require.Len(t, b.Operands, 2)
	inner, ok := b.Operands[1].(BinaryLogical)
	require.True(t, ok)
	assert.Equal(t, OpOr, inner.Op)
	assert.Len(t, inner.Operands, 2)
}

func TestParseNegation(t *testing.T) {
	q := mustParse(t, "Events | where not (ok == true)")
	f := q.Statements[0].(FilterStatement)
	neg, ok := f.Predicate.(Negated)
	require.True(t, ok)
	assert.IsType(t, Comparison{}, neg.Inner)
}

func TestParseEnclosedExpr(t *testing.T) {
	q := mustParse(t, "Events | where (a == 1) or (b == 2)")
	b := q.Statements[0].(FilterStatement).Predicate.(BinaryLogical)
	assert.Equal(t, OpOr, b.Op)
	enc, ok := b.Operands[0].(EnclosedExpr)
	require.True(t, ok)
	assert.IsType(t, Comparison{}, enc.Inner)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"pipe without statement", "Events |"},
		{"trailing pipe keyword only", "Events | where"},
		{"statement is not where or extend", "Events | project a"},
		{"bare identifier predicate", "Events | where status"},
		{"bare literal predicate", "Events | where true"},
		{"bare enclosed predicate", "Events | where (a == 1)"},
		{"not without parens", "Events | where not a == 1"},
		{"extend missing value", "Events | extend a ="},
		{"extend missing assign", "Events | extend a b"},
		{"trailing comma in extend", "Events | extend a = 1,"},
		{"garbage after query", "Events | where a == 1 extra"},
		{"double comparison left to chain", "Events | where == 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestParseIntLiteralRange(t *testing.T) {
	q := mustParse(t, "Events | extend max = 9223372036854775807")
	e := q.Statements[0].(ExtendStatement)
	lit := e.Assignments[0].Value.(Literal)
	assert.Equal(t, int64(9223372036854775807), lit.Value.Int())

	_, err := Parse("Events | extend too = 9223372036854775808")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
}

func TestParseDeterministic(t *testing.T) {
	const src = "Events\n| where a == 1 or b == 2\n| extend c = not (a > b)"
	first := mustParse(t, src)
	second := mustParse(t, src)
	assert.Equal(t, first, second)
}
