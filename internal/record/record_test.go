package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Value
		want    bool
		wantErr error
	}{
		{"equal strings", String("OK"), String("OK"), true, nil},
		{"unequal strings", String("OK"), String("FAIL"), false, nil},
		{"equal ints", Int(10), Int(10), true, nil},
		{"unequal ints", Int(10), Int(-10), false, nil},
		{"equal bools", Bool(true), Bool(true), true, nil},
		{"unequal bools", Bool(true), Bool(false), false, nil},
		{"string vs int", String("10"), Int(10), false, ErrKindMismatch},
		{"bool vs int", Bool(true), Int(1), false, ErrKindMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Equal(tt.b)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueCompare(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Value
		want    int
		wantErr error
	}{
		{"int less", Int(1), Int(2), -1, nil},
		{"int greater", Int(5), Int(-5), 1, nil},
		{"int equal", Int(3), Int(3), 0, nil},
		{"string lexicographic", String("abc"), String("abd"), -1, nil},
		{"string equal", String("x"), String("x"), 0, nil},
		{"bool has no ordering", Bool(false), Bool(true), 0, ErrUnordered},
		{"kind mismatch", Int(1), String("1"), 0, ErrKindMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Compare(tt.b)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordSetGet(t *testing.T) {
	rec := New()
	require.Equal(t, 0, rec.Len())

	rec.Set("status", String("OK"))
	rec.Set("value", Int(10))

	v, ok := rec.Get("status")
	require.True(t, ok)
	assert.Equal(t, KindString, v.Kind())
	assert.Equal(t, "OK", v.Str())

	_, ok = rec.Get("missing")
	assert.False(t, ok)

	// Overwrite
	rec.Set("status", String("FAIL"))
	v, _ = rec.Get("status")
	assert.Equal(t, "FAIL", v.Str())
	assert.Equal(t, 2, rec.Len())
}

func TestRecordClone(t *testing.T) {
	rec := FromMap(map[string]Value{
		"a": Int(1),
		"b": Bool(true),
	})
	dup := rec.Clone()
	dup.Set("a", Int(2))

	v, _ := rec.Get("a")
	assert.Equal(t, int64(1), v.Int(), "clone must not share attributes")
	assert.Equal(t, []string{"a", "b"}, rec.Names())
}
