package record

import (
	"errors"
	"strconv"
)

// Comparison errors. The flowql evaluator classifies these as per-record
// evaluation failures, not pipeline failures.
var (
	ErrKindMismatch = errors.New("attribute kind mismatch")
	ErrUnordered    = errors.New("values of this kind have no ordering")
)

// Kind identifies the runtime type of an attribute value.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged attribute value. There is no implicit coercion between
// kinds: comparing values of different kinds is an error.
type Value struct {
	kind Kind
	b    bool
	i    int64
	s    string
}

func Bool(v bool) Value   { return Value{kind: KindBool, b: v} }
func Int(v int64) Value   { return Value{kind: KindInt, i: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

func (v Value) Kind() Kind  { return v.kind }
func (v Value) Bool() bool  { return v.b }
func (v Value) Int() int64  { return v.i }
func (v Value) Str() string { return v.s }

// Equal reports whether two values are equal. Both values must be of the
// same kind.
func (v Value) Equal(o Value) (bool, error) {
	if v.kind != o.kind {
		return false, ErrKindMismatch
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b, nil
	case KindInt:
		return v.i == o.i, nil
	case KindString:
		return v.s == o.s, nil
	default:
		return false, ErrKindMismatch
	}
}

// Compare orders two values of the same kind: -1, 0 or 1. Integers compare
// numerically, strings byte-lexicographically. Booleans have no ordering.
func (v Value) Compare(o Value) (int, error) {
	if v.kind != o.kind {
		return 0, ErrKindMismatch
	}
	switch v.kind {
	case KindInt:
		switch {
		case v.i < o.i:
			return -1, nil
		case v.i > o.i:
			return 1, nil
		}
		return 0, nil
	case KindString:
		switch {
		case v.s < o.s:
			return -1, nil
		case v.s > o.s:
			return 1, nil
		}
		return 0, nil
	default:
		return 0, ErrUnordered
	}
}

// GoString renders the value for log output and error messages.
func (v Value) GoString() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return `"` + v.s + `"`
	}
}
