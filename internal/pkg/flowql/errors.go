package flowql

import "fmt"

// SyntaxError reports malformed source text at the lexical level. It aborts
// the compilation; no pipeline is constructed.
type SyntaxError struct {
	Offset    int
	Remainder string // unmatched input, truncated
	Msg       string
}

func (e *SyntaxError) Error() string {
	if e.Remainder == "" {
		return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("syntax error at offset %d near %q: %s", e.Offset, e.Remainder, e.Msg)
}

// ParseError reports a grammar violation: the token found where another was
// expected. The first parse error aborts the parse.
type ParseError struct {
	Pos      int
	Expected string
	Found    Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: expected %s, found %s", e.Pos, e.Expected, e.Found.Kind)
}

// CompileError reports a statically detectable problem in a parsed query:
// an identifier unknown to the declared schema, or a type mismatch between
// compared operands.
type CompileError struct {
	Pos int
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at offset %d: %s", e.Pos, e.Msg)
}

// EvaluationError is a per-record failure: an identifier absent from the
// record at evaluation time, or a runtime type mismatch. The offending
// record is dropped and counted; the pipeline continues.
type EvaluationError struct {
	Field string
	Msg   string
}

func (e *EvaluationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("evaluation error on %q: %s", e.Field, e.Msg)
	}
	return "evaluation error: " + e.Msg
}
