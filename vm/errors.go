package vm

import (
	"errors"
	"fmt"

	"github.com/fernlang/fern/immix"
)

// ErrorKind classifies runtime errors.
type ErrorKind int

const (
	// KindBadRequest: the allocator was asked for something it never
	// grants (large objects, bad block sizes).
	KindBadRequest ErrorKind = iota
	// KindOutOfMemory: the underlying allocator refused.
	KindOutOfMemory
	// KindBorrow: an Array borrow rule was violated.
	KindBorrow
	// KindBounds: an index fell outside [0, length).
	KindBounds
	// KindUnboundName: a global lookup missed.
	KindUnboundName
	// KindNotCallable: Call applied to a non-function value.
	KindNotCallable
	// KindArityMismatch: a function was applied to more arguments
	// than its arity.
	KindArityMismatch
	// KindTypeMismatch: an operation met a value of the wrong type.
	KindTypeMismatch
	// KindArithmeticOverflow: an integer operation left the tagged
	// integer range.
	KindArithmeticOverflow
	// KindUnhashable: a value of a non-hashable type was used as a
	// dict key.
	KindUnhashable
	// KindLexer: the tokenizer met an invalid character sequence.
	KindLexer
	// KindParse: the parser met an invalid token sequence.
	KindParse
	// KindEval: a compile- or eval-time semantic error.
	KindEval
)

var kindNames = map[ErrorKind]string{
	KindBadRequest:         "bad allocation request",
	KindOutOfMemory:        "out of memory",
	KindBorrow:             "borrow violation",
	KindBounds:             "index out of bounds",
	KindUnboundName:        "unbound name",
	KindNotCallable:        "not callable",
	KindArityMismatch:      "arity mismatch",
	KindTypeMismatch:       "type mismatch",
	KindArithmeticOverflow: "arithmetic overflow",
	KindUnhashable:         "unhashable key",
	KindLexer:              "lexer error",
	KindParse:              "parse error",
	KindEval:               "evaluation error",
}

// SourcePos locates a token in source text. Lines and columns are
// 1-based; the zero value means "unknown".
type SourcePos struct {
	Line uint32
	Col  uint32
}

func (p SourcePos) isKnown() bool {
	return p.Line != 0
}

// RuntimeError is the error type for everything above the raw
// allocator: container misuse, compilation errors and VM faults.
type RuntimeError struct {
	Kind ErrorKind
	Pos  SourcePos
	Msg  string
}

func (e *RuntimeError) Error() string {
	kind := kindNames[e.Kind]
	switch {
	case e.Pos.isKnown() && e.Msg != "":
		return fmt.Sprintf("%s at line %d col %d: %s", kind, e.Pos.Line, e.Pos.Col, e.Msg)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", kind, e.Msg)
	default:
		return kind
	}
}

// newError builds a RuntimeError with no source position.
func newError(kind ErrorKind, msg string) *RuntimeError {
	return &RuntimeError{Kind: kind, Msg: msg}
}

// errEval reports a semantic error discovered during compilation or
// evaluation.
func errEval(msg string) *RuntimeError {
	return newError(KindEval, msg)
}

// errEvalf is errEval with formatting.
func errEvalf(format string, args ...any) *RuntimeError {
	return errEval(fmt.Sprintf(format, args...))
}

// errParse reports a parse error at a source position.
func errParse(pos SourcePos, msg string) *RuntimeError {
	return &RuntimeError{Kind: KindParse, Pos: pos, Msg: msg}
}

// errLexer reports a tokenizer error at a source position.
func errLexer(pos SourcePos, msg string) *RuntimeError {
	return &RuntimeError{Kind: KindLexer, Pos: pos, Msg: msg}
}

// wrapAllocErr maps allocator errors into the runtime error taxonomy.
func wrapAllocErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, immix.ErrBadRequest):
		return newError(KindBadRequest, err.Error())
	case errors.Is(err, immix.ErrOOM):
		return newError(KindOutOfMemory, err.Error())
	default:
		return err
	}
}

// IsKind reports whether err is a RuntimeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var rte *RuntimeError
	return errors.As(err, &rte) && rte.Kind == kind
}
