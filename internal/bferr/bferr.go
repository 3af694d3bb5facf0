// Package bferr defines the error kinds shared by the parser, the
// optimizer's bracket finalization pass, both JIT back-ends, and the tape
// sandbox (spec §7 "Error Handling Design"). The interpreter reports its
// own failures as interp.RuntimeError.
package bferr

import "fmt"

// Kind identifies which failure mode produced an Error.
type Kind int

const (
	// UnmatchedJumpForward: parser/finalize saw end-of-input mid-loop.
	// REPL callers catch this and request more input (spec §7).
	UnmatchedJumpForward Kind = iota
	// UnmatchedJumpBack: a stray ']' with no open loop.
	UnmatchedJumpBack
	// UnsupportedArchitecture: JIT requested on a host that is neither
	// x86-64 nor riscv64.
	UnsupportedArchitecture
	// UnsupportedLargeOffset: x86-64 back-end disp32 overflow.
	UnsupportedLargeOffset
	// TapeOverrun: the fault handler observed a fault inside the active
	// tape mapping.
	TapeOverrun
)

var kindNames = [...]string{
	UnmatchedJumpForward:    "UnmatchedJumpForward",
	UnmatchedJumpBack:       "UnmatchedJumpBack",
	UnsupportedArchitecture: "UnsupportedArchitecture",
	UnsupportedLargeOffset:  "UnsupportedLargeOffset",
	TapeOverrun:             "TapeOverrun",
}

func (k Kind) String() string { return kindNames[k] }

// Position optionally locates the failure in source text.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Error is the concrete error type returned across the toolchain for the
// kinds above, following the teacher's hand-rolled typed-error idiom
// rather than adopting an errors-wrapping library.
type Error struct {
	Kind Kind
	Msg  string
	Pos  *Position // nil when the failure has no source location
	PC   int       // program-counter index, meaningful for runtime failures
}

func (e *Error) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("%s: %s at line %d col %d (offset %d)", e.Kind, e.Msg, e.Pos.Line, e.Pos.Column, e.Pos.Offset)
	}
	if e.PC != 0 {
		return fmt.Sprintf("%s: %s (pc %d)", e.Kind, e.Msg, e.PC)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is makes errors.Is match any *Error target of the same Kind, e.g.
// errors.Is(err, bferr.New(bferr.UnmatchedJumpForward, "")).
func (e *Error) Is(target error) bool {
	k, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == k.Kind
}

// New constructs an *Error of the given kind with no position.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}
