// Package kernerr defines the error taxonomy shared by every kernel
// subsystem. Every fallible kernel operation returns one of these as a
// plain error value; nothing in the kernel core panics except at the
// boot-validation boundary and on a duplicate or out-of-range syscall
// registration.
package kernerr

import "fmt"

// Kind classifies a kernel error so callers can branch on cause
// without string-matching.
type Kind int

const (
	InvalidAlignment Kind = iota
	OutOfMemory
	InvalidSize
	InvalidAddress
	InvalidArgument
	Generic
	OutOfBoundsPointer
)

func (k Kind) String() string {
	switch k {
	case InvalidAlignment:
		return "invalid alignment"
	case OutOfMemory:
		return "out of memory"
	case InvalidSize:
		return "invalid size"
	case InvalidAddress:
		return "invalid address"
	case InvalidArgument:
		return "invalid argument"
	case OutOfBoundsPointer:
		return "out of bounds pointer"
	default:
		return "generic error"
	}
}

// Error wraps a Kind with the operation-specific detail that produced
// it. It implements the standard error interface and supports
// errors.Is against another *Error of the same Kind (see Is); the
// Detail text is not compared.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is reports whether target is a *Error with the same Kind, so callers
// can write errors.Is(err, kernerr.New(kernerr.OutOfMemory, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error. detail may be empty.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Of reports the Kind carried by err, and ok=false if err is nil or not
// a *Error.
func Of(err error) (Kind, bool) {
	e, ok := err.(*Error)
	if !ok {
		return Generic, false
	}
	return e.Kind, true
}
