package speechgen

import (
	"errors"
	"fmt"

	"github.com/obinnaokechukwu/speechgen/internal/handles"
)

// Kind classifies a boundary failure.
type Kind int

// Failure kinds.
const (
	KindUnknown           Kind = iota
	KindInvalidInput           // empty or unrepresentable string argument
	KindInvalidHandle          // handle with no live resource
	KindEngineInit             // engine rejected load or initialize
	KindEngineOperation        // engine failed or returned inconsistent output
	KindSubsystemNotReady      // use before one-time initialization
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindInvalidHandle:
		return "invalid handle"
	case KindEngineInit:
		return "engine init failure"
	case KindEngineOperation:
		return "engine operation failure"
	case KindSubsystemNotReady:
		return "subsystem not ready"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrInvalidInput      = errors.New("speechgen: invalid input")
	ErrInvalidHandle     = errors.New("speechgen: invalid handle")
	ErrEngineInit        = errors.New("speechgen: engine init failure")
	ErrEngineOperation   = errors.New("speechgen: engine operation failure")
	ErrSubsystemNotReady = errors.New("speechgen: subsystem not ready")
)

// Error is the single error type returned by Bridge operations.
type Error struct {
	Kind    Kind
	Op      string         // Boundary operation that failed
	Handle  handles.Handle // Handle involved, if any
	Message string         // Human-readable description
	Err     error          // Underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("speechgen %s: %s", e.Op, e.Message)
	if e.Handle != handles.Invalid {
		msg += fmt.Sprintf(" (handle %s)", e.Handle)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindInvalidHandle:
		return ErrInvalidHandle
	case KindEngineInit:
		return ErrEngineInit
	case KindEngineOperation:
		return ErrEngineOperation
	case KindSubsystemNotReady:
		return ErrSubsystemNotReady
	}
	return nil
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}
