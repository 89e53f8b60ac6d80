package wizard

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindPersistence Kind = "persistence"
	KindGeneration  Kind = "generation"
	KindIdentity    Kind = "identity"
	KindNavigation  Kind = "navigation"
	KindBusy        Kind = "busy"
)

// User-facing messages. Validation and navigation messages are built per step.
const (
	MsgPersistenceFailed = "Failed to save your progress. Please try again."
	MsgGenerationFailed  = "Failed to generate your plan. Please try again."
	MsgSignIn            = "Please sign in to continue."
	MsgBusy              = "Please wait for the current operation to finish."
)

// Sentinels for errors.Is matching on kind.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrGeneration  = &Error{Kind: KindGeneration}
	ErrIdentity    = &Error{Kind: KindIdentity}
	ErrNavigation  = &Error{Kind: KindNavigation}
	ErrBusy        = &Error{Kind: KindBusy}
)

// Error carries exactly one user-facing message. Err holds the internal cause,
// which is logged but never shown to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// UserMessage extracts the user-facing message, falling back to a generic one.
func UserMessage(err error) string {
	var we *Error
	if errors.As(err, &we) && we.Message != "" {
		return we.Message
	}
	return "Something went wrong. Please try again."
}

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func navigationError(format string, args ...any) *Error {
	return &Error{Kind: KindNavigation, Message: fmt.Sprintf(format, args...)}
}

func persistenceError(err error) *Error {
	return &Error{Kind: KindPersistence, Message: MsgPersistenceFailed, Err: err}
}

func generationError(err error) *Error {
	return &Error{Kind: KindGeneration, Message: MsgGenerationFailed, Err: err}
}

func identityError() *Error {
	return &Error{Kind: KindIdentity, Message: MsgSignIn}
}

func busyError() *Error {
	return &Error{Kind: KindBusy, Message: MsgBusy}
}
