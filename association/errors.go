package association

import (
	"errors"
	"fmt"
)

var (
	// ErrACSETimeout is returned when no associate or release response came
	// within the ACSE timeout.
	ErrACSETimeout = errors.New("association: ACSE timeout")
	// ErrDIMSETimeout is returned when no DIMSE message came within the
	// DIMSE timeout.
	ErrDIMSETimeout = errors.New("association: DIMSE timeout")
	// ErrAborted matches every *AbortError.
	ErrAborted        = errors.New("association: aborted")
	ErrNotEstablished = errors.New("association: not established")
	// ErrNoContext is returned when no accepted presentation context fits.
	ErrNoContext = errors.New("association: no accepted presentation context")
)

// RejectedError is an A-ASSOCIATE-RJ received from the peer.
type RejectedError struct {
	Result byte
	Source byte
	Reason byte
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("association: rejected (result=%d source=%d reason=%d)", e.Result, e.Source, e.Reason)
}

// AbortError is an A-ABORT from the peer or an A-P-ABORT from the local
// provider. Err, when set, is the local cause, for example
// dul.ErrNetworkTimeout.
type AbortError struct {
	Source byte
	Reason byte
	Err    error
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("association: aborted (source=%d reason=%d): %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("association: aborted (source=%d reason=%d)", e.Source, e.Reason)
}

func (e *AbortError) Unwrap() error { return e.Err }

func (e *AbortError) Is(target error) bool { return target == ErrAborted }

// timeoutError is a timeout that aborted the association. It matches both
// the timeout sentinel and the abort.
type timeoutError struct {
	cause error
	abort error
}

func (e *timeoutError) Error() string {
	return e.cause.Error() + ": association aborted"
}

func (e *timeoutError) Unwrap() []error {
	if e.abort == nil {
		return []error{e.cause}
	}
	return []error{e.cause, e.abort}
}
