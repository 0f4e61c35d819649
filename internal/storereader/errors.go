package storereader

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies reader errors by how they propagate.
type Kind int

const (
	KindUnknown Kind = iota
	// KindSerialization is a malformed key or value. The record's effect is
	// skipped and the loop continues.
	KindSerialization
	// KindStore is a failed store mutation or update handler call.
	KindStore
	// KindTimeout is a WaitUntil deadline that passed before the target
	// offset was applied.
	KindTimeout
	// KindConfiguration terminates the loop: oversized records, a topic
	// without exactly one partition, invalid options.
	KindConfiguration
	// KindFatal terminates the loop: unexpected stream errors and panics.
	KindFatal
	// KindInvalidArgument is a caller error, such as a negative wait target.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindSerialization:
		return "serialization"
	case KindStore:
		return "store"
	case KindTimeout:
		return "timeout"
	case KindConfiguration:
		return "configuration"
	case KindFatal:
		return "fatal"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "unknown"
	}
}

// Error is the error type returned by this package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return "storereader: " + e.Kind.String()
	case e.Op == "":
		return fmt.Sprintf("storereader: %s: %v", e.Kind, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("storereader: %s: %s", e.Op, e.Kind)
	default:
		return fmt.Sprintf("storereader: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrStore) holds
// for every *Error of KindStore.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrSerialization   = &Error{Kind: KindSerialization}
	ErrStore           = &Error{Kind: KindStore}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrFatal           = &Error{Kind: KindFatal}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
)

// KindOf returns the Kind of err, or KindUnknown if err did not come from
// this package.
func KindOf(err error) Kind {
	var te *TimeoutError
	if errors.As(err, &te) {
		return KindTimeout
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// TimeoutError is returned by WaitUntil when the target offset was not
// applied in time.
type TimeoutError struct {
	Target  int64
	Applied int64
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("storereader: failed to reach target offset within the timeout interval: target=%d applied=%d timeout=%s",
		e.Target, e.Applied, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
