// Package fault classifies errors raised inside the poll loop.
//
// A Recoverable error abandons the current tick and the loop carries on with
// its cached payload. A Fatal error stops the loop and ends the process.
package fault

import (
	"errors"
	"fmt"
)

// Severity is the tier an error belongs to.
type Severity int

const (
	SeverityRecoverable Severity = iota + 1
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityRecoverable:
		return "recoverable"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its severity.
type Error struct {
	Severity Severity
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Severity.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Recoverable marks err as recoverable. nil stays nil.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Severity: SeverityRecoverable, Err: err}
}

// Fatal marks err as fatal. nil stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Severity: SeverityFatal, Err: err}
}

// Recoverablef is fmt.Errorf followed by Recoverable.
func Recoverablef(format string, args ...any) error {
	return Recoverable(fmt.Errorf(format, args...))
}

// Fatalf is fmt.Errorf followed by Fatal.
func Fatalf(format string, args ...any) error {
	return Fatal(fmt.Errorf(format, args...))
}

// SeverityOf returns the outermost severity attached to err, or 0 when err
// carries none.
func SeverityOf(err error) Severity {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Severity
	}
	return 0
}

// IsFatal reports whether err was marked Fatal.
func IsFatal(err error) bool {
	return SeverityOf(err) == SeverityFatal
}

// IsRecoverable reports whether err was marked Recoverable.
func IsRecoverable(err error) bool {
	return SeverityOf(err) == SeverityRecoverable
}
