package ife

import (
	"errors"
	"fmt"
)

// Flags is a bit-set describing the outcome of a validation pass.
//
// ValidationFailure includes the Failure bit so callers checking
// r.Flags&Failure catch both structural and general failures.
type Flags uint8

const (
	Success           Flags = 0
	WarningValidation Flags = 1 << 0
	Failure           Flags = 1 << 1
	ValidationFailure Flags = 1<<2 | Failure
)

func (f Flags) String() string {
	switch {
	case f&ValidationFailure == ValidationFailure:
		return "VALIDATION_FAILURE"
	case f&Failure != 0:
		return "FAILURE"
	case f&WarningValidation != 0:
		return "WARNING_VALIDATION"
	default:
		return "SUCCESS"
	}
}

// Result is the outcome of a validation function: a flag bit-set and a human
// readable message. Warnings are recoverable; failures propagate.
type Result struct {
	Flags   Flags
	Message string
}

// ErrValidation is the sentinel wrapped by every error derived from a failed
// Result.
var ErrValidation = errors.New("ife: validation failed")

func success() Result { return Result{} }

func failuref(format string, args ...any) Result {
	return Result{Flags: Failure, Message: fmt.Sprintf(format, args...)}
}

func validationFailuref(format string, args ...any) Result {
	return Result{Flags: ValidationFailure, Message: fmt.Sprintf(format, args...)}
}

func warningf(format string, args ...any) Result {
	return Result{Flags: WarningValidation, Message: fmt.Sprintf(format, args...)}
}

// Ok reports whether the result carries no failure bit. A warning result is
// still ok.
func (r Result) Ok() bool { return r.Flags&Failure == 0 }

// Failed reports whether any failure bit is set.
func (r Result) Failed() bool { return r.Flags&Failure != 0 }

// Warned reports whether the validation warning bit is set.
func (r Result) Warned() bool { return r.Flags&WarningValidation != 0 }

// Err converts a failed result into an error wrapping ErrValidation.
// Successful and warning results convert to nil.
func (r Result) Err() error {
	if r.Ok() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, r.Message)
}
