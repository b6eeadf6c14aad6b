package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrUnreadableInput     = errors.New("unreadable input")
	ErrHeaderShapeMismatch = errors.New("header shape mismatch")
)

type ErrorKind string

const (
	KindUnreadableInput     ErrorKind = "UnreadableInput"
	KindHeaderShapeMismatch ErrorKind = "HeaderShapeMismatch"
)

// ProcessingError is the only failure surfaced by a run. A caller that gets
// one must report the run as failed, never as "no pending records".
type ProcessingError struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *ProcessingError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func (e *ProcessingError) Is(target error) bool {
	switch target {
	case ErrUnreadableInput:
		return e.Kind == KindUnreadableInput
	case ErrHeaderShapeMismatch:
		return e.Kind == KindHeaderShapeMismatch
	}
	return false
}

func unreadable(source string, err error) error {
	return &ProcessingError{Kind: KindUnreadableInput, Source: source, Err: err}
}

func headerMismatch(source string, err error) error {
	return &ProcessingError{Kind: KindHeaderShapeMismatch, Source: source, Err: err}
}

// KindOf returns the failure kind of err, or "" when err is not a processing error.
func KindOf(err error) ErrorKind {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
