package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoOverlap means the requested box does not intersect the dataset.
var ErrNoOverlap = errors.New("requested area does not overlap the dataset")

// Kind classifies how a stage failure should be handled.
type Kind int

const (
	// KindRecoverable failures may succeed on retry (network, storage, a flaky tool).
	KindRecoverable Kind = iota
	// KindFatal failures will fail again with the same input.
	KindFatal
)

func (k Kind) String() string {
	if k == KindFatal {
		return "fatal"
	}
	return "recoverable"
}

// StageError records which stage failed and whether retrying can help.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Recoverable wraps err as a retryable failure of stage.
func Recoverable(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Kind: KindRecoverable, Err: err}
}

// Fatal wraps err as a non-retryable failure of stage.
func Fatal(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Kind: KindFatal, Err: err}
}

// IsFatal reports whether err carries a fatal StageError.
func IsFatal(err error) bool {
	var se *StageError
	return errors.As(err, &se) && se.Kind == KindFatal
}

// StageOf returns the name of the stage that produced err, or "".
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
