package recognition

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineNotReady is returned by Recognize before a successful Init
	ErrEngineNotReady = errors.New("recognition engine not ready")

	// ErrAlreadyInitialized is returned by a second call to Init
	ErrAlreadyInitialized = errors.New("recognition coordinator already initialized")

	// ErrBaselineInit wraps a fatal baseline engine initialization failure
	ErrBaselineInit = errors.New("baseline engine initialization failed")

	// ErrClosed is returned once the coordinator has been torn down
	ErrClosed = errors.New("recognition coordinator closed")

	// ErrImageTooLarge rejects images whose decoded size exceeds the pixel budget
	ErrImageTooLarge = errors.New("image too large")

	// ErrEngineSkipped marks an engine that was not attempted for a request
	ErrEngineSkipped = errors.New("engine not attempted")
)

// RecognitionError is a per-request engine failure
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s engine recognition failed: %v", e.Engine, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may resubmit the same image.
// Nothing is retried automatically.
func (e *RecognitionError) Retryable() bool {
	return true
}
