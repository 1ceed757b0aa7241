// Package recognition coordinates the baseline OCR engine and the optional
// learned handwriting model and combines their outputs into one result.
package recognition

import (
	"github.com/google/uuid"
)

// Provenance records which engines contributed to a result
type Provenance string

const (
	ProvenanceBaseline Provenance = "baseline"
	ProvenanceLearned  Provenance = "learned"
	ProvenanceCombined Provenance = "combined"
)

// PlaceholderConfidence is reported with every result. Neither engine
// produces a calibrated probability, so this is a constant and must not be
// read as one.
const PlaceholderConfidence = 1.0

// Engine names used in logs, metrics and errors
const (
	EngineBaseline = "baseline"
	EngineLearned  = "learned"
)

// Request is one image submitted for recognition
type Request struct {
	ID        string
	Image     []byte
	MediaType string
}

// NewRequest copies the image so later mutation by the caller cannot leak
// into an in-flight recognition.
func NewRequest(image []byte, mediaType string) Request {
	buf := make([]byte, len(image))
	copy(buf, image)
	return Request{
		ID:        uuid.New().String(),
		Image:     buf,
		MediaType: mediaType,
	}
}

// Result is the text produced for a single request
type Result struct {
	RequestID  string     `json:"request_id"`
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
	Confidence float64    `json:"confidence"`
}

// Availability reports which engines came up during initialization
type Availability struct {
	BaselineLoaded bool `json:"baseline_loaded"`
	BaselineFailed bool `json:"baseline_failed"`
	LearnedLoaded  bool `json:"learned_loaded"`
	LearnedFailed  bool `json:"learned_failed"`
}

// State is the coordinator lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReadyBaselineOnly
	StateReadyDual
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReadyBaselineOnly:
		return "ready_baseline_only"
	case StateReadyDual:
		return "ready_dual"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Ready reports whether Recognize can be served in this state
func (s State) Ready() bool {
	return s == StateReadyBaselineOnly || s == StateReadyDual
}
