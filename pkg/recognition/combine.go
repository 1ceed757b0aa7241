package recognition

import "unicode/utf8"

// Outcome is the result of invoking one engine for one request
type Outcome struct {
	Text string
	Err  error
}

// Succeeded wraps text produced by an engine
func Succeeded(text string) Outcome {
	return Outcome{Text: text}
}

// Failed wraps an engine error
func Failed(err error) Outcome {
	return Outcome{Err: err}
}

// Skipped marks an engine that was unavailable for the request
func Skipped() Outcome {
	return Outcome{Err: ErrEngineSkipped}
}

// OK reports whether the engine produced usable text. An empty string from
// the learned model counts as no output.
func (o Outcome) OK() bool {
	return o.Err == nil
}

func (o Outcome) hasText() bool {
	return o.OK() && o.Text != ""
}

// Combine picks the final text from the two engine outcomes.
//
// When both engines produced text the longer one wins, measured in
// characters, and a tie keeps the baseline text. Longer is not necessarily
// more correct; the rule is kept as is so results stay comparable.
func Combine(baseline, learned Outcome) (string, Provenance, error) {
	switch {
	case baseline.OK() && learned.hasText():
		if utf8.RuneCountInString(learned.Text) > utf8.RuneCountInString(baseline.Text) {
			return learned.Text, ProvenanceCombined, nil
		}
		return baseline.Text, ProvenanceCombined, nil
	case baseline.OK():
		return baseline.Text, ProvenanceBaseline, nil
	default:
		// the baseline engine is mandatory, learned text alone is not a result
		return "", "", &RecognitionError{Engine: EngineBaseline, Err: baseline.Err}
	}
}
