package recognition

import "context"

// Baseline is the general purpose OCR engine. It is mandatory: the
// coordinator cannot serve requests without it.
type Baseline interface {
	Initialize(ctx context.Context, language string) error
	Recognize(ctx context.Context, image []byte) (string, error)
	Terminate() error
}

// ModelLoader loads the learned model artifact
type ModelLoader interface {
	LoadModel(ctx context.Context, artifactPath string) (Model, error)
}

// Model is a loaded learned model. Predict returns the raw per-position
// character scores, which are decoded with DecodeOutput.
type Model interface {
	Predict(ctx context.Context, input *Tensor) ([]float32, error)
	Dispose() error
}

// TextModel is implemented by models that decode their own output
type TextModel interface {
	PredictText(ctx context.Context, input *Tensor) (string, error)
}
