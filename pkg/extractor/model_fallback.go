//go:build !onnx
// +build !onnx

package extractor

import (
	"context"

	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
)

// ModelOptions configures how the handwriting model is run
type ModelOptions struct {
	SharedLibraryPath string
	InputName         string
	OutputName        string
}

// ONNXModelLoader stands in for the onnxruntime loader when the service is
// built without the onnx tag. Loading always fails, so the coordinator runs
// with the baseline engine only.
type ONNXModelLoader struct{}

// NewONNXModelLoader creates the fallback loader
func NewONNXModelLoader(options ModelOptions) *ONNXModelLoader {
	return &ONNXModelLoader{}
}

// LoadModel returns an error indicating the learned model is not available
func (l *ONNXModelLoader) LoadModel(ctx context.Context, artifactPath string) (recognition.Model, error) {
	return nil, &ProcessingError{
		Engine:  "onnx",
		Message: "handwriting model support requires onnxruntime and a binary built with -tags onnx",
	}
}
