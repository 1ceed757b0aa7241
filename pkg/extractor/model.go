//go:build onnx
// +build onnx

package extractor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Caia-Tech/caia-scribe/pkg/logging"
	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// ModelOptions configures how the handwriting model is run
type ModelOptions struct {
	SharedLibraryPath string // onnxruntime shared library, empty for the platform default
	InputName         string // empty selects the model's first input
	OutputName        string // empty selects the model's first output
}

// ONNXModelLoader loads handwriting models with onnxruntime
type ONNXModelLoader struct {
	options ModelOptions
	logger  zerolog.Logger
}

// NewONNXModelLoader creates a loader
func NewONNXModelLoader(options ModelOptions) *ONNXModelLoader {
	return &ONNXModelLoader{
		options: options,
		logger:  logging.GetEngineLogger("onnx"),
	}
}

var environmentMu sync.Mutex

// LoadModel opens the artifact and prepares a session for it
func (l *ONNXModelLoader) LoadModel(ctx context.Context, artifactPath string) (recognition.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(artifactPath); err != nil {
		return nil, &ProcessingError{Engine: "onnx", Message: fmt.Sprintf("model artifact %s not readable", artifactPath), Err: err}
	}

	environmentMu.Lock()
	ownsEnvironment := false
	if !ort.IsInitialized() {
		if l.options.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(l.options.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			environmentMu.Unlock()
			return nil, &ProcessingError{Engine: "onnx", Message: "failed to initialize onnxruntime", Err: err}
		}
		ownsEnvironment = true
	}
	environmentMu.Unlock()

	model, err := l.openSession(artifactPath)
	if err != nil {
		if ownsEnvironment {
			destroyEnvironment()
		}
		return nil, err
	}
	model.ownsEnvironment = ownsEnvironment

	l.logger.Info().
		Str("model_path", artifactPath).
		Str("input", model.inputName).
		Str("output", model.outputName).
		Str("output_shape", model.outputShape.String()).
		Msg("Handwriting model loaded")

	return model, nil
}

func (l *ONNXModelLoader) openSession(artifactPath string) (*ONNXModel, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(artifactPath)
	if err != nil {
		return nil, &ProcessingError{Engine: "onnx", Message: "incompatible model artifact", Err: err}
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, &ProcessingError{Engine: "onnx", Message: "model artifact declares no inputs or outputs"}
	}

	inputName := l.options.InputName
	if inputName == "" {
		inputName = inputs[0].Name
	}

	outputName := l.options.OutputName
	var outputShape ort.Shape
	found := false
	for _, info := range outputs {
		if outputName == "" || info.Name == outputName {
			outputName = info.Name
			outputShape = info.Dimensions
			found = true
			break
		}
	}
	if !found {
		return nil, &ProcessingError{Engine: "onnx", Message: fmt.Sprintf("model has no output named %q", outputName)}
	}

	session, err := ort.NewDynamicAdvancedSession(artifactPath, []string{inputName}, []string{outputName}, nil)
	if err != nil {
		return nil, &ProcessingError{Engine: "onnx", Message: "failed to create inference session", Err: err}
	}

	return &ONNXModel{
		session:     session,
		inputName:   inputName,
		outputName:  outputName,
		outputShape: outputShape,
	}, nil
}

// ONNXModel is a loaded handwriting model
type ONNXModel struct {
	session         *ort.DynamicAdvancedSession
	inputName       string
	outputName      string
	outputShape     ort.Shape // as declared, dynamic dimensions are negative
	ownsEnvironment bool

	mu       sync.RWMutex
	disposed bool
}

// Predict runs the model on one preprocessed image and returns the raw
// output scores. The onnxruntime tensors live only for this call.
func (m *ONNXModel) Predict(ctx context.Context, input *recognition.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disposed {
		return nil, &ProcessingError{Engine: "onnx", Message: "model disposed"}
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, &ProcessingError{Engine: "onnx", Message: "failed to create input tensor", Err: err}
	}
	defer inputTensor.Destroy()

	// onnxruntime allocates the output, so variable length outputs work
	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, &ProcessingError{Engine: "onnx", Message: "inference failed", Err: err}
	}
	if outputs[0] == nil {
		return nil, &ProcessingError{Engine: "onnx", Message: "inference produced no output"}
	}
	defer outputs[0].Destroy()

	return copyScores(outputs[0])
}

// copyScores copies a float32 output out of onnxruntime owned memory
func copyScores(value ort.Value) ([]float32, error) {
	tensor, ok := value.(*ort.Tensor[float32])
	if !ok {
		return nil, &ProcessingError{Engine: "onnx", Message: fmt.Sprintf("unsupported model output type %T", value)}
	}
	raw := tensor.GetData()
	output := make([]float32, len(raw))
	copy(output, raw)
	return output, nil
}

// Dispose destroys the session and, if this model started it, the
// onnxruntime environment.
func (m *ONNXModel) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil
	}
	m.disposed = true

	err := m.session.Destroy()
	if m.ownsEnvironment {
		destroyEnvironment()
	}
	return err
}

func destroyEnvironment() {
	environmentMu.Lock()
	defer environmentMu.Unlock()
	if ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}
