package recognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Caia-Tech/caia-scribe/pkg/logging"
	"github.com/rs/zerolog"
)

// Config holds coordinator settings
type Config struct {
	Language  string // baseline engine language, e.g. "eng"
	ModelPath string // learned model artifact
	InputSize int    // square edge of the learned model input
	Alphabet  string // learned model character table
	MaxPixels int    // largest image the learned model decodes
}

// DefaultConfig returns the settings the bundled model was trained with
func DefaultConfig() Config {
	return Config{
		Language:  "eng",
		ModelPath: "models/handwriting_model.onnx",
		InputSize: DefaultInputSize,
		Alphabet:  DefaultAlphabet,
		MaxPixels: DefaultMaxPixels,
	}
}

// Observer receives recognition telemetry
type Observer interface {
	ObserveRecognition(provenance Provenance, duration time.Duration)
	ObserveEngineFailure(engine string)
	ObserveAvailability(availability Availability)
}

type nopObserver struct{}

func (nopObserver) ObserveRecognition(Provenance, time.Duration) {}
func (nopObserver) ObserveEngineFailure(string)                  {}
func (nopObserver) ObserveAvailability(Availability)             {}

// Option customizes a Coordinator
type Option func(*Coordinator)

// WithObserver attaches a telemetry observer
func WithObserver(observer Observer) Option {
	return func(c *Coordinator) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// Coordinator owns both engines and produces one result per request.
//
// Lifecycle: Uninitialized -> Initializing -> Ready (baseline only or dual),
// or Failed when the baseline engine cannot start. There is no way back; a
// learned model that failed to load stays unavailable until the process
// restarts. Availability is written once by Init and only read afterwards,
// so concurrent Recognize calls share nothing else.
type Coordinator struct {
	baseline Baseline
	loader   ModelLoader
	config   Config
	observer Observer
	logger   zerolog.Logger

	mu           sync.RWMutex
	state        State
	availability Availability
	model        Model

	inflight sync.WaitGroup
}

// NewCoordinator creates a coordinator. loader may be nil to run the
// baseline engine alone.
func NewCoordinator(baseline Baseline, loader ModelLoader, config Config, opts ...Option) *Coordinator {
	defaults := DefaultConfig()
	if config.Language == "" {
		config.Language = defaults.Language
	}
	if config.InputSize == 0 {
		config.InputSize = defaults.InputSize
	}
	if config.Alphabet == "" {
		config.Alphabet = defaults.Alphabet
	}
	if config.MaxPixels == 0 {
		config.MaxPixels = defaults.MaxPixels
	}

	c := &Coordinator{
		baseline: baseline,
		loader:   loader,
		config:   config,
		observer: nopObserver{},
		logger:   logging.GetLogger("recognition"),
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init starts both engines. It must be called exactly once. A baseline
// failure is returned and leaves the coordinator unusable; a learned model
// failure is only logged and the coordinator runs baseline only.
func (c *Coordinator) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.state = StateInitializing
	c.mu.Unlock()

	start := time.Now()
	var availability Availability

	if err := c.baseline.Initialize(ctx, c.config.Language); err != nil {
		availability.BaselineFailed = true
		c.logger.Error().
			Err(err).
			Str("language", c.config.Language).
			Msg("Baseline engine failed to initialize")

		if termErr := c.baseline.Terminate(); termErr != nil {
			c.logger.Debug().Err(termErr).Msg("Baseline engine terminate after failed init")
		}

		c.mu.Lock()
		if c.state != StateClosed {
			c.state = StateFailed
		}
		c.availability = availability
		c.mu.Unlock()

		c.observer.ObserveAvailability(availability)
		return fmt.Errorf("%w: %w", ErrBaselineInit, err)
	}
	availability.BaselineLoaded = true

	var model Model
	if c.loader != nil {
		m, err := c.loader.LoadModel(ctx, c.config.ModelPath)
		if err != nil {
			availability.LearnedFailed = true
			c.logger.Warn().
				Err(err).
				Str("model_path", c.config.ModelPath).
				Msg("Learned model unavailable, continuing with baseline engine only")
		} else {
			model = m
			availability.LearnedLoaded = true
		}
	}

	c.mu.Lock()
	if c.state == StateClosed {
		// torn down while we were starting
		c.mu.Unlock()
		return errors.Join(ErrClosed, c.release(model, true))
	}
	c.model = model
	c.availability = availability
	if model != nil {
		c.state = StateReadyDual
	} else {
		c.state = StateReadyBaselineOnly
	}
	state := c.state
	c.mu.Unlock()

	c.observer.ObserveAvailability(availability)
	c.logger.Info().
		Str("state", state.String()).
		Bool("learned_loaded", availability.LearnedLoaded).
		Dur("duration", time.Since(start)).
		Msg("Recognition coordinator ready")

	return nil
}

// Recognize runs the baseline engine, then the learned model when it is
// available, and combines the two. Only a baseline failure or a coordinator
// that is not ready is reported as an error; learned model failures are
// logged and the baseline text is returned.
func (c *Coordinator) Recognize(ctx context.Context, req Request) (Result, error) {
	model, err := c.acquire()
	if err != nil {
		return Result{}, err
	}
	defer c.inflight.Done()

	start := time.Now()
	logger := logging.GetRecognitionLogger(req.ID, req.MediaType)

	text, err := c.baseline.Recognize(ctx, req.Image)
	if err != nil {
		c.observer.ObserveEngineFailure(EngineBaseline)
		logger.Error().Err(err).Msg("Baseline engine failed")
		return Result{}, &RecognitionError{Engine: EngineBaseline, Err: err}
	}
	baseline := Succeeded(text)

	learned := Skipped()
	if model != nil {
		learned = c.runLearned(ctx, model, req)
		if !learned.OK() {
			c.observer.ObserveEngineFailure(EngineLearned)
			logger.Warn().Err(learned.Err).Msg("Learned model failed, using baseline text")
		}
	}

	final, provenance, err := Combine(baseline, learned)
	if err != nil {
		return Result{}, err
	}

	duration := time.Since(start)
	c.observer.ObserveRecognition(provenance, duration)
	logger.Debug().
		Str("provenance", string(provenance)).
		Int("baseline_length", len(baseline.Text)).
		Int("learned_length", len(learned.Text)).
		Dur("duration", duration).
		Msg("Recognition complete")

	return Result{
		RequestID:  req.ID,
		Text:       final,
		Provenance: provenance,
		Confidence: PlaceholderConfidence,
	}, nil
}

// runLearned converts a learned model failure, including a panic inside the
// model binding, into a failed outcome. The input tensor is released before
// returning on every path.
func (c *Coordinator) runLearned(ctx context.Context, model Model, req Request) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Errorf("learned model panicked: %v", r))
		}
	}()

	tensor, err := Preprocess(req.Image, c.config.InputSize, c.config.MaxPixels)
	if err != nil {
		return Failed(err)
	}
	defer tensor.Release()

	if tm, ok := model.(TextModel); ok {
		text, err := tm.PredictText(ctx, tensor)
		if err != nil {
			return Failed(err)
		}
		return Succeeded(text)
	}

	output, err := model.Predict(ctx, tensor)
	if err != nil {
		return Failed(err)
	}
	return Succeeded(DecodeOutput(output, c.config.Alphabet))
}

// acquire registers an in-flight request and returns the learned model, if any
func (c *Coordinator) acquire() (Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.state == StateClosed:
		return nil, ErrClosed
	case !c.state.Ready():
		return nil, ErrEngineNotReady
	}

	c.inflight.Add(1)
	return c.model, nil
}

// State returns the lifecycle state
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Availability returns which engines started
func (c *Coordinator) Availability() Availability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.availability
}

// Mode describes the active recognition mode for status reporting
func (c *Coordinator) Mode() string {
	switch state := c.State(); state {
	case StateReadyDual:
		return "dual"
	case StateReadyBaselineOnly:
		return "baseline_only"
	default:
		return state.String()
	}
}

// Close waits for in-flight requests and releases both engines. It is safe
// to call more than once and when the learned model never loaded.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	prev := c.state
	if prev == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	model := c.model
	c.model = nil
	c.mu.Unlock()

	c.inflight.Wait()

	// Init finishes its own cleanup when closed mid start
	if prev == StateInitializing {
		return nil
	}

	err := c.release(model, prev.Ready())
	c.logger.Info().Str("previous_state", prev.String()).Msg("Recognition coordinator closed")
	return err
}

func (c *Coordinator) release(model Model, terminateBaseline bool) error {
	var errs []error
	if model != nil {
		if err := model.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose learned model: %w", err))
		}
	}
	if terminateBaseline {
		if err := c.baseline.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("terminate baseline engine: %w", err))
		}
	}
	return errors.Join(errs...)
}
