package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Caia-Tech/caia-scribe/pkg/extractor"
	"github.com/Caia-Tech/caia-scribe/pkg/logging"
	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the complete service configuration
type Config struct {
	Logging     *logging.LogConfig `mapstructure:"logging"`
	Server      *ServerConfig      `mapstructure:"server"`
	Recognition *RecognitionConfig `mapstructure:"recognition"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"` // bytes
	CORSOrigins   string        `mapstructure:"cors_origins"`
}

// RecognitionConfig holds engine settings
type RecognitionConfig struct {
	Language       string        `mapstructure:"language"`      // tesseract language, e.g. "eng" or "eng+fra"
	PageSegMode    int           `mapstructure:"page_seg_mode"` // tesseract page segmentation mode, 0 = auto
	ModelPath      string        `mapstructure:"model_path"`    // handwriting model artifact
	DisableModel   bool          `mapstructure:"disable_model"` // run the baseline engine alone
	InputSize      int           `mapstructure:"input_size"`    // square model input edge
	MaxPixels      int           `mapstructure:"max_pixels"`    // largest image the model decodes
	Alphabet       string        `mapstructure:"alphabet"`      // model character table
	OnnxLibrary    string        `mapstructure:"onnx_library"`  // onnxruntime shared library path
	ModelInput     string        `mapstructure:"model_input"`   // model input name, empty = first
	ModelOutput    string        `mapstructure:"model_output"`  // model output name, empty = first
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CoordinatorConfig converts the settings for the recognition coordinator
func (r *RecognitionConfig) CoordinatorConfig() recognition.Config {
	return recognition.Config{
		Language:  r.Language,
		ModelPath: r.ModelPath,
		InputSize: r.InputSize,
		Alphabet:  r.Alphabet,
		MaxPixels: r.MaxPixels,
	}
}

// NewCoordinator builds the recognition coordinator with the Tesseract
// baseline and, unless disabled, the ONNX handwriting model
func (r *RecognitionConfig) NewCoordinator(opts ...recognition.Option) *recognition.Coordinator {
	baseline := extractor.NewTesseractEngine(r.PageSegMode)

	var loader recognition.ModelLoader
	if !r.DisableModel {
		loader = extractor.NewONNXModelLoader(extractor.ModelOptions{
			SharedLibraryPath: r.OnnxLibrary,
			InputName:         r.ModelInput,
			OutputName:        r.ModelOutput,
		})
	}

	return recognition.NewCoordinator(baseline, loader, r.CoordinatorConfig(), opts...)
}

// Load reads configuration from an optional file, .env and SCRIBE_*
// environment variables, in increasing order of precedence. An empty path
// searches the default locations.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scribe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/scribe")
	}

	setDefaults(v)

	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile() error {
	for _, location := range []string{".env", ".env.local"} {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			return nil
		}
	}
	return fmt.Errorf("no .env file found")
}

// Default returns the default configuration
func Default() *Config {
	defaults := recognition.DefaultConfig()
	return &Config{
		Logging: logging.DefaultLogConfig(),
		Server: &ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			MaxUploadSize: 5 * 1024 * 1024,
			CORSOrigins:   "*",
		},
		Recognition: &RecognitionConfig{
			Language:       defaults.Language,
			ModelPath:      defaults.ModelPath,
			InputSize:      defaults.InputSize,
			Alphabet:       defaults.Alphabet,
			MaxPixels:      defaults.MaxPixels,
			RequestTimeout: 2 * time.Minute,
		},
	}
}

// setDefaults registers every key so environment variables bind even when
// no config file mentions them
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_file", d.Logging.OutputFile)
	v.SetDefault("logging.console", d.Logging.Console)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_upload_size", d.Server.MaxUploadSize)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("recognition.language", d.Recognition.Language)
	v.SetDefault("recognition.page_seg_mode", d.Recognition.PageSegMode)
	v.SetDefault("recognition.model_path", d.Recognition.ModelPath)
	v.SetDefault("recognition.disable_model", d.Recognition.DisableModel)
	v.SetDefault("recognition.input_size", d.Recognition.InputSize)
	v.SetDefault("recognition.alphabet", d.Recognition.Alphabet)
	v.SetDefault("recognition.max_pixels", d.Recognition.MaxPixels)
	v.SetDefault("recognition.onnx_library", d.Recognition.OnnxLibrary)
	v.SetDefault("recognition.model_input", d.Recognition.ModelInput)
	v.SetDefault("recognition.model_output", d.Recognition.ModelOutput)
	v.SetDefault("recognition.request_timeout", d.Recognition.RequestTimeout)
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server max_upload_size must be positive")
	}
	if c.Recognition.Language == "" {
		return fmt.Errorf("recognition language is required")
	}
	if c.Recognition.InputSize <= 0 {
		return fmt.Errorf("recognition input_size must be positive, got %d", c.Recognition.InputSize)
	}
	if c.Recognition.MaxPixels <= 0 {
		return fmt.Errorf("recognition max_pixels must be positive, got %d", c.Recognition.MaxPixels)
	}
	if c.Recognition.Alphabet == "" {
		return fmt.Errorf("recognition alphabet cannot be empty")
	}
	if !c.Recognition.DisableModel && c.Recognition.ModelPath == "" {
		return fmt.Errorf("recognition model_path is required unless disable_model is set")
	}
	if c.Recognition.PageSegMode < 0 || c.Recognition.PageSegMode > 13 {
		return fmt.Errorf("recognition page_seg_mode must be between 0 and 13, got %d", c.Recognition.PageSegMode)
	}
	return nil
}

// Development adjusts the configuration for local development
func (c *Config) Development() *Config {
	c.Logging.Level = "debug"
	c.Logging.Format = "pretty"
	c.Logging.Console = true
	return c
}
