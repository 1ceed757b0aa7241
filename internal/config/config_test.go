package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	require.NoError(t, config.Validate())

	assert.Equal(t, int64(5*1024*1024), config.Server.MaxUploadSize)
	assert.Equal(t, "0.0.0.0:8080", config.Server.Addr())
	assert.Equal(t, recognition.DefaultAlphabet, config.Recognition.Alphabet)
	assert.Equal(t, recognition.DefaultInputSize, config.Recognition.InputSize)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scribe.yaml")
	content := `
server:
  port: 9090
  max_upload_size: 1048576
recognition:
  language: eng+fra
  model_path: /opt/models/hw.onnx
  request_timeout: 30s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("SCRIBE_RECOGNITION_INPUT_SIZE", "128")
	t.Setenv("SCRIBE_SERVER_HOST", "127.0.0.1")
	t.Setenv("SCRIBE_RECOGNITION_MAX_PIXELS", "1000000")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, int64(1048576), config.Server.MaxUploadSize)
	assert.Equal(t, "eng+fra", config.Recognition.Language)
	assert.Equal(t, "/opt/models/hw.onnx", config.Recognition.ModelPath)
	assert.Equal(t, 128, config.Recognition.InputSize)
	assert.Equal(t, 30*time.Second, config.Recognition.RequestTimeout)
	assert.Equal(t, "debug", config.Logging.Level)

	// untouched keys keep their defaults
	assert.Equal(t, recognition.DefaultAlphabet, config.Recognition.Alphabet)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)

	coordinator := config.Recognition.CoordinatorConfig()
	assert.Equal(t, "eng+fra", coordinator.Language)
	assert.Equal(t, 128, coordinator.InputSize)
	assert.Equal(t, 1000000, coordinator.MaxPixels)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server port")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"empty language", func(c *Config) { c.Recognition.Language = "" }, "language"},
		{"zero input size", func(c *Config) { c.Recognition.InputSize = 0 }, "input_size"},
		{"zero pixel budget", func(c *Config) { c.Recognition.MaxPixels = 0 }, "max_pixels"},
		{"empty alphabet", func(c *Config) { c.Recognition.Alphabet = "" }, "alphabet"},
		{"missing model path", func(c *Config) { c.Recognition.ModelPath = "" }, "model_path"},
		{"bad page seg mode", func(c *Config) { c.Recognition.PageSegMode = 14 }, "page_seg_mode"},
		{"zero upload size", func(c *Config) { c.Server.MaxUploadSize = 0 }, "max_upload_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("model path optional when disabled", func(t *testing.T) {
		config := Default()
		config.Recognition.ModelPath = ""
		config.Recognition.DisableModel = true
		assert.NoError(t, config.Validate())
	})
}

func TestDevelopment(t *testing.T) {
	config := Default().Development()
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "pretty", config.Logging.Format)
}
