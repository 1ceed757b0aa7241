package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/Caia-Tech/caia-scribe/internal/history"
	"github.com/Caia-Tech/caia-scribe/internal/metrics"
	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecognizer struct {
	mu      sync.Mutex
	results []recognition.Result
	errs    []error
	calls   int
	images  [][]byte
	mode    string
}

func (s *stubRecognizer) Recognize(ctx context.Context, req recognition.Request) (recognition.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.images = append(s.images, req.Image)
	if i < len(s.errs) && s.errs[i] != nil {
		return recognition.Result{}, s.errs[i]
	}
	result := s.results[i]
	result.RequestID = req.ID
	return result, nil
}

func (s *stubRecognizer) Mode() string {
	if s.mode == "" {
		return "dual"
	}
	return s.mode
}

func (s *stubRecognizer) Availability() recognition.Availability {
	return recognition.Availability{BaselineLoaded: true, LearnedLoaded: s.Mode() == "dual"}
}

func newTestApp(recognizer Recognizer) (*fiber.App, *history.Store) {
	store := history.NewStore()
	m := metrics.NewMetrics()
	h := NewHandlers(recognizer, store, m, HandlerConfig{MaxUploadSize: 1024})
	return NewApp(h, m, ServerConfig{}), store
}

func uploadRequest(t *testing.T, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/recognize", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRecognizeAddsHistory(t *testing.T) {
	recognizer := &stubRecognizer{results: []recognition.Result{
		{Text: "Hello World", Provenance: recognition.ProvenanceCombined, Confidence: 1},
		{Text: "Second", Provenance: recognition.ProvenanceBaseline, Confidence: 1},
	}}
	app, store := newTestApp(recognizer)

	resp, err := app.Test(uploadRequest(t, "note.png", "image/png", []byte("png-bytes")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var first RecognizeResponse
	decodeJSON(t, resp, &first)
	assert.Equal(t, "Hello World", first.Text)
	assert.Equal(t, recognition.ProvenanceCombined, first.Provenance)
	assert.Equal(t, "note.png", first.Filename)
	assert.Equal(t, "dual", first.Mode)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, []byte("png-bytes"), recognizer.images[0])

	// content type guessed from the extension
	resp, err = app.Test(uploadRequest(t, "scan.jpg", "application/octet-stream", []byte("jpg")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	entries := store.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "Second", entries[0].Text)
	assert.Equal(t, "Hello World", entries[1].Text)
	assert.Equal(t, first.ID, entries[1].ID)
}

func TestRecognizeValidation(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		expected int
	}{
		{
			name:     "not an image",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "notes.txt", "text/plain", []byte("hi")) },
			expected: fiber.StatusUnsupportedMediaType,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "big.png", "image/png", bytes.Repeat([]byte{1}, 2048))
			},
			expected: fiber.StatusRequestEntityTooLarge,
		},
		{
			name: "body over the app limit",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "huge.png", "image/png", bytes.Repeat([]byte{1}, 2*bodyOverhead))
			},
			expected: fiber.StatusRequestEntityTooLarge,
		},
		{
			name: "no file",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest("POST", "/api/v1/recognize", nil)
			},
			expected: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recognizer := &stubRecognizer{}
			app, store := newTestApp(recognizer)

			resp, err := app.Test(tt.req(t))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp.StatusCode)
			assert.Equal(t, 0, recognizer.calls)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestRecognizeFailureAddsNoHistory(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{
			name:      "baseline engine failed",
			err:       &recognition.RecognitionError{Engine: recognition.EngineBaseline, Err: errors.New("crash")},
			status:    fiber.StatusBadGateway,
			retryable: true,
		},
		{
			name:      "unexpected error",
			err:       errors.New("context canceled"),
			status:    fiber.StatusInternalServerError,
			retryable: false,
		},
		{
			name:      "not ready",
			err:       recognition.ErrEngineNotReady,
			status:    fiber.StatusServiceUnavailable,
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recognizer := &stubRecognizer{errs: []error{tt.err}}
			app, store := newTestApp(recognizer)

			resp, err := app.Test(uploadRequest(t, "note.png", "image/png", []byte("x")))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]any
			decodeJSON(t, resp, &body)
			assert.Equal(t, tt.retryable, body["retryable"])
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestHistoryEndpoints(t *testing.T) {
	recognizer := &stubRecognizer{}
	app, store := newTestApp(recognizer)

	longText := strings.Repeat("abcdefghij", 4)
	older := store.Add(recognition.Result{Text: longText, Provenance: recognition.ProvenanceBaseline}, "a.png")
	newer := store.Add(recognition.Result{Text: "newer", Provenance: recognition.ProvenanceCombined}, "b.png")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/history", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list struct {
		Entries []HistoryItem `json:"entries"`
		Total   int           `json:"total"`
	}
	decodeJSON(t, resp, &list)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, newer.ID, list.Entries[0].ID)
	assert.Equal(t, "newer", list.Entries[0].Preview)
	assert.Equal(t, older.ID, list.Entries[1].ID)
	assert.Equal(t, longText[:PreviewLength]+"...", list.Entries[1].Preview)
	assert.Equal(t, longText, list.Entries[1].Text)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/history/"+older.ID, nil))
	require.NoError(t, err)
	var entry history.Entry
	decodeJSON(t, resp, &entry)
	assert.Equal(t, longText, entry.Text)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/history/"+newer.ID+"/download", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), DownloadFilename)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "newer", string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/history/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestExport(t *testing.T) {
	app, _ := newTestApp(&stubRecognizer{})

	req := httptest.NewRequest("POST", "/api/v1/export", strings.NewReader(`{"text":"edited text\nsecond line"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="ocr-result.txt"`)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "edited text\nsecond line", string(body))
}

func TestHealthAndStatus(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		app, _ := newTestApp(&stubRecognizer{mode: "baseline_only"})

		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var health map[string]any
		decodeJSON(t, resp, &health)
		assert.Equal(t, "healthy", health["status"])
		assert.Equal(t, "baseline_only", health["mode"])

		resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/status", nil))
		require.NoError(t, err)
		var status map[string]any
		decodeJSON(t, resp, &status)
		assert.Equal(t, "baseline_only", status["mode"])
		assert.Equal(t, float64(0), status["history_count"])
	})

	t.Run("failed", func(t *testing.T) {
		app, _ := newTestApp(&stubRecognizer{mode: "failed"})

		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestMetricsRoute(t *testing.T) {
	app, _ := newTestApp(&stubRecognizer{})

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
