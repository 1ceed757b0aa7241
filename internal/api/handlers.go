package api

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Caia-Tech/caia-scribe/internal/history"
	"github.com/Caia-Tech/caia-scribe/internal/metrics"
	"github.com/Caia-Tech/caia-scribe/pkg/extractor"
	"github.com/Caia-Tech/caia-scribe/pkg/logging"
	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// DownloadFilename is the name offered for plain-text downloads
const DownloadFilename = "ocr-result.txt"

// Recognizer is the recognition capability the handlers need
type Recognizer interface {
	Recognize(ctx context.Context, req recognition.Request) (recognition.Result, error)
	Mode() string
	Availability() recognition.Availability
}

// Handlers contains the HTTP handlers for the API
type Handlers struct {
	recognizer     Recognizer
	history        *history.Store
	metrics        *metrics.Metrics
	maxUploadSize  int64
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// HandlerConfig configures request limits
type HandlerConfig struct {
	MaxUploadSize  int64
	RequestTimeout time.Duration
}

// NewHandlers creates a new handlers instance. m may be nil.
func NewHandlers(recognizer Recognizer, store *history.Store, m *metrics.Metrics, config HandlerConfig) *Handlers {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = 5 * 1024 * 1024
	}
	return &Handlers{
		recognizer:     recognizer,
		history:        store,
		metrics:        m,
		maxUploadSize:  config.MaxUploadSize,
		requestTimeout: config.RequestTimeout,
		logger:         logging.GetLogger("api"),
	}
}

// Health returns the service health status and the active recognition mode
func (h *Handlers) Health(c *fiber.Ctx) error {
	mode := h.recognizer.Mode()
	status := "healthy"
	code := fiber.StatusOK
	if mode != "dual" && mode != "baseline_only" {
		status = "unavailable"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"service":   "caia-scribe",
		"version":   Version,
		"mode":      mode,
		"timestamp": time.Now().UTC(),
	})
}

// Status reports which engines are available
func (h *Handlers) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"mode":          h.recognizer.Mode(),
		"availability":  h.recognizer.Availability(),
		"history_count": h.history.Len(),
	})
}

// RecognizeResponse is returned for a successful recognition
type RecognizeResponse struct {
	ID         string                 `json:"id"`
	Text       string                 `json:"text"`
	Provenance recognition.Provenance `json:"provenance"`
	Confidence float64                `json:"confidence"`
	Filename   string                 `json:"filename"`
	Mode       string                 `json:"mode"`
}

// Recognize accepts an uploaded image and returns the recognized text
func (h *Handlers) Recognize(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Please select an image first",
			"details": err.Error(),
		})
	}

	if file.Size > h.maxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "Image size should be less than " + humanSize(h.maxUploadSize),
		})
	}

	mediaType := file.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = extractor.MediaTypeFromFilename(file.Filename)
	}
	if !extractor.IsSupportedImage(mediaType) {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error":     "Please upload an image file",
			"supported": strings.Join(extractor.SupportedExtensions(), ", "),
		})
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error().Err(err).Str("filename", file.Filename).Msg("Failed to open uploaded file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to process uploaded file",
			"details": err.Error(),
		})
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", file.Filename).Msg("Failed to read uploaded file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to read file content",
			"details": err.Error(),
		})
	}

	ctx := c.UserContext()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	req := recognition.NewRequest(content, mediaType)
	result, err := h.recognizer.Recognize(ctx, req)
	if err != nil {
		return h.recognitionFailed(c, req, err)
	}

	entry := h.history.Add(result, file.Filename)
	if h.metrics != nil {
		h.metrics.SetHistoryEntries(h.history.Len())
	}

	h.logger.Info().
		Str("request_id", req.ID).
		Str("history_id", entry.ID).
		Str("filename", file.Filename).
		Str("provenance", string(result.Provenance)).
		Int64("size", file.Size).
		Msg("Image recognized")

	return c.JSON(RecognizeResponse{
		ID:         entry.ID,
		Text:       result.Text,
		Provenance: result.Provenance,
		Confidence: result.Confidence,
		Filename:   file.Filename,
		Mode:       h.recognizer.Mode(),
	})
}

// recognitionFailed maps a recognition error to a response. Nothing is
// added to the history.
func (h *Handlers) recognitionFailed(c *fiber.Ctx, req recognition.Request, err error) error {
	switch {
	case errors.Is(err, recognition.ErrEngineNotReady), errors.Is(err, recognition.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "Recognition is unavailable. Some features may be limited.",
			"details":   err.Error(),
			"retryable": false,
		})
	}

	h.logger.Error().Err(err).Str("request_id", req.ID).Msg("Recognition failed")

	var recErr *recognition.RecognitionError
	if errors.As(err, &recErr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":     "Error processing image. Please try again.",
			"engine":    recErr.Engine,
			"details":   err.Error(),
			"retryable": recErr.Retryable(),
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":     "Error processing image. Please try again.",
		"details":   err.Error(),
		"retryable": false,
	})
}

// PreviewLength is how many characters of each entry the history list shows
const PreviewLength = 30

// HistoryItem is one row of the history list
type HistoryItem struct {
	history.Entry
	Preview string `json:"preview"`
}

// ListHistory returns past results, most recent first
func (h *Handlers) ListHistory(c *fiber.Ctx) error {
	entries := h.history.List()
	items := make([]HistoryItem, len(entries))
	for i, entry := range entries {
		items[i] = HistoryItem{Entry: entry, Preview: entry.Preview(PreviewLength)}
	}
	return c.JSON(fiber.Map{
		"entries": items,
		"total":   len(items),
	})
}

// GetHistoryEntry returns one past result so its text can be edited again
func (h *Handlers) GetHistoryEntry(c *fiber.Ctx) error {
	entry, err := h.history.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "History entry not found",
			"id":    c.Params("id"),
		})
	}
	return c.JSON(entry)
}

// DownloadHistoryEntry returns a past result as a plain-text file
func (h *Handlers) DownloadHistoryEntry(c *fiber.Ctx) error {
	entry, err := h.history.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "History entry not found",
			"id":    c.Params("id"),
		})
	}
	return sendText(c, entry.Text)
}

// ExportRequest carries text the user may have edited
type ExportRequest struct {
	Text string `json:"text" form:"text"`
}

// Export returns the submitted text as a plain-text download
func (h *Handlers) Export(c *fiber.Ctx) error {
	var req ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}
	return sendText(c, req.Text)
}

func sendText(c *fiber.Ctx, text string) error {
	c.Attachment(DownloadFilename)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return strconv.FormatInt(n/mb, 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
