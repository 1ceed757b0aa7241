//go:build ocr
// +build ocr

package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/Caia-Tech/caia-scribe/pkg/logging"
	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
)

// TesseractEngine is the baseline engine backed by Tesseract
type TesseractEngine struct {
	PageSegmentationMode gosseract.PageSegMode

	mu     sync.Mutex
	client *gosseract.Client
	logger zerolog.Logger
}

// NewTesseractEngine creates a Tesseract engine. psm is a Tesseract page
// segmentation mode; zero selects automatic segmentation.
func NewTesseractEngine(psm int) *TesseractEngine {
	mode := gosseract.PageSegMode(psm)
	if psm == 0 {
		mode = gosseract.PSM_AUTO
	}
	return &TesseractEngine{
		PageSegmentationMode: mode,
		logger:               logging.GetEngineLogger("tesseract"),
	}
}

// Initialize creates the Tesseract client and runs it once on a blank
// page, so missing language data fails here instead of on the first
// request.
func (t *TesseractEngine) Initialize(ctx context.Context, language string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return nil
	}

	client := gosseract.NewClient()

	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return &ProcessingError{
			Engine:  "tesseract",
			Message: fmt.Sprintf("failed to set OCR language '%s'", language),
			Err:     err,
		}
	}

	if err := client.SetPageSegMode(t.PageSegmentationMode); err != nil {
		client.Close()
		return &ProcessingError{Engine: "tesseract", Message: "failed to set page segmentation mode", Err: err}
	}

	if err := client.SetImageFromBytes(blankPage()); err != nil {
		client.Close()
		return &ProcessingError{Engine: "tesseract", Message: "failed to load warm-up image", Err: err}
	}
	if _, err := client.Text(); err != nil {
		client.Close()
		return &ProcessingError{Engine: "tesseract", Message: "tesseract failed to start", Err: err}
	}

	t.client = client
	t.logger.Info().
		Str("language", language).
		Str("version", client.Version()).
		Msg("Tesseract engine initialized")

	return nil
}

// Recognize extracts text from an image. The Tesseract client is not safe
// for concurrent use, so calls are serialized.
func (t *TesseractEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", &ProcessingError{Engine: "tesseract", Message: "no image content provided for OCR"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return "", &ProcessingError{Engine: "tesseract", Message: "tesseract engine not initialized"}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := t.client.SetImageFromBytes(image); err != nil {
		return "", &ProcessingError{Engine: "tesseract", Message: "failed to set OCR image data", Err: err}
	}

	text, err := t.client.Text()
	if err != nil {
		return "", &ProcessingError{Engine: "tesseract", Message: "OCR text extraction failed", Err: err}
	}

	return normalizeText(text), nil
}

// Terminate releases the Tesseract client
func (t *TesseractEngine) Terminate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// blankPage is a small white PNG used to warm up the engine
func blankPage() []byte {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func normalizeText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
