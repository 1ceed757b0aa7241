//go:build !ocr
// +build !ocr

package extractor

import (
	"context"
)

// TesseractEngine stands in for the Tesseract engine when the service is
// built without the ocr tag. Initialize always fails, which leaves the
// coordinator unusable.
type TesseractEngine struct{}

// NewTesseractEngine creates the fallback engine
func NewTesseractEngine(psm int) *TesseractEngine {
	return &TesseractEngine{}
}

// Initialize returns an error indicating OCR is not available
func (t *TesseractEngine) Initialize(ctx context.Context, language string) error {
	return &ProcessingError{
		Engine:  "tesseract",
		Message: "OCR functionality requires Tesseract to be installed and the binary built with -tags ocr. Install with: brew install tesseract (macOS) or sudo apt install tesseract-ocr libtesseract-dev (Ubuntu)",
	}
}

// Recognize returns an error indicating OCR is not available
func (t *TesseractEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	return "", &ProcessingError{Engine: "tesseract", Message: "tesseract engine not available"}
}

// Terminate is a no-op
func (t *TesseractEngine) Terminate() error {
	return nil
}
