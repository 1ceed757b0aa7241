// Package extractor adapts the OCR engines to the recognition contracts:
// Tesseract as the baseline engine and an ONNX handwriting model as the
// learned engine. Both are behind build tags with fallbacks so the service
// still builds on hosts without the native libraries.
package extractor

import (
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// imageTypes maps file extensions to the image media types we accept
var imageTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// SupportedExtensions lists accepted file extensions in sorted order
func SupportedExtensions() []string {
	exts := make([]string, 0, len(imageTypes))
	for ext := range imageTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupportedImage reports whether mediaType names an image format the
// engines can decode. Parameters such as charset are ignored.
func IsSupportedImage(mediaType string) bool {
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	for _, known := range imageTypes {
		if base == known {
			return true
		}
	}
	return false
}

// MediaTypeFromFilename guesses the media type from a file extension,
// returning "" for unknown extensions.
func MediaTypeFromFilename(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return imageTypes[ext]
}
