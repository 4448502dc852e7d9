// Package ocr recognizes text in images.
package ocr

import (
	"context"
	"errors"
)

// ErrOCRUnavailable is returned when no OCR provider is configured.
var ErrOCRUnavailable = errors.New("ocr unavailable")

// OCR extracts text from an encoded image.
type OCR interface {
	Recognize(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Disabled is the OCR used when no provider is configured.
type Disabled struct{}

// Recognize returns ErrOCRUnavailable.
func (Disabled) Recognize(context.Context, []byte, string) (string, error) {
	return "", ErrOCRUnavailable
}
