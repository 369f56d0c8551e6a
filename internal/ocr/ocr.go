// Package ocr turns images into text through a hosted recognition service.
package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/mode-relay-bot/internal/models"
	"github.com/rs/zerolog"
)

// ErrNoText is returned when the service found no text in the image
var ErrNoText = errors.New("no text found in image")

// Recognizer extracts the text shown in an image
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, contentType string) (string, error)
	Close() error
}

// New builds the recognizer selected by OCR_PROVIDER. It returns nil for the none provider.
func New(ctx context.Context, cfg *models.BotConfig, logger zerolog.Logger) (Recognizer, error) {
	switch cfg.OCRProvider {
	case models.OCRVision:
		v, err := NewVision(ctx, cfg.OCRAPIKey, cfg.OCRTimeout, logger)
		if err != nil {
			return nil, err
		}
		return v, nil
	case models.OCRGemini:
		g, err := NewGemini(ctx, cfg.OCRAPIKey, cfg.OCRModel, cfg.OCRTimeout, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	case models.OCRNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", cfg.OCRProvider)
	}
}
