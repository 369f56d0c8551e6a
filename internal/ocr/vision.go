package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const textDetection = "TEXT_DETECTION"

// Vision recognizes text with the Cloud Vision images:annotate endpoint
type Vision struct {
	service *vision.Service
	timeout time.Duration
	logger  zerolog.Logger
}

// NewVision creates a Cloud Vision client authenticated with an API key.
// Extra client options are appended after the key.
func NewVision(ctx context.Context, apiKey string, timeout time.Duration, logger zerolog.Logger, opts ...option.ClientOption) (*Vision, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision service: %w", err)
	}

	return &Vision{
		service: service,
		timeout: timeout,
		logger:  logger.With().Str("component", "ocr").Str("provider", "vision").Logger(),
	}, nil
}

// Recognize sends the image for text detection and returns the full text annotation
func (v *Vision) Recognize(ctx context.Context, image []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
				Features: []*vision.Feature{{Type: textDetection}},
			},
		},
	}

	resp, err := v.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to annotate image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", ErrNoText
	}

	result := resp.Responses[0]
	if result.Error != nil && result.Error.Message != "" {
		return "", fmt.Errorf("vision error %d: %s", result.Error.Code, result.Error.Message)
	}

	var text string
	switch {
	case result.FullTextAnnotation != nil:
		text = result.FullTextAnnotation.Text
	case len(result.TextAnnotations) > 0:
		text = result.TextAnnotations[0].Description
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}

	v.logger.Debug().
		Str("content_type", contentType).
		Int("bytes", len(image)).
		Int("chars", len([]rune(text))).
		Msg("Image text recognized")

	return text, nil
}

// Close is a no-op; the REST service holds no connections of its own
func (v *Vision) Close() error {
	return nil
}
