package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const transcribePrompt = "Transcribe all text visible in this image exactly as written. " +
	"Reply with the text only. If there is no text, reply with an empty message."

// Gemini recognizes text by asking a multimodal Gemini model to transcribe the image
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGemini creates a Gemini vision client
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, logger zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger.With().Str("component", "ocr").Str("provider", "gemini").Logger(),
	}, nil
}

// Recognize asks the model for a verbatim transcription of the image
func (g *Gemini) Recognize(ctx context.Context, image []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.ImageData(imageFormat(contentType), image), genai.Text(transcribePrompt))
	if err != nil {
		return "", fmt.Errorf("failed to transcribe image: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoText
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result := strings.TrimSpace(text.String())
	if result == "" {
		return "", ErrNoText
	}

	g.logger.Debug().
		Str("content_type", contentType).
		Int("bytes", len(image)).
		Int("chars", len([]rune(result))).
		Msg("Image text recognized")

	return result, nil
}

// Close closes the underlying genai client
func (g *Gemini) Close() error {
	return g.client.Close()
}

// imageFormat maps a MIME type such as image/png to the short format genai expects
func imageFormat(contentType string) string {
	format := strings.TrimPrefix(strings.ToLower(contentType), "image/")
	if i := strings.IndexAny(format, ";+ "); i >= 0 {
		format = format[:i]
	}
	switch format {
	case "", "jpg", "pjpeg":
		return "jpeg"
	}
	return format
}
