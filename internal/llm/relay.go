// Package llm relays assembled questions to a hosted chat model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mode-relay-bot/internal/models"
	"github.com/rs/zerolog"
)

// ErrEmptyResponse is returned when the model answered with no text
var ErrEmptyResponse = errors.New("empty response from LLM")

// Relay sends one chat turn to a model
type Relay interface {
	GenerateResponse(ctx context.Context, req *models.LLMRequest) *models.LLMResponse
	Close() error
}

// New creates the relay selected by LLM_PROVIDER
func New(config *models.BotConfig, logger zerolog.Logger) (Relay, error) {
	switch config.LLMProvider {
	case models.ProviderOpenAI:
		return NewOpenAIClient(config, logger), nil
	case models.ProviderGemini:
		return NewGeminiClient(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.LLMProvider)
	}
}

type generateFunc func(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error)

// retrier runs a backend call with a per-call timeout and exponential backoff
type retrier struct {
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	logger     zerolog.Logger
}

// run executes generate, retrying on error, and fills in the execution time
func (r retrier) run(ctx context.Context, req *models.LLMRequest, generate generateFunc) *models.LLMResponse {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	response := r.generateWithRetry(ctx, req, generate)
	response.ExecutionTimeMs = int(time.Since(startTime).Milliseconds())

	return response
}

func (r retrier) generateWithRetry(ctx context.Context, req *models.LLMRequest, generate generateFunc) *models.LLMResponse {
	var lastError error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: base, 2*base, 4*base...
			backoff := r.baseDelay * time.Duration(1<<uint(attempt-1))
			r.logger.Warn().
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Str("model", req.Model).
				Msg("Retrying LLM request")

			select {
			case <-ctx.Done():
				return &models.LLMResponse{
					ModelUsed: req.Model,
					Error:     fmt.Errorf("gave up after %d attempts: %w", attempt, ctx.Err()),
				}
			case <-time.After(backoff):
			}
		}

		response, err := generate(ctx, req)
		if err == nil {
			return response
		}

		lastError = err
		r.logger.Error().
			Err(err).
			Int("attempt", attempt+1).
			Str("model", req.Model).
			Msg("LLM request failed")
	}

	return &models.LLMResponse{
		ModelUsed: req.Model,
		Error:     fmt.Errorf("failed after %d attempts: %w", r.maxRetries+1, lastError),
	}
}
