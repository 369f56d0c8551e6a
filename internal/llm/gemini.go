package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/mode-relay-bot/internal/models"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GeminiClient represents a Gemini LLM client
type GeminiClient struct {
	apiKey      string
	model       string
	maxTokens   int
	retry       retrier
	logger      zerolog.Logger
	genaiClient *genai.Client
	opts        []option.ClientOption
	mu          sync.Mutex
}

// NewGeminiClient creates a new Gemini LLM client. opts are applied after the API key.
func NewGeminiClient(config *models.BotConfig, logger zerolog.Logger, opts ...option.ClientOption) *GeminiClient {
	logger = logger.With().Str("component", "llm").Str("provider", models.ProviderGemini).Logger()
	return &GeminiClient{
		apiKey:    config.LLMAPIKey,
		model:     config.LLMModel,
		maxTokens: config.LLMMaxTokens,
		retry: retrier{
			timeout:    config.LLMTimeout,
			maxRetries: config.LLMRetries,
			baseDelay:  config.LLMRetryDelay,
			logger:     logger,
		},
		logger:      logger,
		genaiClient: nil, // Will be created on first use
		opts:        opts,
	}
}

// getClient returns or creates a genai client (thread-safe)
func (c *GeminiClient) getClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.genaiClient != nil {
		return c.genaiClient, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c.genaiClient = client
	c.logger.Info().Msg("Gemini client created and cached")
	return c.genaiClient, nil
}

// Close closes the LLM client and releases resources
func (c *GeminiClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.genaiClient != nil {
		err := c.genaiClient.Close()
		c.genaiClient = nil
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to close Gemini client")
			return err
		}
		c.logger.Info().Msg("Gemini client closed")
	}
	return nil
}

// GenerateResponse generates a response from Gemini
func (c *GeminiClient) GenerateResponse(ctx context.Context, req *models.LLMRequest) *models.LLMResponse {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.maxTokens
	}
	return c.retry.run(ctx, req, c.generate)
}

// geminiPrompt folds earlier turns into the question since a single
// GenerateContent call carries one user content
func geminiPrompt(req *models.LLMRequest) string {
	if len(req.History) == 0 {
		return req.Text
	}

	var b strings.Builder
	b.WriteString("Earlier messages in this conversation:\n")
	for _, turn := range req.History {
		b.WriteString("- ")
		b.WriteString(turn)
		b.WriteString("\n")
	}
	b.WriteString("\nCurrent message:\n")
	b.WriteString(req.Text)
	return b.String()
}

// generate makes actual API call to Gemini
func (c *GeminiClient) generate(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	// Get or create Gemini client (reused across requests)
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get genai client: %w", err)
	}

	model := client.GenerativeModel(req.Model)
	model.SetMaxOutputTokens(int32(req.MaxTokens))
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("history", len(req.History)).
		Msg("Sending request to LLM")

	resp, err := model.GenerateContent(ctx, genai.Text(geminiPrompt(req)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no response candidates from LLM: %w", ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content parts in response: %w", ErrEmptyResponse)
	}

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	text := responseText.String()
	if text == "" {
		return nil, ErrEmptyResponse
	}

	c.logger.Info().
		Str("model", req.Model).
		Int("response_length", len([]rune(text))).
		Msg("LLM response generated successfully")

	return &models.LLMResponse{
		Text:      text,
		ModelUsed: req.Model,
		Length:    len([]rune(text)),
	}, nil
}
