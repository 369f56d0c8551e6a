package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/mode-relay-bot/internal/models"
	"github.com/openai/openai-go"
	oaoption "github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	client    openai.Client
	model     string
	maxTokens int
	retry     retrier
	logger    zerolog.Logger
}

// NewOpenAIClient creates a client for LLM_API_BASE. Retries are handled here,
// so the SDK's own retry loop is disabled.
func NewOpenAIClient(config *models.BotConfig, logger zerolog.Logger, opts ...oaoption.RequestOption) *OpenAIClient {
	logger = logger.With().Str("component", "llm").Str("provider", models.ProviderOpenAI).Logger()

	opts = append([]oaoption.RequestOption{
		oaoption.WithAPIKey(config.LLMAPIKey),
		oaoption.WithBaseURL(strings.TrimRight(config.LLMAPIBase, "/") + "/"),
		oaoption.WithMaxRetries(0),
		oaoption.WithHeader("User-Agent", "mode-relay-bot/1.0"),
	}, opts...)

	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		model:     config.LLMModel,
		maxTokens: config.LLMMaxTokens,
		retry: retrier{
			timeout:    config.LLMTimeout,
			maxRetries: config.LLMRetries,
			baseDelay:  config.LLMRetryDelay,
			logger:     logger,
		},
		logger: logger,
	}
}

// GenerateResponse sends the turn and returns the first choice
func (c *OpenAIClient) GenerateResponse(ctx context.Context, req *models.LLMRequest) *models.LLMResponse {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.maxTokens
	}
	return c.retry.run(ctx, req, c.generate)
}

// Close is a no-op; the SDK client holds no resources
func (c *OpenAIClient) Close() error {
	return nil
}

// buildMessages orders system prompt, earlier turns, then the question.
// An empty system prompt sends no system message.
func buildMessages(req *models.LLMRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, turn := range req.History {
		messages = append(messages, openai.UserMessage(turn))
	}
	return append(messages, openai.UserMessage(req.Text))
}

func (c *OpenAIClient) generate(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	c.logger.Debug().
		Str("model", req.Model).
		Int("history", len(req.History)).
		Int("max_tokens", req.MaxTokens).
		Msg("Sending request to LLM")

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(req.Model),
		Messages:  buildMessages(req),
		MaxTokens: openai.Int(int64(req.MaxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response: %w", ErrEmptyResponse)
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return nil, ErrEmptyResponse
	}

	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = req.Model
	}

	c.logger.Info().
		Str("model", modelUsed).
		Int("response_length", len([]rune(text))).
		Msg("LLM response generated successfully")

	return &models.LLMResponse{
		Text:      text,
		ModelUsed: modelUsed,
		Length:    len([]rune(text)),
	}, nil
}
