// Package dispatch runs one chat turn from an inbound command or message to the reply chunks.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/mode-relay-bot/internal/assembler"
	"github.com/mode-relay-bot/internal/chunk"
	"github.com/mode-relay-bot/internal/llm"
	"github.com/mode-relay-bot/internal/mode"
	"github.com/mode-relay-bot/internal/models"
	"github.com/mode-relay-bot/internal/session"
	"github.com/rs/zerolog"
)

// User-facing notices
const (
	EmptyInputNotice    = "Please send some text, a link or a file so I have something to work with."
	UploadProblemNotice = "There is a problem with the uploaded file. Can you try again?"
)

// Sessions arms modes and resolves the active session of a conversation
type Sessions interface {
	Arm(ctx context.Context, scope string, selected mode.Mode) error
	Resolve(ctx context.Context, scope string) (session.Resolution, bool, error)
	Active(ctx context.Context, scope string) (bool, error)
}

// HistoryRecorder keeps the recent utterances of a session
type HistoryRecorder interface {
	Record(ctx context.Context, scope, utterance string, restart bool) ([]string, error)
}

// InputAssembler builds the question text for a message
type InputAssembler interface {
	Assemble(ctx context.Context, modeKey string, msg *models.IncomingMessage) assembler.Result
}

// TurnLimiter enforces a per-user daily quota
type TurnLimiter interface {
	CheckLimit(ctx context.Context, user string) (*models.RateLimitResult, error)
	IncrementUsage(ctx context.Context, user string) error
}

// RequestLogger persists a record of every relayed turn
type RequestLogger interface {
	LogRequest(ctx context.Context, log *models.RequestLog) error
}

// CommandResult is what a mode command sends back
type CommandResult struct {
	Ack     string   // Acknowledgement for the command itself
	Replies []string // Answer chunks when the command carried inline text
}

// Dispatcher ties session state, input assembly, the relay and chunking together
type Dispatcher struct {
	config     *models.BotConfig
	sessions   Sessions
	history    HistoryRecorder
	assembler  InputAssembler
	relay      llm.Relay
	limiter    TurnLimiter
	requestLog RequestLogger
	logger     zerolog.Logger
}

// New creates a dispatcher. limiter and requestLog may be nil.
func New(
	config *models.BotConfig,
	sessions Sessions,
	history HistoryRecorder,
	assembler InputAssembler,
	relay llm.Relay,
	limiter TurnLimiter,
	requestLog RequestLogger,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		config:     config,
		sessions:   sessions,
		history:    history,
		assembler:  assembler,
		relay:      relay,
		limiter:    limiter,
		requestLog: requestLog,
		logger:     logger.With().Str("component", "dispatch").Logger(),
	}
}

// HelpMessage is the configured help text
func (d *Dispatcher) HelpMessage() string {
	return d.config.HelpMessage
}

// HandleCommand arms the selected mode and acknowledges it. Inline text after the
// command is processed right away as the first message of the new session.
func (d *Dispatcher) HandleCommand(ctx context.Context, conv models.Conversation, selected mode.Mode, arg string) CommandResult {
	d.logger.Info().
		Str("platform", conv.Platform).
		Str("chat_id", conv.ChatID).
		Str("user_id", conv.UserID).
		Str("command", selected.Key()).
		Msg("Received command")

	if !selected.Arms() {
		return CommandResult{Ack: d.config.HelpMessage}
	}

	if err := d.sessions.Arm(ctx, conv.Scope(), selected); err != nil {
		d.logger.Error().
			Err(err).
			Str("scope", conv.Scope()).
			Str("mode", selected.Key()).
			Msg("Failed to arm mode")
	}

	ack := selected.Ready()
	if ack == "" {
		ack = d.config.HelpMessage
	}

	result := CommandResult{Ack: ack}
	if strings.TrimSpace(arg) != "" {
		result.Replies = d.HandleMessage(ctx, conv, &models.IncomingMessage{Text: arg})
	}
	return result
}

// HandleMessage runs one conversational turn and returns the messages to post, in order.
// A nil result means nothing is sent.
func (d *Dispatcher) HandleMessage(ctx context.Context, conv models.Conversation, msg *models.IncomingMessage) []string {
	logger := d.logger.With().
		Str("platform", conv.Platform).
		Str("chat_id", conv.ChatID).
		Str("user_id", conv.UserID).
		Logger()

	scope := conv.Scope()

	if len(msg.Attachments) == 0 && strings.TrimSpace(assembler.QuestionText(msg)) == "" {
		active, err := d.sessions.Active(ctx, scope)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read session")
			return nil
		}
		if !active {
			logger.Debug().Msg("Empty message without an active mode, ignoring")
			return nil
		}
		logger.Debug().Msg("Empty message, asking for input")
		return []string{EmptyInputNotice}
	}

	resolution, ok, err := d.sessions.Resolve(ctx, scope)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve session")
		return nil
	}
	if !ok {
		logger.Debug().Msg("No active mode, ignoring message")
		return nil
	}

	limitKey := conv.Platform + ":" + conv.UserID
	if d.limiter != nil {
		limit, err := d.limiter.CheckLimit(ctx, limitKey)
		if err != nil {
			logger.Warn().Err(err).Msg("Rate limit check failed, allowing turn")
		} else if !limit.Allowed {
			logger.Info().Int("used", limit.Used).Msg("Daily limit reached")
			return []string{limit.Message}
		}
	}

	input := d.assembler.Assemble(ctx, resolution.Mode, msg)
	if strings.TrimSpace(input.Text) == "" {
		if input.Skipped > 0 {
			logger.Warn().Int("skipped", input.Skipped).Msg("No usable attachment")
			return []string{UploadProblemNotice}
		}
		logger.Debug().Msg("Nothing to send after assembling input")
		return nil
	}

	entries, err := d.history.Record(ctx, scope, input.Text, resolution.Restart)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to record chat history")
	}
	var prior []string
	if len(entries) > 1 {
		prior = entries[:len(entries)-1]
	}

	logger.Info().
		Str("mode", resolution.Mode).
		Bool("restart", resolution.Restart).
		Int("question_length", len([]rune(input.Text))).
		Int("history", len(prior)).
		Msg("Relaying turn")

	response := d.relay.GenerateResponse(ctx, &models.LLMRequest{
		SystemPrompt: resolution.SystemPrompt,
		Text:         input.Text,
		History:      prior,
		MaxTokens:    d.config.LLMMaxTokens,
		Model:        d.config.LLMModel,
	})

	record := &models.RequestLog{
		Platform:        conv.Platform,
		ChatID:          conv.ChatID,
		UserID:          conv.UserID,
		Username:        conv.Username,
		Mode:            resolution.Mode,
		Restart:         resolution.Restart,
		RequestText:     input.Text,
		ModelUsed:       response.ModelUsed,
		ExecutionTimeMs: response.ExecutionTimeMs,
	}

	if response.Error != nil {
		logger.Error().
			Err(response.Error).
			Str("mode", resolution.Mode).
			Int("execution_time_ms", response.ExecutionTimeMs).
			Msg("LLM request failed, dropping reply")
		record.ErrorMessage = response.Error.Error()
		d.logRequest(ctx, record)
		return nil
	}

	if d.limiter != nil {
		if err := d.limiter.IncrementUsage(ctx, limitKey); err != nil {
			logger.Warn().Err(err).Msg("Failed to count turn")
		}
	}

	chunks := chunk.Label(
		chunk.Split(response.Text, d.config.ReplyChunkSize),
		d.config.ReplyPrefix,
		d.config.ReplyPrefixEveryChunk,
	)

	record.ResponseText = response.Text
	record.ResponseLength = response.Length
	record.ChunkCount = len(chunks)
	d.logRequest(ctx, record)

	logger.Info().
		Str("mode", resolution.Mode).
		Int("response_length", response.Length).
		Int("chunks", len(chunks)).
		Int("execution_time_ms", response.ExecutionTimeMs).
		Msg("Reply ready")

	return chunks
}

func (d *Dispatcher) logRequest(ctx context.Context, record *models.RequestLog) {
	if d.requestLog == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := d.requestLog.LogRequest(ctx, record); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to write request log")
	}
}
