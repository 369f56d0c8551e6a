package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mode-relay-bot/internal/models"
)

// LogRequest logs a relayed turn to the database
func (c *Client) LogRequest(ctx context.Context, log *models.RequestLog) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	// Set created_at if not set
	if log.CreatedAt.IsZero() {
		log.CreatedAt = c.now().UTC()
	}

	operation := "log_request"
	err := c.withRetry(ctx, operation, func() error {
		data := map[string]interface{}{
			"id":                log.ID,
			"platform":          log.Platform,
			"chat_id":           log.ChatID,
			"user_id":           log.UserID,
			"username":          log.Username,
			"mode":              log.Mode,
			"restart":           log.Restart,
			"request_text":      log.RequestText,
			"response_text":     log.ResponseText,
			"model_used":        log.ModelUsed,
			"response_length":   log.ResponseLength,
			"chunk_count":       log.ChunkCount,
			"execution_time_ms": log.ExecutionTimeMs,
			"error_message":     log.ErrorMessage,
			"created_at":        log.CreatedAt,
		}

		_, _, err := c.client.From(requestLogsTable).
			Insert(data, false, "", "", "").
			Execute()

		if err != nil {
			return fmt.Errorf("failed to insert request log: %w", err)
		}

		return nil
	})

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("request_id", log.ID).
			Str("model", log.ModelUsed).
			Msg("Failed to log request")
		return err
	}

	c.logger.Debug().
		Str("request_id", log.ID).
		Str("platform", log.Platform).
		Str("user_id", log.UserID).
		Str("mode", log.Mode).
		Int("response_len", log.ResponseLength).
		Int("exec_time_ms", log.ExecutionTimeMs).
		Msg("Request logged successfully")

	return nil
}
