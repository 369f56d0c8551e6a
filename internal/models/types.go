package models

import "time"

// Attachment describes a file attached to an incoming message
type Attachment struct {
	URL         string
	ContentType string // Declared MIME type, e.g. "image/png" or "text/plain"
	Filename    string
}

// IncomingMessage is a platform-neutral user message
type IncomingMessage struct {
	ID              string
	Text            string
	MentionStripped bool // Text already had the bot mention removed by the platform adapter
	Attachments     []Attachment
}

// Conversation identifies where a turn happens and who sent it
type Conversation struct {
	Platform string
	ChatID   string
	UserID   string
	Username string
}

// Scope returns the key namespace used for the conversation's session state
func (c Conversation) Scope() string {
	if c.Platform == "" && c.ChatID == "" && c.UserID == "" {
		return ""
	}
	return c.Platform + ":" + c.ChatID + ":" + c.UserID
}

// RequestLog represents a log entry for a relayed turn
type RequestLog struct {
	ID              string    `json:"id"`
	Platform        string    `json:"platform"`
	ChatID          string    `json:"chat_id"`
	UserID          string    `json:"user_id"`
	Username        string    `json:"username,omitempty"`
	Mode            string    `json:"mode"`
	Restart         bool      `json:"restart"`
	RequestText     string    `json:"request_text"`
	ResponseText    string    `json:"response_text"`
	ModelUsed       string    `json:"model_used"`
	ResponseLength  int       `json:"response_length"`
	ChunkCount      int       `json:"chunk_count"`
	ExecutionTimeMs int       `json:"execution_time_ms"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// LLMRequest represents a request to LLM
type LLMRequest struct {
	SystemPrompt string
	Text         string
	History      []string // Earlier user turns of the same session, oldest first
	MaxTokens    int
	Model        string
}

// LLMResponse represents a response from LLM
type LLMResponse struct {
	Text            string
	ModelUsed       string
	Length          int
	ExecutionTimeMs int
	Error           error
}

// RateLimitResult represents the result of rate limit check
type RateLimitResult struct {
	Allowed   bool
	Used      int
	Remaining int
	Message   string
}
