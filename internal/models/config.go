package models

import "time"

// Store backends
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreSupabase = "supabase"
)

// LLM backends
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// OCR backends
const (
	OCRVision = "vision"
	OCRGemini = "gemini"
	OCRNone   = "none"
)

// BotConfig represents bot configuration
type BotConfig struct {
	// Telegram settings
	TelegramToken    string
	TelegramUsername string
	AllowedChatIDs   []int64 // Empty means every chat is allowed

	// Discord settings
	DiscordToken   string
	DiscordAppID   string
	DiscordGuildID string // Empty registers commands globally

	// LLM settings
	LLMProvider   string
	LLMAPIKey     string
	LLMAPIBase    string
	LLMModel      string
	LLMMaxTokens  int
	LLMTimeout    time.Duration
	LLMRetries    int
	LLMRetryDelay time.Duration

	// OCR settings
	OCRProvider string
	OCRAPIKey   string
	OCRModel    string
	OCRTimeout  time.Duration

	// Input assembly
	ScrapeTimeout    time.Duration
	ScrapeMaxChars   int
	DownloadTimeout  time.Duration
	DownloadMaxBytes int64

	// Session state
	StoreType   string
	SQLitePath  string
	ModeTTL     time.Duration
	SessionTTL  time.Duration
	HistoryTTL  time.Duration
	HistorySize int

	// Replies
	ReplyChunkSize        int
	ReplyPrefix           string
	ReplyPrefixEveryChunk bool
	HelpMessage           string
	PromptsFile           string

	// Supabase settings (request log, optional store backend)
	SupabaseURL     string
	SupabaseKey     string
	SupabaseTimeout time.Duration

	// App settings
	Timezone        string
	LogLevel        string
	Environment     string
	DailyTurnLimit  int
	CleanupSchedule string
}

// IsAllowedChat checks if the given chat ID is in the allowed list
func (c *BotConfig) IsAllowedChat(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, allowedID := range c.AllowedChatIDs {
		if allowedID == chatID {
			return true
		}
	}
	return false
}

// TelegramEnabled reports whether the Telegram adapter should run
func (c *BotConfig) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// DiscordEnabled reports whether the Discord adapter should run
func (c *BotConfig) DiscordEnabled() bool {
	return c.DiscordToken != ""
}

// RequestLogEnabled reports whether turns are written to Supabase
func (c *BotConfig) RequestLogEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}
