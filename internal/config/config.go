package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mode-relay-bot/internal/models"
)

// DefaultHelpMessage is shown for /help and /start unless HELP_MESSAGE overrides it
const DefaultHelpMessage = "You can enter text or upload an image with text to chat with this bot. " +
	"The bot can take several different assistant roles. " +
	"Type command /qa or /translate or /summarize or /medical or /code or /reply_tweet to start."

// Load loads configuration from environment variables
// It first attempts to load from .env file, then reads environment variables
func Load() (*models.BotConfig, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	allowed, err := getEnvInt64List("TELEGRAM_ALLOWED_CHAT_IDS")
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config := &models.BotConfig{
		// Telegram settings
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramUsername: getEnv("TELEGRAM_BOT_USERNAME", ""),
		AllowedChatIDs:   allowed,

		// Discord settings
		DiscordToken:   getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordAppID:   getEnv("DISCORD_APP_ID", ""),
		DiscordGuildID: getEnv("DISCORD_GUILD_ID", ""),

		// LLM settings
		LLMProvider:   getEnv("LLM_PROVIDER", models.ProviderOpenAI),
		LLMAPIKey:     getEnv("LLM_API_KEY", ""),
		LLMAPIBase:    getEnv("LLM_API_BASE", "http://127.0.0.1:8080/v1"),
		LLMModel:      getEnv("LLM_MODEL", "llama2-chat-7b"),
		LLMMaxTokens:  getEnvInt("LLM_MAX_TOKENS", 512),
		LLMTimeout:    getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMRetries:    getEnvInt("LLM_RETRIES", 2),
		LLMRetryDelay: getEnvDuration("LLM_RETRY_DELAY", time.Second),

		// OCR settings
		OCRProvider: getEnv("OCR_PROVIDER", models.OCRVision),
		OCRAPIKey:   getEnv("OCR_API_KEY", ""),
		OCRModel:    getEnv("OCR_MODEL", "gemini-1.5-flash"),
		OCRTimeout:  getEnvDuration("OCR_TIMEOUT", 30*time.Second),

		// Input assembly
		ScrapeTimeout:    getEnvDuration("SCRAPE_TIMEOUT", 20*time.Second),
		ScrapeMaxChars:   getEnvInt("SCRAPE_MAX_CHARS", 36000),
		DownloadTimeout:  getEnvDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
		DownloadMaxBytes: int64(getEnvInt("DOWNLOAD_MAX_BYTES", 20<<20)),

		// Session state
		StoreType:   getEnv("STORE_TYPE", models.StoreMemory),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/sessions.db"),
		ModeTTL:     getEnvDuration("MODE_TTL", 60*time.Second),
		SessionTTL:  getEnvDuration("SESSION_TTL", 300*time.Second),
		HistoryTTL:  getEnvDuration("HISTORY_TTL", 300*time.Second),
		HistorySize: getEnvInt("HISTORY_SIZE", 8),

		// Replies
		ReplyChunkSize:        getEnvInt("REPLY_CHUNK_SIZE", 1800),
		ReplyPrefix:           getEnv("REPLY_PREFIX", "Answer: "),
		ReplyPrefixEveryChunk: getEnvBool("REPLY_PREFIX_EVERY_CHUNK", false),
		HelpMessage:           getEnv("HELP_MESSAGE", DefaultHelpMessage),
		PromptsFile:           getEnv("PROMPTS_FILE", ""),

		// Supabase settings
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseTimeout: getEnvDuration("SUPABASE_TIMEOUT", 10*time.Second),

		// App settings
		Timezone:        getEnv("TIMEZONE", "UTC"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Environment:     getEnv("ENVIRONMENT", "production"),
		DailyTurnLimit:  getEnvInt("DAILY_TURN_LIMIT", 0),
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "@every 5m"),
	}

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// PromptsFile returns PROMPTS_FILE without loading or validating the rest of the configuration
func PromptsFile() string {
	_ = godotenv.Load()
	return getEnv("PROMPTS_FILE", "")
}

// validate checks if all required configuration values are set
func validate(cfg *models.BotConfig) error {
	if !cfg.TelegramEnabled() && !cfg.DiscordEnabled() {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN or DISCORD_BOT_TOKEN is required")
	}
	if cfg.DiscordEnabled() && cfg.DiscordAppID == "" {
		return fmt.Errorf("DISCORD_APP_ID is required")
	}
	if cfg.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}

	switch cfg.LLMProvider {
	case models.ProviderOpenAI, models.ProviderGemini:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of: openai, gemini; got %s", cfg.LLMProvider)
	}

	switch cfg.OCRProvider {
	case models.OCRVision, models.OCRGemini:
		if cfg.OCRAPIKey == "" {
			return fmt.Errorf("OCR_API_KEY is required when OCR_PROVIDER is %s", cfg.OCRProvider)
		}
	case models.OCRNone:
	default:
		return fmt.Errorf("OCR_PROVIDER must be one of: vision, gemini, none; got %s", cfg.OCRProvider)
	}

	switch cfg.StoreType {
	case models.StoreMemory:
	case models.StoreSQLite:
		if cfg.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_TYPE is sqlite")
		}
	case models.StoreSupabase:
		if !cfg.RequestLogEnabled() {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required when STORE_TYPE is supabase")
		}
	default:
		return fmt.Errorf("STORE_TYPE must be one of: memory, sqlite, supabase; got %s", cfg.StoreType)
	}

	// Validate positive values
	if cfg.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", cfg.LLMMaxTokens)
	}
	if cfg.LLMRetries < 0 {
		return fmt.Errorf("LLM_RETRIES must not be negative, got %d", cfg.LLMRetries)
	}
	if cfg.ReplyChunkSize <= 0 {
		return fmt.Errorf("REPLY_CHUNK_SIZE must be positive, got %d", cfg.ReplyChunkSize)
	}
	if cfg.ScrapeMaxChars <= 0 {
		return fmt.Errorf("SCRAPE_MAX_CHARS must be positive, got %d", cfg.ScrapeMaxChars)
	}
	if cfg.HistorySize <= 0 {
		return fmt.Errorf("HISTORY_SIZE must be positive, got %d", cfg.HistorySize)
	}
	if cfg.DailyTurnLimit < 0 {
		return fmt.Errorf("DAILY_TURN_LIMIT must not be negative, got %d", cfg.DailyTurnLimit)
	}
	if cfg.ModeTTL <= 0 || cfg.SessionTTL <= 0 || cfg.HistoryTTL <= 0 {
		return fmt.Errorf("MODE_TTL, SESSION_TTL and HISTORY_TTL must be positive")
	}
	if cfg.DownloadMaxBytes <= 0 {
		return fmt.Errorf("DOWNLOAD_MAX_BYTES must be positive, got %d", cfg.DownloadMaxBytes)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %s", cfg.LogLevel)
	}

	return nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvBool retrieves environment variable as bool or returns default value
func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("90s", "5m") or plain seconds ("300")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvInt64List parses a comma separated list of chat IDs
func getEnvInt64List(key string) ([]int64, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s contains invalid chat id %q", key, part)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
