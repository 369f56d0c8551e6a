package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-token")
	t.Setenv("TELEGRAM_BOT_USERNAME", "relay_bot")
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("OCR_PROVIDER", "none")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "llama2-chat-7b", cfg.LLMModel)
	assert.Equal(t, 512, cfg.LLMMaxTokens)
	assert.Equal(t, 2, cfg.LLMRetries)
	assert.Equal(t, 60*time.Second, cfg.ModeTTL)
	assert.Equal(t, 300*time.Second, cfg.SessionTTL)
	assert.Equal(t, 300*time.Second, cfg.HistoryTTL)
	assert.Equal(t, 8, cfg.HistorySize)
	assert.Equal(t, 1800, cfg.ReplyChunkSize)
	assert.Equal(t, "Answer: ", cfg.ReplyPrefix)
	assert.False(t, cfg.ReplyPrefixEveryChunk)
	assert.Equal(t, 36000, cfg.ScrapeMaxChars)
	assert.Equal(t, DefaultHelpMessage, cfg.HelpMessage)
	assert.Equal(t, "memory", cfg.StoreType)
	assert.True(t, cfg.TelegramEnabled())
	assert.False(t, cfg.DiscordEnabled())
	assert.False(t, cfg.RequestLogEnabled())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL", "60")
	t.Setenv("MODE_TTL", "90s")
	t.Setenv("REPLY_PREFIX_EVERY_CHUNK", "true")
	t.Setenv("TELEGRAM_ALLOWED_CHAT_IDS", "10, -200")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.SessionTTL)
	assert.Equal(t, 90*time.Second, cfg.ModeTTL)
	assert.True(t, cfg.ReplyPrefixEveryChunk)
	assert.Equal(t, []int64{10, -200}, cfg.AllowedChatIDs)
	assert.True(t, cfg.IsAllowedChat(-200))
	assert.False(t, cfg.IsAllowedChat(11))
}

func TestLoadTelegramUsernameOptional(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_BOT_USERNAME", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.TelegramUsername)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "no platform",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": ""},
			wantErr: "TELEGRAM_BOT_TOKEN or DISCORD_BOT_TOKEN is required",
		},
		{
			name:    "missing llm key",
			env:     map[string]string{"LLM_API_KEY": ""},
			wantErr: "LLM_API_KEY is required",
		},
		{
			name:    "discord without app id",
			env:     map[string]string{"DISCORD_BOT_TOKEN": "d-token"},
			wantErr: "DISCORD_APP_ID is required",
		},
		{
			name:    "vision without key",
			env:     map[string]string{"OCR_PROVIDER": "vision"},
			wantErr: "OCR_API_KEY is required",
		},
		{
			name:    "supabase store without credentials",
			env:     map[string]string{"STORE_TYPE": "supabase"},
			wantErr: "SUPABASE_URL and SUPABASE_KEY are required",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"LLM_PROVIDER": "bogus"},
			wantErr: "LLM_PROVIDER must be one of",
		},
		{
			name:    "zero chunk size",
			env:     map[string]string{"REPLY_CHUNK_SIZE": "0"},
			wantErr: "REPLY_CHUNK_SIZE must be positive",
		},
		{
			name:    "bad chat id",
			env:     map[string]string{"TELEGRAM_ALLOWED_CHAT_IDS": "12,abc"},
			wantErr: "invalid chat id",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"LOG_LEVEL": "trace"},
			wantErr: "LOG_LEVEL must be one of",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
