package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mode-relay-bot/internal/dispatch"
	"github.com/mode-relay-bot/internal/mode"
	"github.com/mode-relay-bot/internal/models"
	"github.com/rs/zerolog"
)

// Platform is the conversation platform name used in session scopes and request logs
const Platform = "telegram"

// Handler runs turns for the bot
type Handler interface {
	HandleCommand(ctx context.Context, conv models.Conversation, selected mode.Mode, arg string) dispatch.CommandResult
	HandleMessage(ctx context.Context, conv models.Conversation, msg *models.IncomingMessage) []string
}

// Bot represents the Telegram bot
type Bot struct {
	api     *tgbotapi.BotAPI
	config  *models.BotConfig
	handler Handler
	logger  zerolog.Logger
	wg      sync.WaitGroup // Tracks active handlers for graceful shutdown
}

// New creates a new bot instance
func New(config *models.BotConfig, handler Handler, logger zerolog.Logger) (*Bot, error) {
	// Create Telegram bot API client
	api, err := tgbotapi.NewBotAPI(config.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	// Set debug mode based on log level
	api.Debug = config.LogLevel == "debug"

	logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authorized")

	defaultUsername(config, api.Self)

	return &Bot{
		api:     api,
		config:  config,
		handler: handler,
		logger:  logger.With().Str("component", "bot").Logger(),
	}, nil
}

// defaultUsername fills TELEGRAM_BOT_USERNAME from the authorized account when unset
func defaultUsername(config *models.BotConfig, self tgbotapi.User) {
	if config.TelegramUsername == "" {
		config.TelegramUsername = self.UserName
	}
}

// Commands lists the command menu shown by Telegram clients
func Commands() []tgbotapi.BotCommand {
	modes := mode.All()
	commands := make([]tgbotapi.BotCommand, 0, len(modes))
	for _, m := range modes {
		commands = append(commands, tgbotapi.BotCommand{
			Command:     m.Key(),
			Description: m.Description(),
		})
	}
	return commands
}

// RegisterCommands publishes the command menu with setMyCommands
func (b *Bot) RegisterCommands() error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(Commands()...)); err != nil {
		return fmt.Errorf("failed to register telegram commands: %w", err)
	}
	b.logger.Info().Int("count", len(mode.All())).Msg("Telegram commands registered")
	return nil
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info().Msg("Starting bot...")

	// Configure update settings
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	// Get updates channel
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Msg("Bot started, waiting for messages...")

	// Process updates
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Shutting down bot...")
			b.api.StopReceivingUpdates()

			// Wait for all active handlers to complete
			b.logger.Info().Msg("Waiting for active handlers to complete...")
			b.wg.Wait()
			b.logger.Info().Msg("All handlers completed")

			return nil

		case update := <-updates:
			// Track this handler in WaitGroup
			b.wg.Add(1)
			// Process update in a goroutine to not block
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// GetUsername returns bot username
func (b *Bot) GetUsername() string {
	return b.api.Self.UserName
}
