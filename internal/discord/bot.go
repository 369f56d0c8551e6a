// Package discord connects the dispatcher to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/mode-relay-bot/internal/dispatch"
	"github.com/mode-relay-bot/internal/mode"
	"github.com/mode-relay-bot/internal/models"
	"github.com/rs/zerolog"
)

// Platform is the conversation platform name used in session scopes and request logs
const Platform = "discord"

// textOption is the optional slash-command option carrying inline input
const textOption = "text"

// Handler runs turns for the bot
type Handler interface {
	HandleCommand(ctx context.Context, conv models.Conversation, selected mode.Mode, arg string) dispatch.CommandResult
	HandleMessage(ctx context.Context, conv models.Conversation, msg *models.IncomingMessage) []string
}

// Bot is the Discord adapter
type Bot struct {
	session *discordgo.Session
	config  *models.BotConfig
	handler Handler
	logger  zerolog.Logger
	ctx     context.Context
	wg      sync.WaitGroup // Tracks active handlers for graceful shutdown
}

// New creates a Discord session with message content intents
func New(config *models.BotConfig, handler Handler, logger zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + config.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		session: session,
		config:  config,
		handler: handler,
		logger:  logger.With().Str("component", "discord").Logger(),
		ctx:     context.Background(),
	}

	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)

	return b, nil
}

// Commands builds the slash commands, one per mode
func Commands() []*discordgo.ApplicationCommand {
	modes := mode.All()
	commands := make([]*discordgo.ApplicationCommand, 0, len(modes))
	for _, m := range modes {
		cmd := &discordgo.ApplicationCommand{
			Name:        m.Key(),
			Description: m.Description(),
		}
		if hint := m.ArgumentHint(); hint != "" {
			cmd.Options = []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        textOption,
				Description: hint,
				Required:    false,
			}}
		}
		commands = append(commands, cmd)
	}
	return commands
}

// RegisterCommands overwrites the application's slash commands, guild scoped when
// DISCORD_GUILD_ID is set
func (b *Bot) RegisterCommands() error {
	registered, err := b.session.ApplicationCommandBulkOverwrite(b.config.DiscordAppID, b.config.DiscordGuildID, Commands())
	if err != nil {
		return fmt.Errorf("failed to register discord commands: %w", err)
	}

	b.logger.Info().
		Int("count", len(registered)).
		Str("guild_id", b.config.DiscordGuildID).
		Msg("Discord commands registered")
	return nil
}

// Start opens the gateway and serves events until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info().Msg("Starting discord bot...")
	b.ctx = ctx

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	if user := b.session.State.User; user != nil {
		b.logger.Info().
			Str("username", user.Username).
			Str("id", user.ID).
			Msg("Discord bot connected")
	}

	<-ctx.Done()

	b.logger.Info().Msg("Shutting down discord bot...")
	b.logger.Info().Msg("Waiting for active handlers to complete...")
	b.wg.Wait()

	if err := b.session.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to close discord session")
	}
	b.logger.Info().Msg("Discord bot stopped")
	return nil
}

// Close closes the session without waiting for handlers
func (b *Bot) Close() error {
	return b.session.Close()
}

// track runs handler as a tracked, panic-safe unit of work
func (b *Bot) track(handler func()) {
	b.wg.Add(1)
	defer b.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Panic recovered in handler")
		}
	}()

	handler()
}
