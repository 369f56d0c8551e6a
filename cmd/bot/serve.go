package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mode-relay-bot/internal/assembler"
	"github.com/mode-relay-bot/internal/bot"
	"github.com/mode-relay-bot/internal/discord"
	"github.com/mode-relay-bot/internal/dispatch"
	"github.com/mode-relay-bot/internal/kvstore"
	"github.com/mode-relay-bot/internal/llm"
	"github.com/mode-relay-bot/internal/models"
	"github.com/mode-relay-bot/internal/ocr"
	"github.com/mode-relay-bot/internal/ratelimit"
	"github.com/mode-relay-bot/internal/scheduler"
	"github.com/mode-relay-bot/internal/scrape"
	"github.com/mode-relay-bot/internal/session"
	"github.com/mode-relay-bot/internal/storage"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// platform is a chat adapter run by serve
type platform struct {
	name  string
	start func(ctx context.Context) error
}

func serve(parent context.Context, cfg *models.BotConfig, logger zerolog.Logger) error {
	logger.Info().
		Str("environment", cfg.Environment).
		Str("llm_provider", cfg.LLMProvider).
		Str("llm_model", cfg.LLMModel).
		Str("ocr_provider", cfg.OCRProvider).
		Str("store", cfg.StoreType).
		Bool("telegram", cfg.TelegramEnabled()).
		Bool("discord", cfg.DiscordEnabled()).
		Int("daily_limit", cfg.DailyTurnLimit).
		Msg("Starting mode relay bot")

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	catalog, err := loadCatalog(cfg.PromptsFile, logger)
	if err != nil {
		return err
	}

	// Supabase is optional: it backs the request log and, if selected, the store
	var storageClient *storage.Client
	if cfg.RequestLogEnabled() || cfg.StoreType == models.StoreSupabase {
		logger.Info().Msg("Initializing Supabase client...")
		storageClient, err = storage.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTimeout, logger)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := storageClient.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to supabase: %w", err)
		}
		logger.Info().Msg("Supabase connection successful")
	}

	storeOpts := kvstore.Options{Type: cfg.StoreType, SQLitePath: cfg.SQLitePath}
	if storageClient != nil {
		storeOpts.Supabase = storageClient
	}
	store, err := kvstore.NewStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close session store")
		}
	}()

	resolver := session.NewResolver(catalog, cfg.SessionTTL)
	sessions := session.NewManager(store, resolver, cfg.ModeTTL, logger)
	history := session.NewHistory(store, cfg.HistorySize, cfg.HistoryTTL)

	logger.Info().Str("provider", cfg.OCRProvider).Msg("Initializing OCR...")
	recognizer, err := ocr.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create OCR client: %w", err)
	}
	if recognizer != nil {
		defer func() {
			if err := recognizer.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close OCR client")
			}
		}()
	}

	input := assembler.New(recognizer, scrape.NewFetcher(cfg.ScrapeTimeout, logger), cfg, logger)

	logger.Info().Str("provider", cfg.LLMProvider).Msg("Initializing LLM relay...")
	relay, err := llm.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM relay: %w", err)
	}
	defer func() {
		if err := relay.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close LLM relay")
		}
	}()

	limiter, err := ratelimit.NewLimiter(store, cfg.Timezone, cfg.DailyTurnLimit, logger)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}

	var requestLog dispatch.RequestLogger
	if cfg.RequestLogEnabled() && storageClient != nil {
		requestLog = storageClient
	}

	dispatcher := dispatch.New(cfg, sessions, history, input, relay, limiter, requestLog, logger)

	platforms, err := buildPlatforms(cfg, dispatcher, logger)
	if err != nil {
		return err
	}
	if len(platforms) == 0 {
		return fmt.Errorf("no chat platform configured")
	}

	sched, err := scheduler.NewScheduler(store, cfg.CleanupSchedule, cfg.Timezone, logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("Scheduler stopped with error")
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	botErrChan := make(chan error, len(platforms))
	done := make(chan struct{}, len(platforms))
	for _, p := range platforms {
		go func(p platform) {
			defer func() { done <- struct{}{} }()
			if err := p.start(ctx); err != nil {
				botErrChan <- fmt.Errorf("%s: %w", p.name, err)
			}
		}(p)
	}

	logger.Info().Int("platforms", len(platforms)).Msg("Bot is running. Press Ctrl+C to stop.")

	// Wait for termination signal or bot error
	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
	case <-ctx.Done():
		logger.Info().Msg("Context cancelled")
	case runErr = <-botErrChan:
		logger.Error().Err(runErr).Msg("Bot stopped with error")
	}

	// Graceful shutdown
	logger.Info().Msg("Initiating graceful shutdown...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for remaining := len(platforms); remaining > 0; remaining-- {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn().Msg("Shutdown timeout exceeded, some requests may be lost")
			return runErr
		}
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Scheduler did not stop in time")
	}

	if storageClient != nil {
		if err := storageClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage client")
		}
	}

	logger.Info().Msg("Graceful shutdown completed")
	return runErr
}

// buildPlatforms creates the configured adapters and registers their command menus
func buildPlatforms(cfg *models.BotConfig, dispatcher *dispatch.Dispatcher, logger zerolog.Logger) ([]platform, error) {
	var platforms []platform

	if cfg.TelegramEnabled() {
		logger.Info().Msg("Initializing Telegram bot...")
		telegramBot, err := bot.New(cfg, dispatcher, logger)
		if err != nil {
			return nil, err
		}
		if err := telegramBot.RegisterCommands(); err != nil {
			logger.Warn().Err(err).Msg("Failed to register telegram commands")
		}
		logger.Info().
			Str("username", telegramBot.GetUsername()).
			Interface("allowed_chat_ids", cfg.AllowedChatIDs).
			Msg("Telegram bot initialized")
		platforms = append(platforms, platform{name: bot.Platform, start: telegramBot.Start})
	}

	if cfg.DiscordEnabled() {
		logger.Info().Msg("Initializing Discord bot...")
		discordBot, err := discord.New(cfg, dispatcher, logger)
		if err != nil {
			return nil, err
		}
		if cfg.DiscordAppID != "" {
			if err := discordBot.RegisterCommands(); err != nil {
				logger.Warn().Err(err).Msg("Failed to register discord commands")
			}
		}
		platforms = append(platforms, platform{name: discord.Platform, start: discordBot.Start})
	}

	return platforms, nil
}
