package main

import (
	"fmt"
	"sort"

	"github.com/mode-relay-bot/internal/bot"
	"github.com/mode-relay-bot/internal/config"
	"github.com/mode-relay-bot/internal/discord"
	"github.com/mode-relay-bot/internal/prompts"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bot",
		Short:        "Mode-driven LLM chat relay for Telegram and Discord",
		Long:         "bot relays chat messages, attachments and links to a hosted LLM using a system prompt chosen with mode commands such as /summarize, /code or /translate.",
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newCommandsCmd(),
		newPromptsCmd(),
	)

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot on every configured platform",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return serve(cmd.Context(), cfg, setupLogger(cfg.LogLevel, cfg.Environment))
}

func newCommandsCmd() *cobra.Command {
	var register bool

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Print the platform command menus, or register them with --register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if register {
				return registerCommands()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Telegram:")
			for _, c := range bot.Commands() {
				fmt.Fprintf(out, "  /%-12s %s\n", c.Command, c.Description)
			}
			fmt.Fprintln(out, "Discord:")
			for _, c := range discord.Commands() {
				option := ""
				if len(c.Options) > 0 {
					option = " [" + c.Options[0].Name + "]"
				}
				fmt.Fprintf(out, "  /%-12s %s%s\n", c.Name, c.Description, option)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&register, "register", false, "register the menus with every configured platform")
	return cmd
}

func registerCommands() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg.LogLevel, cfg.Environment)

	if cfg.TelegramEnabled() {
		telegramBot, err := bot.New(cfg, nil, logger)
		if err != nil {
			return err
		}
		if err := telegramBot.RegisterCommands(); err != nil {
			return err
		}
	}

	if cfg.DiscordEnabled() {
		discordBot, err := discord.New(cfg, nil, logger)
		if err != nil {
			return err
		}
		if err := discordBot.RegisterCommands(); err != nil {
			return err
		}
	}

	return nil
}

func newPromptsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Print the effective system prompt for every mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = config.PromptsFile()
			}
			catalog, err := loadCatalog(file, zerolog.Nop())
			if err != nil {
				return err
			}

			keys := catalog.Keys()
			sort.Strings(keys)
			out := cmd.OutOrStdout()
			for _, key := range keys {
				fmt.Fprintf(out, "[%s]\n%s\n\n", key, catalog.Lookup(key))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "TOML prompt overrides (defaults to PROMPTS_FILE)")
	return cmd
}

// loadCatalog returns the built-in prompts, overlaid by path when set
func loadCatalog(path string, logger zerolog.Logger) (*prompts.Catalog, error) {
	if path == "" {
		return prompts.Default(), nil
	}

	catalog, err := prompts.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts from %s: %w", path, err)
	}
	logger.Info().Str("path", path).Int("prompts", len(catalog.Keys())).Msg("Prompt overrides loaded")
	return catalog, nil
}
