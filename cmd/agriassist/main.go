package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"agriassist/internal/assistant"
	"agriassist/internal/channel"
	"agriassist/internal/classifier"
	"agriassist/internal/config"
	"agriassist/internal/domain"
	"agriassist/internal/narrator"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Local development reads secrets from a .env file; deployments set
	// real environment variables.
	_ = godotenv.Load()

	logger = newLogger("info")

	root := &cobra.Command{
		Use:   "agriassist",
		Short: "Agri-Assistant: AI crop advisor for farmers",
		Long:  "Agri-Assistant answers farming questions and diagnoses plant diseases from photos, via CLI, Web, and Telegram interfaces.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.agriassist/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to env-backed defaults
// when no file exists yet.
func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	logger = newLogger(cfg.General.LogLevel)
	return cfg
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat (CLI)",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	// The interactive adapter requires both credentials up front.
	if !cfg.Narrator.Configured() {
		name, _ := cfg.Narrator.Active()
		return fmt.Errorf("narrator %q has no API key configured; set it in the config file or environment", name)
	}
	if !cfg.Classifier.Configured() {
		return fmt.Errorf("no classifier API key configured; set classifier.apiKey or PLANT_ID_API_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	asst, sessions, err := buildAssistant(cfg)
	if err != nil {
		return err
	}

	cli := channel.NewCLI(channel.CLIConfig{
		Assistant: asst,
		Sessions:  sessions,
		Logger:    logger,
	})
	return cli.Start(ctx)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start enabled channels (Web, Telegram)",
		Long:  "Starts all enabled front-end channels. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	asst, sessions, err := buildAssistant(cfg)
	if err != nil {
		return err
	}

	narratorName, _ := cfg.Narrator.Active()
	var channels []domain.Channel

	if cfg.Channels.Web.Enabled {
		channels = append(channels, channel.NewWeb(channel.WebConfig{
			Host:            cfg.Channels.Web.Host,
			Port:            cfg.Channels.Web.Port,
			Version:         version,
			Assistant:       asst,
			Sessions:        sessions,
			ClassifierReady: cfg.Classifier.Configured(),
			NarratorReady:   cfg.Narrator.Configured(),
			NarratorName:    narratorName,
			Logger:          logger,
		}))
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
			Token:           cfg.Channels.Telegram.Token,
			AllowFrom:       cfg.Channels.Telegram.AllowFrom,
			ParseMode:       cfg.Channels.Telegram.ParseMode,
			Assistant:       asst,
			Sessions:        sessions,
			ClassifierReady: cfg.Classifier.Configured(),
			Logger:          logger,
		}))
	}

	if len(channels) == 0 {
		return fmt.Errorf("no channels enabled; enable channels.web or channels.telegram in the config")
	}

	for _, ch := range channels {
		go func(ch domain.Channel) {
			if err := ch.Start(ctx); err != nil {
				logger.Error("channel error", "channel", ch.Name(), "err", err)
			}
		}(ch)
		logger.Info("channel enabled", "channel", ch.Name())
	}

	logger.Info("agriassist started. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("shutting down...")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ch := range channels {
			ch.Stop()
		}
	}()
	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out, forcing exit")
	}
	return nil
}

// buildAssistant wires the remote clients into the orchestrator.
func buildAssistant(cfg *config.Config) (*assistant.Assistant, *assistant.Sessions, error) {
	narr, err := narrator.New(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("narrator: %w", err)
	}
	clf := classifier.NewPlantID(classifier.Config{
		APIKey:  cfg.Classifier.APIKey,
		APIBase: cfg.Classifier.APIBase,
		Logger:  logger,
	})
	asst := assistant.New(assistant.Config{
		Classifier: clf,
		Narrator:   narr,
		Logger:     logger,
	})
	return asst, assistant.NewSessions(logger), nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			narratorName, _ := cfg.Narrator.Active()
			logger.Info("narrator", "provider", narratorName, "configured", cfg.Narrator.Configured())
			logger.Info("classifier", "configured", cfg.Classifier.Configured())

			if cfg.Narrator.Configured() {
				narr, err := narrator.New(cfg, logger)
				if err != nil {
					return err
				}
				if err := narr.Healthy(ctx); err != nil {
					logger.Warn("narrator unhealthy", "err", err)
				} else {
					logger.Info("narrator healthy", "provider", narr.Name())
				}
			}

			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agriassist v%s\n", version)
		},
	}
}
