// Package main is the entry point for the voxrelay CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxrelay/voxrelay/internal/auth"
	"github.com/voxrelay/voxrelay/internal/bot"
	"github.com/voxrelay/voxrelay/internal/chat"
	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/elevenlabs"
	"github.com/voxrelay/voxrelay/internal/llm"
	"github.com/voxrelay/voxrelay/internal/metrics"
	"github.com/voxrelay/voxrelay/internal/ops"
	"github.com/voxrelay/voxrelay/internal/redact"
	"github.com/voxrelay/voxrelay/internal/retry"
	"github.com/voxrelay/voxrelay/internal/spool"
	"github.com/voxrelay/voxrelay/internal/telegram"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// systemPrompt pins the first entry of every conversation.
const systemPrompt = "You are a helpful voice assistant reachable over Telegram. " +
	"Keep replies short and conversational; they may be read aloud."

// Spool sweep parameters. The janitor only catches artifacts orphaned by a
// crash, so a coarse schedule is enough.
const (
	sweepSchedule = "@every 10m"
	sweepMaxAge   = time.Hour
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "voxrelay",
		Short:         "A Telegram relay for voice synthesis, voice transformation and chat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("voxrelay %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the relay",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			redactor := redact.NewRedactor(cfg.TelegramToken, cfg.ElevenLabsKey, cfg.OpenAIKey)
			logger := slog.New(redact.NewHandler(
				slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}),
				redactor,
			))

			return run(cfg, logger)
		},
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telegram.ValidateToken(cfg.TelegramToken); err != nil {
		return err
	}

	registry := auth.NewRegistry(cfg.AllowedUserIDs, cfg.AdminUserIDs)
	if registry.Empty() {
		logger.Warn("authorized user list is empty, every interaction will be rejected")
	}

	tg := telegram.NewClient(cfg.TelegramToken, "")
	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: verify bot token: %w", err)
	}
	logger.Info("telegram bot verified", "username", me.Username, "bot_id", me.ID)

	voice := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:  cfg.ElevenLabsKey,
		VoiceID: cfg.VoiceID,
	}, logger.With("component", "elevenlabs"))
	if err := voice.Verify(ctx); err != nil {
		return fmt.Errorf("elevenlabs: verify account: %w", err)
	}

	var gen bot.Generator
	if cfg.ChatEnabled() {
		gc := llm.NewClient(llm.Config{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, logger.With("component", "llm"))
		if err := gc.Verify(ctx); err != nil {
			return fmt.Errorf("generation: verify backend: %w", err)
		}
		gen = gc
	} else {
		logger.Warn("generation backend not configured, chat commands are disabled")
	}

	sp, err := spool.New(cfg.SpoolDir, logger.With("component", "spool"))
	if err != nil {
		return fmt.Errorf("spool: %w", err)
	}
	janitor := spool.NewJanitor(sp, sweepSchedule, sweepMaxAge, logger.With("component", "janitor"))
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("janitor: %w", err)
	}
	defer janitor.Stop()

	m := metrics.New()
	var opsServer *ops.Server
	if cfg.OpsAddr != "" {
		opsServer = ops.NewServer(cfg.OpsAddr, m.Handler(), logger.With("component", "ops"))
		if err := opsServer.Start(); err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
	}

	b := bot.New(bot.Deps{
		Auth:      registry,
		History:   chat.NewStore(systemPrompt),
		Telegram:  tg,
		Generator: gen,
		Synth:     voice,
		Spool:     sp,
		Metrics:   m,
		Retry:     retry.Policy{},
		Logger:    logger.With("component", "bot"),
	})

	poller := telegram.NewPoller(tg, b.HandleUpdate, logger.With("component", "poller"))
	poller.Start()
	logger.Info("voxrelay started",
		"version", version,
		"authorized_users", len(cfg.AllowedUserIDs),
		"chat_enabled", cfg.ChatEnabled(),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	poller.Stop()
	b.Wait()
	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsServer.Stop(shutdownCtx); err != nil {
			logger.Error("ops server shutdown", "error", err)
		}
	}

	logger.Info("voxrelay stopped")
	return nil
}
