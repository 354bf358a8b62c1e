package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipforge/clipforge-agent/internal/agent"
	"github.com/clipforge/clipforge-agent/internal/api"
	"github.com/clipforge/clipforge-agent/internal/assembly"
	"github.com/clipforge/clipforge-agent/internal/capability"
	"github.com/clipforge/clipforge-agent/internal/config"
	"github.com/clipforge/clipforge-agent/internal/db"
	"github.com/clipforge/clipforge-agent/internal/logging"
	"github.com/clipforge/clipforge-agent/internal/pipeline"
	"github.com/clipforge/clipforge-agent/internal/preview"
	"github.com/clipforge/clipforge-agent/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.RunsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create runs dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipforge agent",
		"version", config.Version,
		"data_dir", cfg.DataDir(),
		"cohere_key", logging.SanitizeToken(cfg.CohereAPIKey()),
	)

	profile, err := config.LoadProfile(cfg.ProfilePath())
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := store.NewRepository(database.Conn())

	writer := capability.NewCohereWriter(cfg.CohereAPIKey(), cfg.CohereModel(), logger)
	speech := capability.NewDeepgramSpeech(cfg.TTSBaseURL(), cfg.TTSAPIKey(), logger)
	image := capability.NewTogetherImage(cfg.ImageBaseURL(), cfg.ImageAPIKey(), cfg.ImageModel(),
		profile.StyleSuffix, profile.Width, profile.Height, logger)
	clip := capability.NewVeoClip(cfg.ClipBaseURL(), cfg.ClipAPIKey(), logger)

	probe := capability.NewCachedProbe(&capability.AdapterProber{
		Script: writer,
		Speech: speech,
		Image:  image,
		Clip:   clip,
	}, logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if caps, err := probe.Refresh(initCtx); err != nil {
		logger.Warn("initial readiness probe failed", "error", err)
	} else {
		logger.Info("backend capabilities detected",
			"script", caps.HasScript,
			"speech", caps.HasSpeech,
			"image", caps.HasImage,
			"clip", caps.HasClip,
		)
	}
	initCancel()

	exec := agent.NewExecutor(logger, func(ctx context.Context, entry agent.AuditEntry) {
		status := store.LogStatusSuccess
		if !entry.Success {
			status = store.LogStatusFailed
		}
		err := repo.AppendAgentLog(context.WithoutCancel(ctx), &store.AgentLogEntry{
			ProjectID:     entry.RunID,
			AgentName:     entry.Agent,
			Status:        status,
			Input:         entry.Input,
			Output:        entry.Output,
			ErrorMessage:  entry.ErrorMessage,
			ExecutionTime: entry.Elapsed.Seconds(),
			Attempts:      entry.Attempts,
		})
		if err != nil {
			logger.Error("failed to append agent log", "agent", entry.Agent, "error", err)
		}
	})
	exec.SetRetryPolicy(cfg.MaxAttempts(), cfg.BaseDelay())

	assembler := assembly.New(profile, logger)

	runs := pipeline.NewService(repo, exec,
		pipeline.Adapters{
			Script:   writer,
			Speech:   speech,
			Image:    image,
			Clip:     clip,
			Metadata: writer,
		},
		probe, assembler, profile, cfg.RunsDir(), logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Runs:      runs,
		Probe:     probe,
		Preview:   preview.NewStreamer(logger),
		Logger:    logger,
		StartTime: startTime,
		Version:   config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
