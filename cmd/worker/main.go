package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colively/campaign-engine/internal/bootstrap"
	"github.com/colively/campaign-engine/internal/campaign"
	"github.com/colively/campaign-engine/internal/config"
	"github.com/colively/campaign-engine/internal/pkg/logger"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		logger.Error("loading config", "path", path, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	weekday := time.Weekday(cfg.Campaign.ScheduleWeekday)
	logger.Info("weekly campaign worker started",
		"campaign", cfg.Campaign.Name,
		"weekday", weekday.String(),
		"hour_utc", cfg.Campaign.ScheduleHourUTC)

	for {
		next := campaign.NextRun(time.Now(), weekday, cfg.Campaign.ScheduleHourUTC)
		logger.Info("next run scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("worker stopped")
			return
		case <-timer.C:
		}

		acquired, err := app.RunLock.Acquire(ctx)
		if err != nil {
			logger.Error("run lock acquire failed", "error", err)
			continue
		}
		if !acquired {
			logger.Warn("run already in progress elsewhere, skipping")
			continue
		}

		run := app.Orchestrator.Run(ctx)
		if err := app.RunLock.Release(ctx); err != nil {
			logger.Warn("run lock release failed", "error", err)
		}
		logger.Info("scheduled run complete", "run_id", run.ID, "status", string(run.Status))
	}
}
