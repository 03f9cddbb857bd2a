package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"capkv/internal/configuration"
	"capkv/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	cfg, err := configuration.Load("")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return
	}

	logging.Init(cfg.App.LogLevel)
	slog.Info("Starting CAP simulation...", "profile", cfg.App.Profile)

	services, err := NewServices(cfg)
	if err != nil {
		slog.Error("Failed to start services", "error", err)
		return
	}
	defer func() {
		if err := services.Close(); err != nil {
			slog.Error("Failed to close services", "error", err)
		}
	}()

	report, err := services.Runner.Run(ctx)
	if report != nil {
		if _, werr := report.WriteTo(os.Stdout); werr != nil {
			slog.Error("Failed to write report", "error", werr)
		}
	}
	if err != nil {
		slog.Error("Simulation ended early", "error", err)
		return
	}

	slog.Info("Simulation complete")
}
