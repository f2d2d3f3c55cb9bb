// Command virtual-assistant serves the compensation advisor chat API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/api"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/app"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/config"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.New(log.Config{
		Level: cfg.SlogLevel(),
		JSON:  cfg.LogJSON,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("closing application", "error", cerr)
		}
	}()

	logger.Info("virtual assistant starting", "config", cfg)

	server := api.NewServer(a.DBPool, a.Orchestrator, cfg.APIToken, logger)
	return server.Run(ctx, cfg.ListenAddr)
}
