// Package main provides the entry point for the server event pipeline worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/couchclub/couchclub-sync/internal/di"
)

func main() {
	injector := di.NewContainer()

	p, err := di.Bootstrap(injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap pipeline: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*slog.Logger](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		log.Error("pipeline failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("shutting down gracefully")
	if err := injector.Shutdown(); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
	}
}
