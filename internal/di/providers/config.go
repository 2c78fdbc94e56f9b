// Package providers contains dependency injection providers for the pipeline worker.
package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/couchclub/couchclub-sync/internal/config"
	"github.com/couchclub/couchclub-sync/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*slog.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("starting pipeline worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.Logger.Level),
		slog.String("project_id", cfg.Firebase.ProjectID),
	)

	return log, nil
}
