// Package di provides dependency injection configuration for the pipeline worker.
package di

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/couchclub/couchclub-sync/internal/config"
	"github.com/couchclub/couchclub-sync/internal/di/providers"
	"github.com/couchclub/couchclub-sync/internal/pipeline"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Firebase
	do.Provide(injector, providers.ProvideFirebaseApp)
	do.Provide(injector, providers.ProvideRemoteStore)
	do.Provide(injector, providers.ProvidePusher)

	// Pipeline
	do.Provide(injector, providers.ProvidePipeline)

	return injector
}

// Bootstrap triggers lazy initialization of the full graph and returns the
// pipeline ready to start.
func Bootstrap(injector *do.RootScope) (*pipeline.Pipeline, error) {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*slog.Logger](injector)
	_ = do.MustInvoke[*providers.RemoteStoreHandle](injector)

	return do.Invoke[*pipeline.Pipeline](injector)
}
