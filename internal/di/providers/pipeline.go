package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/couchclub/couchclub-sync/internal/pipeline"
	"github.com/couchclub/couchclub-sync/internal/push"
)

// ProvidePipeline provides the server event pipeline.
func ProvidePipeline(i do.Injector) (*pipeline.Pipeline, error) {
	remoteHandle := do.MustInvoke[*RemoteStoreHandle](i)
	pusher := do.MustInvoke[push.Pusher](i)
	log := do.MustInvoke[*slog.Logger](i)

	return pipeline.New(remoteHandle.Store, pusher, log), nil
}
