package providers

import (
	"context"
	"fmt"
	"log/slog"

	firestoreclient "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/samber/do/v2"
	"google.golang.org/api/option"

	"github.com/couchclub/couchclub-sync/internal/config"
	"github.com/couchclub/couchclub-sync/internal/push"
	"github.com/couchclub/couchclub-sync/internal/remote/firestore"
)

// ProvideFirebaseApp provides the shared Firebase app handle.
func ProvideFirebaseApp(i do.Injector) (*firebase.App, error) {
	cfg := do.MustInvoke[*config.Config](i)

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}

	app, err := firebase.NewApp(context.Background(), &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}

// RemoteStoreHandle owns the Firestore client lifecycle around the store
// adapter.
type RemoteStoreHandle struct {
	Store  *firestore.Store
	client *firestoreclient.Client
}

// Shutdown closes the Firestore client.
func (h *RemoteStoreHandle) Shutdown() error {
	return h.client.Close()
}

// ProvideRemoteStore provides the Firestore-backed remote store.
func ProvideRemoteStore(i do.Injector) (*RemoteStoreHandle, error) {
	app := do.MustInvoke[*firebase.App](i)
	log := do.MustInvoke[*slog.Logger](i)

	client, err := app.Firestore(context.Background())
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}

	return &RemoteStoreHandle{
		Store:  firestore.New(client, log),
		client: client,
	}, nil
}

// ProvidePusher provides the FCM pusher.
func ProvidePusher(i do.Injector) (push.Pusher, error) {
	app := do.MustInvoke[*firebase.App](i)

	client, err := app.Messaging(context.Background())
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return push.NewFCM(client), nil
}
