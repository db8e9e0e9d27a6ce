// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ssargent/mb2/pkg/storage"
)

// StoreFactory opens dump archives
type StoreFactory interface {
	// OpenStore opens or creates the archive under dataDir
	OpenStore(dataDir string, log *logrus.Logger) (storage.DumpStore, error)
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves the API until ctx is cancelled
	StartServer(ctx context.Context, store storage.DumpStore, config ServerConfig, log logrus.FieldLogger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
