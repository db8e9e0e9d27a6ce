// Package api provides factory implementations for dependency injection
package api

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ssargent/mb2/pkg/storage"
)

// archiveDir is the pebble directory under the data directory.
const archiveDir = "dumps"

// DefaultStoreFactory is the default implementation of StoreFactory
type DefaultStoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() StoreFactory {
	return &DefaultStoreFactory{}
}

// OpenStore opens the pebble archive under dataDir
func (f *DefaultStoreFactory) OpenStore(dataDir string, log *logrus.Logger) (storage.DumpStore, error) {
	return storage.NewDefaultStorage(filepath.Join(dataDir, archiveDir), log)
}

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(ctx context.Context, store storage.DumpStore, config ServerConfig, log logrus.FieldLogger) error {
	return StartServer(ctx, store, config, log)
}
