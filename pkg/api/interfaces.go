// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/ssargent/samplestore/pkg/storage"
	"github.com/ssargent/samplestore/pkg/store"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves the API until ctx is cancelled. index may be nil
	// when indexing is disabled.
	StartServer(ctx context.Context, sampleStore *store.SampleStore, index *storage.SampleIndex, config ServerConfig) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
