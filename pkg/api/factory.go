// Package api provides factory implementations for dependency injection
package api

import (
	"context"

	"github.com/ssargent/samplestore/pkg/storage"
	"github.com/ssargent/samplestore/pkg/store"
)

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
func (s *DefaultServerStarter) StartServer(
	ctx context.Context,
	sampleStore *store.SampleStore,
	index *storage.SampleIndex,
	config ServerConfig,
) error {
	// A nil *SampleIndex must not become a non-nil interface
	var idx ISampleIndex
	if index != nil {
		idx = index
	}
	return StartServer(ctx, sampleStore, idx, config)
}
