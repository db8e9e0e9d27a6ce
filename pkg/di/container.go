// Package di provides dependency injection container
package di

import (
	"github.com/ssargent/mb2/pkg/api" //nolint:depguard
)

// Container holds all the dependencies for the application
type Container struct {
	storeFactory  api.StoreFactory
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		storeFactory:  api.NewStoreFactory(),
		serverFactory: api.NewServerFactory(),
	}
}

// GetStoreFactory returns the dump archive factory
func (c *Container) GetStoreFactory() api.StoreFactory {
	return c.storeFactory
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetStoreFactory allows overriding the store factory (for testing)
func (c *Container) SetStoreFactory(factory api.StoreFactory) {
	c.storeFactory = factory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}
