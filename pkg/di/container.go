// Package di provides dependency injection container
package di

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ssargent/arenabuf/pkg/api" //nolint:depguard
	"github.com/ssargent/arenabuf/pkg/config"
	"github.com/ssargent/arenabuf/pkg/factory"
	"github.com/ssargent/arenabuf/pkg/logging"
	"github.com/ssargent/arenabuf/pkg/schema"
	"github.com/ssargent/arenabuf/pkg/storage"
)

// Container holds all the dependencies for the application. Everything but
// the config is built on first use.
type Container struct {
	config        *config.Config
	log           *zap.SugaredLogger
	factory       *factory.Factory
	store         *storage.DocumentStore
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) *Container {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Container{
		config:        cfg,
		serverFactory: api.NewServerFactory(),
	}
}

// Config returns the configuration the container was built with
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the application logger at the configured level
func (c *Container) Logger() (*zap.SugaredLogger, error) {
	if c.log == nil {
		log, err := logging.New(c.config.Logging.Level)
		if err != nil {
			return nil, err
		}
		c.log = log
	}
	return c.log, nil
}

// SetLogger allows overriding the logger (for testing)
func (c *Container) SetLogger(log *zap.SugaredLogger) {
	c.log = log
}

// Factory returns the buffer factory for the configured schema
func (c *Container) Factory() (*factory.Factory, error) {
	if c.factory != nil {
		return c.factory, nil
	}
	log, err := c.Logger()
	if err != nil {
		return nil, err
	}
	s, err := LoadSchema(c.config.SchemaPath)
	if err != nil {
		return nil, err
	}
	c.factory = factory.New(s, factory.WithLogger(logging.WithServiceName(log, "factory")))
	return c.factory, nil
}

// Store opens the document store in the configured data directory
func (c *Container) Store() (*storage.DocumentStore, error) {
	if c.store != nil {
		return c.store, nil
	}
	f, err := c.Factory()
	if err != nil {
		return nil, err
	}
	log, err := c.Logger()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:               c.config.DataDir,
		Sync:               c.config.Storage.Sync,
		CompactConcurrency: c.config.Storage.CompactConcurrency,
	}, f, logging.WithServiceName(log, "storage"))
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// ServerConfig returns the API server settings from the configuration
func (c *Container) ServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Bind:   c.config.Bind,
		Port:   c.config.Port,
		APIKey: c.config.Security.APIKey,
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// Close releases the store and flushes the logger
func (c *Container) Close() error {
	var err error
	if c.store != nil {
		err = c.store.Close()
		c.store = nil
	}
	if c.log != nil {
		_ = c.log.Sync()
	}
	return err
}

// LoadSchema reads a schema description from path. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func LoadSchema(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return schema.ParseYAML(data)
	default:
		return schema.Parse(data)
	}
}
