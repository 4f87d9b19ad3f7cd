package api

import (
	"context"
	"encoding/json"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/factory"
	"github.com/ssargent/arenabuf/pkg/storage"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// DocumentResponse is a stored document rendered as JSON
type DocumentResponse struct {
	ID    string          `json:"id"`
	Size  int             `json:"size"`
	Value json.RawMessage `json:"value"`
}

// CompactResponse reports a single document compaction
type CompactResponse struct {
	ID     string `json:"id"`
	Before int    `json:"before_bytes"`
	After  int    `json:"after_bytes"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind   string
	Port   int
	APIKey string
}

// DocumentStore defines the document store operations the API needs
type DocumentStore interface {
	Factory() *factory.Factory
	Create(data []byte) (ksuid.KSUID, error)
	Read(id ksuid.KSUID) ([]byte, error)
	Open(id ksuid.KSUID) (*buffer.Buffer, error)
	Mutate(id ksuid.KSUID, work func(*buffer.Buffer) error) error
	Delete(id ksuid.KSUID) error
	Scan(ctx context.Context, fn func(id ksuid.KSUID, data []byte) error) error
	Compact(id ksuid.KSUID) (buffer.Sizes, error)
	CompactAll(ctx context.Context) (storage.CompactStats, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

var _ DocumentStore = (*storage.DocumentStore)(nil)
