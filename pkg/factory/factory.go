// Package factory binds one schema to many buffer lifecycles.
//
// A Factory is safe for concurrent use; the buffers it hands out are not, and
// each belongs to exactly one caller until it is released.
package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/schema"
)

// Source says where a buffer's initial contents come from.
type Source struct {
	data     []byte
	imported bool
}

// Empty starts from an empty buffer.
func Empty() Source { return Source{} }

// Import starts from previously exported bytes. The buffer takes ownership of
// data.
func Import(data []byte) Source { return Source{data: data, imported: true} }

// Factory creates buffers for a single schema.
type Factory struct {
	schema *schema.Schema
	log    *zap.SugaredLogger
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger handed to every buffer the factory creates.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(f *Factory) {
		if log != nil {
			f.log = log
		}
	}
}

// New creates a factory for s.
func New(s *schema.Schema, opts ...Option) *Factory {
	f := &Factory{schema: s, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFromJSON parses a JSON schema description and creates a factory for it.
func NewFromJSON(desc []byte, opts ...Option) (*Factory, error) {
	s, err := schema.Parse(desc)
	if err != nil {
		return nil, err
	}
	return New(s, opts...), nil
}

// Schema returns the factory's schema.
func (f *Factory) Schema() *schema.Schema { return f.schema }

// NewBuffer returns an empty buffer.
func (f *Factory) NewBuffer() *buffer.Buffer {
	return buffer.New(f.schema, buffer.WithLogger(f.log))
}

// OpenBuffer wraps exported bytes in a buffer.
func (f *Factory) OpenBuffer(data []byte) (*buffer.Buffer, error) {
	return buffer.Open(f.schema, data, buffer.WithLogger(f.log))
}

// Lease is exclusive use of one buffer. Release ends it and hands back the
// final bytes.
type Lease struct {
	buf      *buffer.Buffer
	out      []byte
	released bool
}

// Acquire binds a buffer built from src to a new lease.
func (f *Factory) Acquire(src Source) (*Lease, error) {
	if !src.imported {
		return &Lease{buf: f.NewBuffer()}, nil
	}
	b, err := f.OpenBuffer(src.data)
	if err != nil {
		return nil, fmt.Errorf("failed to import buffer: %w", err)
	}
	return &Lease{buf: b}, nil
}

// Buffer is the leased buffer. It must not be used after Release.
func (l *Lease) Buffer() *buffer.Buffer { return l.buf }

// Release closes the buffer and returns its bytes. Calling it again returns
// the same bytes.
func (l *Lease) Release() []byte {
	if !l.released {
		l.out = l.buf.Finish()
		l.released = true
	}
	return l.out
}

// Open runs work against a buffer built from src and returns the buffer's
// final bytes. The bytes are returned even when work fails, reflecting every
// mutation made before the failure; there is no rollback. A panic inside work
// is recovered and reported as an error.
func (f *Factory) Open(src Source, work func(*buffer.Buffer) error) (out []byte, err error) {
	lease, err := f.Acquire(src)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory: work panicked: %v", r)
		}
		out = lease.Release()
		if err != nil {
			f.log.Debugw("buffer work failed", "error", err, "size", len(out))
		}
	}()
	return nil, work(lease.Buffer())
}
