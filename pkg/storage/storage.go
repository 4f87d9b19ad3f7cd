// Package storage persists buffers in pebble.
//
// Documents are stored framed (see package codec) under their ksuid. For
// sortable schemas a second key space holds the sort key of every document,
// so Scan returns documents in value order straight from the LSM.
//
//	d/<ksuid>            framed buffer
//	s/<sort key><ksuid>  empty
//
// The sort key is written in the escaped, terminated form of
// sortenc.AppendBytes, so index keys order by sort key first whatever their
// lengths and the id can be split off unambiguously.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/codec"
	"github.com/ssargent/arenabuf/pkg/factory"
	"github.com/ssargent/arenabuf/pkg/sortenc"
)

var (
	docPrefix  = []byte("d/")
	sortPrefix = []byte("s/")
)

// ErrNotFound is returned for ids with no stored document.
var ErrNotFound = errors.New("storage: document not found")

// Config configures a DocumentStore.
type Config struct {
	Path string
	// Sync makes every write durable before it returns.
	Sync bool
	// CompactConcurrency bounds CompactAll; values below 1 mean 1.
	CompactConcurrency int
}

// CompactStats summarizes a CompactAll run.
type CompactStats struct {
	Documents int   `json:"documents"`
	Rewritten int   `json:"rewritten"`
	Before    int64 `json:"before_bytes"`
	After     int64 `json:"after_bytes"`
}

// Stats describes the store contents.
type Stats struct {
	Documents int   `json:"documents"`
	Bytes     int64 `json:"bytes"`
	Sortable  bool  `json:"sortable"`
}

// DocumentStore stores buffers of one schema. It is safe for concurrent use;
// writes to the same id are serialized.
type DocumentStore struct {
	db      *pebble.DB
	factory *factory.Factory
	codec   *codec.FrameCodec
	log     *zap.SugaredLogger
	cfg     Config
	wo      *pebble.WriteOptions
	locks   [lockStripes]sync.Mutex
}

const lockStripes = 64

// lock serializes writers of one id and returns the unlock function.
func (s *DocumentStore) lock(id ksuid.KSUID) func() {
	m := &s.locks[id.Payload()[len(id.Payload())-1]%lockStripes]
	m.Lock()
	return m.Unlock
}

// Open opens or creates a store at cfg.Path.
func Open(cfg Config, f *factory.Factory, log *zap.SugaredLogger) (*DocumentStore, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	db, err := pebble.Open(cfg.Path, &pebble.Options{Logger: log.Named("pebble")})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.Path, err)
	}
	wo := pebble.NoSync
	if cfg.Sync {
		wo = pebble.Sync
	}
	log.Debugw("opened document store", "path", cfg.Path, "sortable", f.Schema().Sortable())
	return &DocumentStore{
		db:      db,
		factory: f,
		codec:   codec.NewFrameCodec(),
		log:     log,
		cfg:     cfg,
		wo:      wo,
	}, nil
}

// Factory returns the factory documents are opened with.
func (s *DocumentStore) Factory() *factory.Factory { return s.factory }

func docKey(id ksuid.KSUID) []byte {
	return append(append([]byte(nil), docPrefix...), id.Bytes()...)
}

func sortIndexKey(sortKey []byte, id ksuid.KSUID) []byte {
	k := make([]byte, 0, len(sortPrefix)+len(sortKey)+2+len(id))
	k = append(k, sortPrefix...)
	k = sortenc.AppendBytes(k, sortKey)
	return append(k, id.Bytes()...)
}

// splitIndexKey is the inverse of sortIndexKey.
func splitIndexKey(k []byte) ([]byte, ksuid.KSUID, error) {
	if len(k) < len(sortPrefix) {
		return nil, ksuid.Nil, fmt.Errorf("storage: malformed index key %x", k)
	}
	sortKey, rest, err := sortenc.DecodeBytes(k[len(sortPrefix):])
	if err != nil {
		return nil, ksuid.Nil, fmt.Errorf("storage: malformed index key %x: %w", k, err)
	}
	id, err := ksuid.FromBytes(rest)
	if err != nil {
		return nil, ksuid.Nil, fmt.Errorf("storage: malformed index key %x: %w", k, err)
	}
	return sortKey, id, nil
}

// prefixEnd is the smallest key greater than every key starting with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// check opens data under the store's schema, returning the buffer so callers
// can derive the sort key.
func (s *DocumentStore) check(data []byte) (*buffer.Buffer, error) {
	b, err := s.factory.OpenBuffer(append([]byte(nil), data...))
	if err != nil {
		return nil, fmt.Errorf("invalid buffer: %w", err)
	}
	return b, nil
}

func (s *DocumentStore) put(batch *pebble.Batch, id ksuid.KSUID, b *buffer.Buffer) error {
	framed, err := s.codec.Encode(s.factory.Schema().Fingerprint(), b.Bytes())
	if err != nil {
		return err
	}
	if err := batch.Set(docKey(id), framed, nil); err != nil {
		return err
	}
	if !s.factory.Schema().Sortable() {
		return nil
	}
	key, err := b.SortKey()
	if err != nil {
		return err
	}
	return batch.Set(sortIndexKey(key, id), nil, nil)
}

// unindex removes the sort index entry of the currently stored document.
func (s *DocumentStore) unindex(batch *pebble.Batch, id ksuid.KSUID, old []byte) error {
	if !s.factory.Schema().Sortable() {
		return nil
	}
	b, err := s.factory.OpenBuffer(old)
	if err != nil {
		return err
	}
	key, err := b.SortKey()
	if err != nil {
		return err
	}
	return batch.Delete(sortIndexKey(key, id), nil)
}

// Create stores data, which must open under the store's schema, under a new id.
func (s *DocumentStore) Create(data []byte) (ksuid.KSUID, error) {
	b, err := s.check(data)
	if err != nil {
		return ksuid.Nil, err
	}
	id := ksuid.New()

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := s.put(batch, id, b); err != nil {
		return ksuid.Nil, err
	}
	if err := batch.Commit(s.wo); err != nil {
		return ksuid.Nil, fmt.Errorf("failed to create document: %w", err)
	}
	s.log.Debugw("created document", "id", id, "size", b.Size())
	return id, nil
}

// Read returns the buffer bytes stored under id.
func (s *DocumentStore) Read(id ksuid.KSUID) ([]byte, error) {
	value, closer, err := s.db.Get(docKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	frame, err := s.codec.DecodeFor(s.factory.Schema().Fingerprint(), value)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return append([]byte(nil), frame.Payload...), nil
}

// Open reads the document stored under id into a buffer.
func (s *DocumentStore) Open(id ksuid.KSUID) (*buffer.Buffer, error) {
	data, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	return s.factory.OpenBuffer(data)
}

// Update replaces the document stored under id.
func (s *DocumentStore) Update(id ksuid.KSUID, data []byte) error {
	b, err := s.check(data)
	if err != nil {
		return err
	}
	defer s.lock(id)()
	return s.replace(id, b)
}

func (s *DocumentStore) replace(id ksuid.KSUID, b *buffer.Buffer) error {
	old, err := s.Read(id)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := s.unindex(batch, id, old); err != nil {
		return err
	}
	if err := s.put(batch, id, b); err != nil {
		return err
	}
	if err := batch.Commit(s.wo); err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

// Mutate runs work against the document stored under id and stores the
// result. Nothing is stored when work fails.
func (s *DocumentStore) Mutate(id ksuid.KSUID, work func(*buffer.Buffer) error) error {
	defer s.lock(id)()

	data, err := s.Read(id)
	if err != nil {
		return err
	}
	out, err := s.factory.Open(factory.Import(data), work)
	if err != nil {
		return err
	}
	b, err := s.factory.OpenBuffer(out)
	if err != nil {
		return err
	}
	return s.replace(id, b)
}

// Delete removes the document stored under id.
func (s *DocumentStore) Delete(id ksuid.KSUID) error {
	defer s.lock(id)()

	old, err := s.Read(id)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := s.unindex(batch, id, old); err != nil {
		return err
	}
	if err := batch.Delete(docKey(id), nil); err != nil {
		return err
	}
	return batch.Commit(s.wo)
}

// Scan calls fn for every document: in sort order for sortable schemas,
// otherwise in id (creation time) order. Returning an error from fn stops the
// scan and returns that error.
func (s *DocumentStore) Scan(ctx context.Context, fn func(id ksuid.KSUID, data []byte) error) error {
	if !s.factory.Schema().Sortable() {
		return s.each(ctx, docPrefix, func(k, v []byte) error {
			id, err := ksuid.FromBytes(k[len(docPrefix):])
			if err != nil {
				return err
			}
			frame, err := s.codec.DecodeFor(s.factory.Schema().Fingerprint(), v)
			if err != nil {
				return fmt.Errorf("document %s: %w", id, err)
			}
			return fn(id, append([]byte(nil), frame.Payload...))
		})
	}
	return s.each(ctx, sortPrefix, func(k, _ []byte) error {
		_, id, err := splitIndexKey(k)
		if err != nil {
			return err
		}
		data, err := s.Read(id)
		if err != nil {
			return err
		}
		return fn(id, data)
	})
}

// each iterates the keys under prefix. k and v are only valid during fn.
func (s *DocumentStore) each(ctx context.Context, prefix []byte, fn func(k, v []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// IDs lists every document id in id order.
func (s *DocumentStore) IDs(ctx context.Context) ([]ksuid.KSUID, error) {
	var ids []ksuid.KSUID
	err := s.each(ctx, docPrefix, func(k, _ []byte) error {
		id, err := ksuid.FromBytes(k[len(docPrefix):])
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// Compact compacts one stored document and reports its size before and after.
func (s *DocumentStore) Compact(id ksuid.KSUID) (buffer.Sizes, error) {
	defer s.lock(id)()

	b, err := s.Open(id)
	if err != nil {
		return buffer.Sizes{}, err
	}
	sizes, err := b.CalcBytes()
	if err != nil || sizes.Reclaimable() == 0 {
		return sizes, err
	}
	if err := b.Compact(); err != nil {
		return sizes, err
	}
	return sizes, s.replace(id, b)
}

// CompactAll compacts every stored document, at most cfg.CompactConcurrency
// at a time.
func (s *DocumentStore) CompactAll(ctx context.Context) (CompactStats, error) {
	ids, err := s.IDs(ctx)
	if err != nil {
		return CompactStats{}, err
	}

	var (
		mu    sync.Mutex
		stats = CompactStats{Documents: len(ids)}
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.CompactConcurrency, 1))
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sizes, err := s.Compact(id)
			if err != nil {
				return fmt.Errorf("failed to compact %s: %w", id, err)
			}
			mu.Lock()
			defer mu.Unlock()
			stats.Before += int64(sizes.Current)
			stats.After += int64(sizes.AfterCompaction)
			if sizes.Reclaimable() > 0 {
				stats.Rewritten++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	s.log.Debugw("compacted store", "documents", stats.Documents, "rewritten", stats.Rewritten,
		"before", stats.Before, "after", stats.After)
	return stats, nil
}

// Stats counts the stored documents and their buffer bytes.
func (s *DocumentStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Sortable: s.factory.Schema().Sortable()}
	err := s.each(ctx, docPrefix, func(_, v []byte) error {
		st.Documents++
		if len(v) > codec.HeaderSize {
			st.Bytes += int64(len(v) - codec.HeaderSize)
		}
		return nil
	})
	return st, err
}

// Close closes the underlying database.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}
