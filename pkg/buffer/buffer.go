package buffer

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ssargent/arenabuf/pkg/schema"
)

// Buffer is one document: a byte arena laid out by a schema. A Buffer is not
// safe for concurrent use.
type Buffer struct {
	schema   *schema.Schema
	mem      memory
	sortable bool
	closed   bool
	log      *zap.SugaredLogger
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithLogger sets the logger used for compaction diagnostics.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(b *Buffer) {
		if log != nil {
			b.log = log
		}
	}
}

// New returns an empty buffer. Buffers of sortable schemas are created with
// their fixed layout already in place.
func New(s *schema.Schema, opts ...Option) *Buffer {
	b := newBuffer(s, opts)
	b.mem.b = make([]byte, dataStart, 64)
	if b.sortable {
		// Cannot fail: the root layout is far below the arena limit.
		p, _ := b.mem.malloc(rootWidth(s.Root()))
		_ = b.mem.put32(rootOffset, p)
	}
	return b
}

// Open wraps previously exported bytes. The buffer takes ownership of data.
// The header and root pointer are validated here; everything else is checked
// as it is dereferenced.
func Open(s *schema.Schema, data []byte, opts ...Option) (*Buffer, error) {
	b := newBuffer(s, opts)
	if len(data) < dataStart {
		return nil, &BufferBoundsError{Length: dataStart, Size: len(data)}
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, &CapacityError{What: "buffer size", Limit: maxArena}
	}
	b.mem.b = data
	root, err := b.mem.ptr(rootOffset)
	if err != nil {
		return nil, err
	}
	if b.sortable {
		if root != dataStart {
			return nil, &BufferBoundsError{Offset: rootOffset, Size: len(data), Msg: "sortable buffer without fixed root"}
		}
		if err := b.mem.check(dataStart, rootWidth(s.Root())); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func newBuffer(s *schema.Schema, opts []Option) *Buffer {
	b := &Buffer{
		schema:   s,
		sortable: s.Sortable(),
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Schema returns the schema the buffer was opened with.
func (b *Buffer) Schema() *schema.Schema { return b.schema }

// Size is the current arena length in bytes, including orphaned space.
func (b *Buffer) Size() int { return b.mem.size() }

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.mem.b))
	copy(out, b.mem.b)
	return out
}

// Finish returns the buffer contents without copying and closes the buffer.
func (b *Buffer) Finish() []byte {
	out := b.mem.b
	b.mem.b = nil
	b.closed = true
	return out
}

// Get returns the value at path. A missing value reports ok == false with a
// nil error, including when a collection on the way is absent.
func (b *Buffer) Get(path string) (any, bool, error) {
	if b.closed {
		return nil, false, ErrClosed
	}
	steps, _, ok, err := resolveRead(b.schema.Root(), ParsePath(path))
	if err != nil || !ok {
		return nil, false, err
	}
	l, ok, err := b.find(steps, false)
	if err != nil || !ok {
		return nil, false, err
	}
	return b.read(l)
}

// resolveRead is resolve for reads: a column the schema does not know, such
// as one added by a later revision, resolves to nothing with a nil error.
func resolveRead(root *schema.Node, p Path) ([]step, *schema.Node, bool, error) {
	steps, target, err := resolve(root, p)
	if err != nil {
		if isUnknownColumn(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	return steps, target, true, nil
}

// GetOrDefault is Get falling back to the schema default of an absent scalar.
func (b *Buffer) GetOrDefault(path string) (any, bool, error) {
	v, ok, err := b.Get(path)
	if err != nil || ok {
		return v, ok, err
	}
	_, target, ok, err := resolveRead(b.schema.Root(), ParsePath(path))
	if err != nil || !ok {
		return nil, false, err
	}
	if target.Default != nil {
		return target.Default, true, nil
	}
	return nil, false, nil
}

// GetAs is Get with the result asserted to T.
func GetAs[T any](b *Buffer, path string) (T, bool, error) {
	var zero T
	v, ok, err := b.Get(path)
	if err != nil || !ok {
		return zero, ok, err
	}
	t, ok := v.(T)
	if !ok {
		_, target, _ := resolve(b.schema.Root(), ParsePath(path))
		return zero, false, &TypeMismatchError{Path: path, Want: target.Kind, Got: fmt.Sprintf("%T", zero)}
	}
	return t, true, nil
}

// Set stores v at path, creating collections on the way. The value is fully
// validated before the buffer is modified. A nil v deletes.
func (b *Buffer) Set(path string, v any) error {
	if b.closed {
		return ErrClosed
	}
	if v == nil {
		return b.Delete(path)
	}
	p := ParsePath(path)
	steps, target, err := resolve(b.schema.Root(), p)
	if err != nil {
		return err
	}
	prepared, err := prepare(p, target, v)
	if err != nil {
		return err
	}
	l, _, err := b.find(steps, true)
	if err != nil {
		return err
	}
	return b.write(l, prepared)
}

// Delete makes the value at path absent. Deleting something that is already
// absent is not an error.
func (b *Buffer) Delete(path string) error {
	if b.closed {
		return ErrClosed
	}
	steps, _, err := resolve(b.schema.Root(), ParsePath(path))
	if err != nil {
		return err
	}
	l, ok, err := b.find(steps, false)
	if err != nil || !ok {
		return err
	}
	return b.clear(l)
}

// Push appends v to the list at path and returns its index.
func (b *Buffer) Push(path string, v any) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	p := ParsePath(path)
	steps, target, err := resolve(b.schema.Root(), p)
	if err != nil {
		return 0, err
	}
	if target.Kind != schema.KindList {
		return 0, &PathError{Path: p.String(), Msg: fmt.Sprintf("push needs a list, not %s", target.Kind)}
	}
	prepared, err := prepare(append(p[:len(p):len(p)], "-"), target.Of, v)
	if err != nil {
		return 0, err
	}
	l, _, err := b.find(steps, true)
	if err != nil {
		return 0, err
	}
	addr, _, err := b.containerAddr(l, true)
	if err != nil {
		return 0, err
	}
	h, err := b.readHeader(addr)
	if err != nil {
		return 0, err
	}
	next := 0
	if h.tail != 0 {
		last, err := b.mem.u16(h.tail + 8)
		if err != nil {
			return 0, err
		}
		next = int(last) + 1
	}
	if next >= math.MaxUint16 {
		return 0, &CapacityError{What: "list length", Limit: math.MaxUint16}
	}
	if err := b.writeChild(l, addr, step{kind: stepIndex, pos: next, parent: target, node: target.Of}, prepared); err != nil {
		return 0, err
	}
	return next, nil
}

// Len counts the present entries of the collection at path.
func (b *Buffer) Len(path string) (int, error) {
	it, err := b.Iter(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Err()
}
