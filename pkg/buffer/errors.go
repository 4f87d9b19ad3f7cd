package buffer

import (
	"errors"
	"fmt"

	"github.com/ssargent/arenabuf/pkg/schema"
)

var (
	// ErrClosed is returned by every operation on a finished buffer.
	ErrClosed = errors.New("buffer: finished")
	// ErrNotSortable is returned by sort operations on buffers whose schema
	// does not support bytewise ordering.
	ErrNotSortable = errors.New("buffer: schema is not sortable")
	// ErrSchemaMismatch is returned when comparing buffers of different schemas.
	ErrSchemaMismatch = errors.New("buffer: schema mismatch")
)

// TypeMismatchError is returned when a Go value does not agree with the kind
// of the schema node it is read from or written to.
type TypeMismatchError struct {
	Path string
	Want schema.Kind
	Got  string
	Err  error
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("buffer: %q: %s does not fit %s", e.Path, e.Got, e.Want)
	if e.Err != nil {
		var ve *schema.ValueError
		if errors.As(e.Err, &ve) && ve.Reason != "" {
			msg += ": " + ve.Reason
		}
	}
	return msg
}

func (e *TypeMismatchError) Unwrap() error { return e.Err }

// CapacityError is returned when a write would exceed a structural limit:
// 65535 list items, map keys or key bytes, or a 4 GiB arena.
type CapacityError struct {
	What  string
	Limit uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("buffer: %s exceeds limit of %d", e.What, e.Limit)
}

// BufferBoundsError is returned when a pointer or length read from the arena
// does not fit inside it. It only occurs on corrupt or hostile input.
type BufferBoundsError struct {
	Offset uint64
	Length uint64
	Size   int
	Msg    string
}

func (e *BufferBoundsError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("buffer: out of bounds at offset %d: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("buffer: out of bounds: [%d, %d) exceeds size %d", e.Offset, e.Offset+e.Length, e.Size)
}

// PathError is returned for paths the schema cannot resolve.
type PathError struct {
	Path string
	Msg  string

	unknownColumn bool
}

func (e *PathError) Error() string {
	return fmt.Sprintf("buffer: path %q: %s", e.Path, e.Msg)
}

// isUnknownColumn reports whether err only names a table column the schema
// does not have. Reads treat such paths as absent.
func isUnknownColumn(err error) bool {
	var pe *PathError
	return errors.As(err, &pe) && pe.unknownColumn
}
