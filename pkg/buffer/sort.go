package buffer

import (
	"bytes"
)

// SortKey returns the fixed layout of a sortable buffer. Keys of buffers with
// the same schema compare with bytes.Compare exactly as their values do:
// sorted tuples item by item, absent before present.
func (b *Buffer) SortKey() ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if !b.sortable {
		return nil, ErrNotSortable
	}
	key, err := b.mem.slice(dataStart, rootWidth(b.schema.Root()))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), key...), nil
}

// Compare orders two buffers of the same sortable schema.
func Compare(a, b *Buffer) (int, error) {
	if a.schema.Fingerprint() != b.schema.Fingerprint() {
		return 0, ErrSchemaMismatch
	}
	ka, err := a.SortKey()
	if err != nil {
		return 0, err
	}
	kb, err := b.SortKey()
	if err != nil {
		return 0, err
	}
	return bytes.Compare(ka, kb), nil
}
