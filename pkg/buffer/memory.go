package buffer

import (
	"encoding/binary"
	"math"
)

const (
	ptrSize = 4
	// rootOffset is where the root pointer lives; data starts after it.
	rootOffset = 0
	dataStart  = ptrSize
	maxArena   = math.MaxUint32
	// maxChain bounds every list and map walk so corrupt cycles terminate.
	maxChain = math.MaxUint16
)

// memory is the byte arena behind a buffer. All offsets go through these
// accessors, which check bounds on every access.
type memory struct {
	b []byte
}

func (m *memory) size() int { return len(m.b) }

func (m *memory) check(off uint32, n int) error {
	if uint64(off)+uint64(n) > uint64(len(m.b)) {
		return &BufferBoundsError{Offset: uint64(off), Length: uint64(n), Size: len(m.b)}
	}
	return nil
}

func (m *memory) slice(off uint32, n int) ([]byte, error) {
	if err := m.check(off, n); err != nil {
		return nil, err
	}
	return m.b[off : int(off)+n], nil
}

func (m *memory) u8(off uint32) (uint8, error) {
	if err := m.check(off, 1); err != nil {
		return 0, err
	}
	return m.b[off], nil
}

func (m *memory) u16(off uint32) (uint16, error) {
	if err := m.check(off, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(m.b[off:]), nil
}

func (m *memory) u32(off uint32) (uint32, error) {
	if err := m.check(off, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(m.b[off:]), nil
}

// ptr reads a pointer and checks that a non-null target is inside the data
// region.
func (m *memory) ptr(off uint32) (uint32, error) {
	p, err := m.u32(off)
	if err != nil || p == 0 {
		return 0, err
	}
	if p < dataStart || int64(p) >= int64(len(m.b)) {
		return 0, &BufferBoundsError{Offset: uint64(off), Msg: "pointer outside arena", Size: len(m.b)}
	}
	return p, nil
}

func (m *memory) put8(off uint32, v uint8) error {
	if err := m.check(off, 1); err != nil {
		return err
	}
	m.b[off] = v
	return nil
}

func (m *memory) put16(off uint32, v uint16) error {
	if err := m.check(off, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(m.b[off:], v)
	return nil
}

func (m *memory) put32(off uint32, v uint32) error {
	if err := m.check(off, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(m.b[off:], v)
	return nil
}

func (m *memory) write(off uint32, data []byte) error {
	if err := m.check(off, len(data)); err != nil {
		return err
	}
	copy(m.b[off:], data)
	return nil
}

func (m *memory) zero(off uint32, n int) error {
	if err := m.check(off, n); err != nil {
		return err
	}
	clear(m.b[off : int(off)+n])
	return nil
}

// malloc appends n zero bytes and returns their offset.
func (m *memory) malloc(n int) (uint32, error) {
	off := len(m.b)
	if uint64(off)+uint64(n) > maxArena {
		return 0, &CapacityError{What: "buffer size", Limit: maxArena}
	}
	m.b = append(m.b, make([]byte, n)...)
	return uint32(off), nil
}

// store appends data and returns its offset.
func (m *memory) store(data []byte) (uint32, error) {
	off := len(m.b)
	if uint64(off)+uint64(len(data)) > maxArena {
		return 0, &CapacityError{What: "buffer size", Limit: maxArena}
	}
	m.b = append(m.b, data...)
	return uint32(off), nil
}
