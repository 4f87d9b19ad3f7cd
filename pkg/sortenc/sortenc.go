package sortenc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Presence flags written ahead of values that take part in ordering.
const (
	Absent  byte = 0x00
	Present byte = 0x01
)

const (
	escapeByte     = 0x00
	escapedZero    = 0xFF
	terminatorByte = 0x01
)

// MaxFixedSize is the largest payload AppendFixed accepts.
const MaxFixedSize = math.MaxUint16

var (
	// ErrTooLong is returned when a payload does not fit its fixed size.
	ErrTooLong = errors.New("sortenc: value longer than fixed size")
	// ErrCorrupt is returned when encoded input cannot be decoded.
	ErrCorrupt = errors.New("sortenc: corrupt encoding")
)

// AppendUint8 appends v.
func AppendUint8(dst []byte, v uint8) []byte {
	return append(dst, v)
}

// AppendUint16 appends v big-endian.
func AppendUint16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

// AppendUint32 appends v big-endian.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// AppendUint64 appends v big-endian.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

// Uint8 decodes a value written by AppendUint8.
func Uint8(b []byte) uint8 { return b[0] }

// Uint16 decodes a value written by AppendUint16.
func Uint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

// Uint32 decodes a value written by AppendUint32.
func Uint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// Uint64 decodes a value written by AppendUint64.
func Uint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// AppendInt8 appends v with the sign bit flipped.
func AppendInt8(dst []byte, v int8) []byte {
	return append(dst, uint8(v)^0x80)
}

// AppendInt16 appends v big-endian with the sign bit flipped.
func AppendInt16(dst []byte, v int16) []byte {
	return binary.BigEndian.AppendUint16(dst, uint16(v)^(1<<15))
}

// AppendInt32 appends v big-endian with the sign bit flipped.
func AppendInt32(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v)^(1<<31))
}

// AppendInt64 appends v big-endian with the sign bit flipped.
func AppendInt64(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v)^(1<<63))
}

// Int8 decodes a value written by AppendInt8.
func Int8(b []byte) int8 { return int8(b[0] ^ 0x80) }

// Int16 decodes a value written by AppendInt16.
func Int16(b []byte) int16 { return int16(binary.BigEndian.Uint16(b) ^ (1 << 15)) }

// Int32 decodes a value written by AppendInt32.
func Int32(b []byte) int32 { return int32(binary.BigEndian.Uint32(b) ^ (1 << 31)) }

// Int64 decodes a value written by AppendInt64.
func Int64(b []byte) int64 { return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)) }

// AppendFloat32 appends the order-preserving form of v.
func AppendFloat32(dst []byte, v float32) []byte {
	var bits uint32
	switch {
	case v != v:
		bits = 0x7FC00000
	case v == 0:
		bits = 0
	default:
		bits = math.Float32bits(v)
	}
	if bits&(1<<31) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 31
	}
	return binary.BigEndian.AppendUint32(dst, bits)
}

// AppendFloat64 appends the order-preserving form of v.
func AppendFloat64(dst []byte, v float64) []byte {
	var bits uint64
	switch {
	case math.IsNaN(v):
		bits = 0x7FF8000000000001
	case v == 0:
		bits = 0
	default:
		bits = math.Float64bits(v)
	}
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return binary.BigEndian.AppendUint64(dst, bits)
}

// Float32 decodes a value written by AppendFloat32.
func Float32(b []byte) float32 {
	bits := binary.BigEndian.Uint32(b)
	if bits&(1<<31) != 0 {
		bits &^= 1 << 31
	} else {
		bits = ^bits
	}
	return math.Float32frombits(bits)
}

// Float64 decodes a value written by AppendFloat64.
func Float64(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// AppendBool appends 0x01 for true and 0x00 for false.
func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// Bool decodes a value written by AppendBool.
func Bool(b []byte) bool { return b[0] != 0 }

// AppendBytes appends the escaped, terminated key form of v.
func AppendBytes(dst []byte, v []byte) []byte {
	for _, c := range v {
		if c == escapeByte {
			dst = append(dst, escapeByte, escapedZero)
			continue
		}
		dst = append(dst, c)
	}
	return append(dst, escapeByte, terminatorByte)
}

// AppendString is AppendBytes for strings.
func AppendString(dst []byte, v string) []byte {
	return AppendBytes(dst, []byte(v))
}

// DecodeBytes decodes one key-encoded value from the front of b and returns it
// together with the remaining input.
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != escapeByte {
			out = append(out, b[i])
			continue
		}
		if i+1 >= len(b) {
			return nil, nil, ErrCorrupt
		}
		switch b[i+1] {
		case escapedZero:
			out = append(out, 0)
			i++
		case terminatorByte:
			return out, b[i+2:], nil
		default:
			return nil, nil, fmt.Errorf("%w: escape 0x00 0x%02x at %d", ErrCorrupt, b[i+1], i)
		}
	}
	return nil, nil, fmt.Errorf("%w: missing terminator", ErrCorrupt)
}

// FixedWidth is the number of bytes AppendFixed writes for a given size.
func FixedWidth(size int) int {
	return size + 2
}

// AppendFixed appends v zero-padded to size bytes followed by len(v) as a
// big-endian uint16.
func AppendFixed(dst []byte, v []byte, size int) ([]byte, error) {
	if size > MaxFixedSize {
		return dst, fmt.Errorf("sortenc: fixed size %d exceeds %d", size, MaxFixedSize)
	}
	if len(v) > size {
		return dst, fmt.Errorf("%w: %d > %d", ErrTooLong, len(v), size)
	}
	dst = append(dst, v...)
	for i := len(v); i < size; i++ {
		dst = append(dst, 0)
	}
	return binary.BigEndian.AppendUint16(dst, uint16(len(v))), nil
}

// Fixed decodes a value written by AppendFixed with the same size.
func Fixed(b []byte, size int) ([]byte, error) {
	if len(b) < FixedWidth(size) {
		return nil, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint16(b[size:]))
	if n > size {
		return nil, fmt.Errorf("%w: fixed length %d > size %d", ErrCorrupt, n, size)
	}
	out := make([]byte, n)
	copy(out, b[:n])
	return out, nil
}
