package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"time"
)

// HeaderSize is the size of an encoded frame without its payload.
const HeaderSize = 24

var (
	// ErrChecksum is returned by Validate when the stored CRC32 does not match.
	ErrChecksum = errors.New("codec: checksum mismatch")
	// ErrFingerprint is returned by Check when a frame was written under a
	// different schema.
	ErrFingerprint = errors.New("codec: schema fingerprint mismatch")
)

// Frame wraps one exported buffer with the metadata needed to import it safely
type Frame struct {
	CRC32       uint32 // CRC32 checksum over everything after this field
	Fingerprint uint64 // Fingerprint of the schema the payload was written with
	Timestamp   uint64 // Unix timestamp in nanoseconds
	PayloadSize uint32 // Size of the payload in bytes
	Payload     []byte // Buffer bytes
}

// FrameCodec handles serialization and deserialization of frames
type FrameCodec struct{}

// NewFrameCodec creates a new frame codec instance
func NewFrameCodec() *FrameCodec {
	return &FrameCodec{}
}

// Encode wraps a buffer payload written under the schema with fingerprint fp.
// Format: [CRC32(4)][Fingerprint(8)][Timestamp(8)][Size(4)][Payload]
func (c *FrameCodec) Encode(fp uint64, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload too large: %d bytes", len(payload))
	}
	f := NewFrame(fp, payload)
	f.CRC32 = f.calculateCRC32()

	buf := make([]byte, f.Size())
	binary.BigEndian.PutUint32(buf[0:], f.CRC32)
	putHeader(buf[4:], f)
	copy(buf[HeaderSize:], f.Payload)

	return buf, nil
}

// Decode deserializes a frame. The payload aliases data. Decode does not
// verify the checksum; call Validate for that.
func (c *FrameCodec) Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("data too short for frame header: %d < %d", len(data), HeaderSize)
	}

	f := &Frame{}
	f.CRC32 = binary.BigEndian.Uint32(data[0:4])
	f.Fingerprint = binary.BigEndian.Uint64(data[4:12])
	f.Timestamp = binary.BigEndian.Uint64(data[12:20])
	f.PayloadSize = binary.BigEndian.Uint32(data[20:24])
	if uint64(len(data)) < HeaderSize+uint64(f.PayloadSize) {
		return nil, fmt.Errorf("data too short for payload size: %d < %d", len(data), HeaderSize+uint64(f.PayloadSize))
	}
	f.Payload = data[HeaderSize : HeaderSize+int(f.PayloadSize)]

	return f, nil
}

// DecodeFor decodes and validates a frame and checks it was written under the
// schema with fingerprint fp.
func (c *FrameCodec) DecodeFor(fp uint64, data []byte) (*Frame, error) {
	f, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := f.Check(fp); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the integrity of a frame using CRC32
func (f *Frame) Validate() error {
	if sum := f.calculateCRC32(); f.CRC32 != sum {
		return fmt.Errorf("%w: %d != %d", ErrChecksum, f.CRC32, sum)
	}
	return nil
}

// Check reports whether the frame was written under the schema with
// fingerprint fp.
func (f *Frame) Check(fp uint64) error {
	if f.Fingerprint != fp {
		return fmt.Errorf("%w: %016x != %016x", ErrFingerprint, f.Fingerprint, fp)
	}
	return nil
}

// Time is the frame timestamp.
func (f *Frame) Time() time.Time {
	return time.Unix(0, int64(f.Timestamp))
}

// Size returns the total size of the frame when encoded
func (f *Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

// NewFrame creates a new frame with the current timestamp
func NewFrame(fp uint64, payload []byte) *Frame {
	return &Frame{
		Fingerprint: fp,
		Timestamp:   uint64(time.Now().UnixNano()),
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}
}

func putHeader(dst []byte, f *Frame) {
	binary.BigEndian.PutUint64(dst[0:], f.Fingerprint)
	binary.BigEndian.PutUint64(dst[8:], f.Timestamp)
	binary.BigEndian.PutUint32(dst[16:], f.PayloadSize)
}

// calculateCRC32 computes the checksum over the header fields after the CRC
// and the payload
func (f *Frame) calculateCRC32() uint32 {
	var header [HeaderSize - 4]byte
	putHeader(header[:], f)

	crc := crc32.NewIEEE()
	_, _ = crc.Write(header[:])
	_, _ = crc.Write(f.Payload)
	return crc.Sum32()
}
