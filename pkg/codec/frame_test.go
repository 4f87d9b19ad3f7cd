package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

const testFingerprint = 0x0123456789ABCDEF

func TestFrameCodec_EncodeDecodeRoundTrip(t *testing.T) {
	codec := NewFrameCodec()

	testCases := []struct {
		name    string
		payload []byte
	}{
		{
			name:    "empty buffer",
			payload: []byte{0, 0, 0, 0},
		},
		{
			name:    "empty payload",
			payload: []byte{},
		},
		{
			name:    "small buffer",
			payload: []byte{0, 0, 0, 4, 0, 1, 0, 0, 0, 10, 0, 0, 0, 5, 'A', 'l', 'i', 'c', 'e'},
		},
		{
			name:    "large buffer",
			payload: bytes.Repeat([]byte{0xAB}, 64*1024),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := codec.Encode(testFingerprint, tc.payload)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			if len(encoded) != HeaderSize+len(tc.payload) {
				t.Errorf("Encoded size mismatch: got %d, want %d", len(encoded), HeaderSize+len(tc.payload))
			}

			frame, err := codec.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if err := frame.Validate(); err != nil {
				t.Fatalf("Frame validation failed: %v", err)
			}

			if !bytes.Equal(frame.Payload, tc.payload) {
				t.Errorf("Payload mismatch: got %d bytes, want %d", len(frame.Payload), len(tc.payload))
			}

			if frame.Fingerprint != testFingerprint {
				t.Errorf("Fingerprint mismatch: got %x, want %x", frame.Fingerprint, uint64(testFingerprint))
			}

			if frame.PayloadSize != uint32(len(tc.payload)) {
				t.Errorf("Size mismatch: got %d, want %d", frame.PayloadSize, len(tc.payload))
			}

			// Check timestamp is reasonable (within last minute)
			if age := time.Since(frame.Time()); age < 0 || age > time.Minute {
				t.Errorf("Timestamp seems unreasonable: %d", frame.Timestamp)
			}
		})
	}
}

func TestFrameCodec_BigEndianHeader(t *testing.T) {
	encoded, err := NewFrameCodec().Encode(testFingerprint, []byte("abc"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if got := binary.BigEndian.Uint64(encoded[4:12]); got != testFingerprint {
		t.Errorf("Fingerprint not big-endian at offset 4: %x", got)
	}
	if got := binary.BigEndian.Uint32(encoded[20:24]); got != 3 {
		t.Errorf("Size not big-endian at offset 20: %d", got)
	}
	if !bytes.Equal(encoded[24:], []byte("abc")) {
		t.Errorf("Payload not at offset 24: %q", encoded[24:])
	}
}

func TestFrameCodec_CRCValidation(t *testing.T) {
	codec := NewFrameCodec()
	payload := []byte{0, 0, 0, 4, 1, 2, 3, 4}

	corruptions := []struct {
		name   string
		offset int
	}{
		{name: "corrupted CRC", offset: 0},
		{name: "corrupted fingerprint", offset: 4},
		{name: "corrupted timestamp", offset: 12},
		{name: "corrupted payload", offset: HeaderSize + 2},
	}

	for _, tc := range corruptions {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := codec.Encode(testFingerprint, payload)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			encoded[tc.offset] ^= 0xFF

			frame, err := codec.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if err := frame.Validate(); !errors.Is(err, ErrChecksum) {
				t.Errorf("Expected ErrChecksum, got %v", err)
			}
		})
	}
}

func TestFrameCodec_DecodeFor(t *testing.T) {
	codec := NewFrameCodec()
	encoded, err := codec.Encode(testFingerprint, []byte{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := codec.DecodeFor(testFingerprint, encoded); err != nil {
		t.Errorf("DecodeFor with matching fingerprint failed: %v", err)
	}

	if _, err := codec.DecodeFor(testFingerprint+1, encoded); !errors.Is(err, ErrFingerprint) {
		t.Errorf("Expected ErrFingerprint, got %v", err)
	}

	encoded[len(encoded)-1] ^= 0xFF
	if _, err := codec.DecodeFor(testFingerprint, encoded); !errors.Is(err, ErrChecksum) {
		t.Errorf("Expected ErrChecksum, got %v", err)
	}
}

func TestFrameCodec_MalformedData(t *testing.T) {
	codec := NewFrameCodec()

	testCases := []struct {
		name string
		data []byte
	}{
		{
			name: "empty data",
			data: []byte{},
		},
		{
			name: "too short for header",
			data: []byte{0x01, 0x02, 0x03},
		},
		{
			name: "insufficient data for declared size",
			data: func() []byte {
				buf := make([]byte, HeaderSize+5)
				binary.BigEndian.PutUint32(buf[20:24], 100)
				return buf
			}(),
		},
		{
			name: "maximum declared size",
			data: func() []byte {
				buf := make([]byte, HeaderSize)
				binary.BigEndian.PutUint32(buf[20:24], 0xFFFFFFFF)
				return buf
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.Decode(tc.data)
			if err == nil {
				t.Errorf("Expected decode to fail for malformed data, but it succeeded (%s)", tc.name)
			}
		})
	}
}

func TestFrameCodec_TrailingBytesIgnored(t *testing.T) {
	codec := NewFrameCodec()
	encoded, err := codec.Encode(testFingerprint, []byte("payload"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	frame, err := codec.Decode(append(encoded, 0xDE, 0xAD))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if err := frame.Validate(); err != nil {
		t.Errorf("Validation failed with trailing bytes: %v", err)
	}
	if string(frame.Payload) != "payload" {
		t.Errorf("Payload mismatch: %q", frame.Payload)
	}
}

func TestNewFrame(t *testing.T) {
	payload := []byte{0, 0, 0, 0}
	frame := NewFrame(testFingerprint, payload)

	if frame.PayloadSize != uint32(len(payload)) {
		t.Errorf("Size mismatch: got %d, want %d", frame.PayloadSize, len(payload))
	}

	if frame.Size() != HeaderSize+len(payload) {
		t.Errorf("Encoded size mismatch: got %d, want %d", frame.Size(), HeaderSize+len(payload))
	}

	// CRC32 should be zero initially (set during encoding)
	if frame.CRC32 != 0 {
		t.Errorf("Expected CRC32 to be zero initially, got %d", frame.CRC32)
	}

	crc := frame.calculateCRC32()
	if crc != frame.calculateCRC32() {
		t.Error("CRC32 calculation is not deterministic")
	}

	other := NewFrame(testFingerprint+1, payload)
	other.Timestamp = frame.Timestamp
	if crc == other.calculateCRC32() {
		t.Error("Different fingerprints produced same CRC32 (highly unlikely)")
	}
}
