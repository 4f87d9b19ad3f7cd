//go:build fuzz
// +build fuzz

package codec

import (
	"bytes"
	"testing"
)

// FuzzFrameCodec_RoundTrip tests encode/decode round-trip with random inputs
func FuzzFrameCodec_RoundTrip(f *testing.F) {
	codec := NewFrameCodec()

	f.Add(uint64(0), []byte{})
	f.Add(uint64(1), []byte{0, 0, 0, 0})
	f.Add(uint64(0xFFFFFFFFFFFFFFFF), []byte{0, 0, 0, 4, 0, 1, 0, 0, 0, 0})

	f.Fuzz(func(t *testing.T, fp uint64, payload []byte) {
		if len(payload) > 100000 {
			t.Skip("Input too large for fuzz test")
		}

		encoded, err := codec.Encode(fp, payload)
		if err != nil {
			t.Fatalf("Encode failed for %d bytes: %v", len(payload), err)
		}

		frame, err := codec.DecodeFor(fp, encoded)
		if err != nil {
			t.Fatalf("DecodeFor failed: %v", err)
		}

		if !bytes.Equal(frame.Payload, payload) {
			t.Errorf("Payload mismatch: got %x, want %x", frame.Payload, payload)
		}

		if frame.Size() != HeaderSize+len(payload) {
			t.Errorf("Size mismatch: got %d, want %d", frame.Size(), HeaderSize+len(payload))
		}
	})
}

// FuzzFrameCodec_CorruptionDetection tests that single byte corruption is
// always detected
func FuzzFrameCodec_CorruptionDetection(f *testing.F) {
	codec := NewFrameCodec()

	f.Add([]byte{0, 0, 0, 0}, uint(0))
	f.Add([]byte{0, 0, 0, 4, 1, 2, 3}, uint(5))
	f.Add([]byte("payload"), uint(26))

	f.Fuzz(func(t *testing.T, payload []byte, corruptPos uint) {
		if len(payload) > 10000 {
			t.Skip("Input too large for fuzz test")
		}

		encoded, err := codec.Encode(42, payload)
		if err != nil {
			t.Skip("Encode failed, skipping")
		}

		if int(corruptPos) >= len(encoded) {
			t.Skip("Corruption position beyond data length")
		}

		corrupted := make([]byte, len(encoded))
		copy(corrupted, encoded)
		corrupted[corruptPos] ^= 0xFF

		frame, err := codec.Decode(corrupted)
		if err != nil {
			// Decode failure is acceptable for corrupted data
			return
		}

		if err := frame.Validate(); err == nil {
			t.Errorf("Corruption not detected! Original: %x, Corrupted: %x, Position: %d",
				encoded, corrupted, corruptPos)
		}
	})
}

// FuzzFrameCodec_MalformedData tests that random input never panics
func FuzzFrameCodec_MalformedData(f *testing.F) {
	codec := NewFrameCodec()

	f.Add([]byte{})
	f.Add([]byte{0x01})
	f.Add(make([]byte, HeaderSize-1))
	f.Add(make([]byte, HeaderSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 100000 {
			t.Skip("Input too large for fuzz test")
		}

		frame, err := codec.Decode(data)
		if err == nil {
			_ = frame.Validate()
		}
	})
}
