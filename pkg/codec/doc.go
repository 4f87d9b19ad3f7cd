// Package codec frames exported buffers for storage and transport.
//
// A buffer carries no schema and no checksum of its own. Before buffer bytes
// are written to disk or sent over the wire they are wrapped in a frame that
// records which schema they were written with and lets corruption be detected
// before the bytes are opened.
//
// # Frame Format
//
// Frames are serialized in a binary format with the following structure:
//
//	[CRC32(4)][Fingerprint(8)][Timestamp(8)][Size(4)][Payload]
//
// Fields:
//   - CRC32: checksum over every following field and the payload (big-endian)
//   - Fingerprint: schema fingerprint, see schema.Schema.Fingerprint (big-endian)
//   - Timestamp: 64-bit Unix timestamp in nanoseconds (big-endian)
//   - Size: payload length in bytes (big-endian)
//   - Payload: the buffer bytes
//
// The total frame size is: 24 bytes (header) + len(payload)
//
// # Usage
//
//	c := codec.NewFrameCodec()
//
//	framed, err := c.Encode(s.Fingerprint(), b.Bytes())
//	if err != nil {
//	    return err
//	}
//
//	frame, err := c.DecodeFor(s.Fingerprint(), framed)
//	if err != nil {
//	    return err // corrupt, truncated, or written under another schema
//	}
//	b, err = buffer.Open(s, frame.Payload)
//
// Decode alone only checks lengths; Validate checks the CRC32 and Check the
// fingerprint.
//
// # Thread Safety
//
// FrameCodec instances are safe for concurrent use. Decoded frames alias the
// input slice.
package codec
