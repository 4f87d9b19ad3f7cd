// Package sortenc provides monotone byte encodings for scalar values.
//
// Every encoding in this package has the property that comparing two encoded
// values with bytes.Compare gives the same result as comparing the values
// themselves. Buffers use these encodings for every scalar they store, which is
// what makes two buffers of the same sortable schema comparable byte for byte.
//
// # Integers
//
// Unsigned integers are written big-endian at their natural width. Signed
// integers are written big-endian with the sign bit flipped, which maps the
// two's-complement range onto the unsigned range in order:
//
//	-128 -> 0x00, -1 -> 0x7F, 0 -> 0x80, 127 -> 0xFF
//
// # Floating point
//
// Floats use the usual sign-magnitude transform: positive values get the sign
// bit set, negative values have every bit inverted. Negative zero is encoded as
// positive zero. NaN is canonicalised to a single quiet NaN that sorts above
// +Inf; its position carries no meaning and callers must not rely on it.
//
// # Strings and bytes
//
// Two rules exist, one per context:
//
//   - Key encoding (AppendString, AppendBytes): 0x00 is escaped as 0x00 0xFF and
//     the value is terminated with 0x00 0x01. The result is self-delimiting and a
//     byte-prefix of another value always sorts first.
//   - Fixed encoding (AppendFixed): the payload is zero-padded to the declared
//     size and followed by its length as a big-endian uint16. Used for
//     fixed-size string and bytes fields stored inside a buffer.
//
// # Absent values
//
// A present/absent flag byte precedes values whose presence participates in
// ordering. Absent (0x00) sorts before present (0x01).
package sortenc
