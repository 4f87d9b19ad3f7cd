// Package buffer reads and writes documents stored in a single byte arena.
//
// # Layout
//
// A buffer starts with a 4 byte big-endian root pointer followed by data. Every
// reference inside the arena is a 4 byte offset from the start of the buffer
// and 0 means absent, which caps a buffer at 4 GiB. Nothing about the schema
// is stored; the same bytes mean nothing without the schema they were written
// with.
//
// Writes never move existing data. A value whose encoded size changes is
// appended and its pointer rewritten, leaving the old bytes orphaned until
// Compact copies the live values into a fresh arena. Fixed-width scalars and
// same-length strings are overwritten in place.
//
// # Paths
//
// Values are addressed with dotted paths interpreted by the schema:
//
//	b.Set("name", "Alice")
//	b.Set("tags.0", "admin")     // list index
//	b.Set("meta.color", "blue")  // map key
//	b.Set("pos.1", time.Now())   // tuple position
//
// Reading through an absent collection is not an error: Get reports ok ==
// false. The same holds for a table column the schema does not declare, so a
// buffer can be read with an older revision of its schema. Writes to such a
// column and malformed paths fail with *PathError before anything is read or
// written.
//
// # Sorting
//
// Buffers whose root is a sortable scalar or a sorted tuple are created with
// a fixed layout of [flag][value] cells directly after the root pointer. All
// writes to such buffers happen in place, so two buffers of the same schema
// compare with bytes.Compare exactly as their values compare. Compaction copies
// the layout unchanged.
//
// # Untrusted input
//
// Every pointer and length read from the arena is bounds checked, and list and
// map walks stop after 65535 nodes. Corrupt input produces *BufferBoundsError,
// never a panic.
package buffer
