// Package schema describes the shape of arenabuf documents.
//
// A Schema is a tree of Nodes built once from a JSON or YAML description and
// shared read-only by every buffer that uses it. Descriptions are objects with
// a "type" key and per-kind properties:
//
//	{"type": "string"}                             variable length
//	{"type": "string", "size": 20}                 fixed width, sortable
//	{"type": "decimal", "exp": 2, "default": 1.5}
//	{"type": "enum", "choices": ["red", "green"]}
//	{"type": "list", "of": {"type": "int32"}}
//	{"type": "map", "value": {"type": "bool"}}
//	{"type": "tuple", "sorted": true, "values": [{"type": "uint32"}, {"type": "date"}]}
//	{"type": "table", "columns": [["name", {"type": "string"}], ["age", {"type": "uint8"}]]}
//
// Validation is total: Parse either returns a fully checked Schema or a
// *SchemaError naming the first offending node.
//
// Appending columns to a table or values to a tuple is a safe schema change.
// Buffers written under the old schema read the new positions as absent.
package schema
