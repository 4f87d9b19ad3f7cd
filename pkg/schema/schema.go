package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Limits on collection sizes. Table, list and map counts are stored as uint16,
// tuple counts and enum choice indexes as uint8.
const (
	MaxColumns     = math.MaxUint16
	MaxTupleValues = math.MaxUint8
	MaxChoices     = math.MaxUint8
	MaxChoiceLen   = math.MaxUint8
	MaxFixedSize   = math.MaxUint16 - 2
)

// Column is a named table column.
type Column struct {
	Name string
	Node *Node
}

// Node is one element of a schema tree. Only the fields relevant to Kind are
// set; nodes must not be modified once they belong to a Schema.
type Node struct {
	Kind Kind

	// Size fixes the width of string and bytes values when > 0.
	Size int
	// Exp is the number of decimal places of a decimal.
	Exp uint8
	// Choices lists the values of an enum.
	Choices []string
	// Columns are the ordered columns of a table.
	Columns []Column
	// Of is the item node of a list.
	Of *Node
	// Value is the value node of a map.
	Value *Node
	// Values are the positional nodes of a tuple.
	Values []*Node
	// Sorted marks a tuple whose items are laid out for bytewise comparison.
	Sorted bool
	// Default is returned by GetOrDefault for absent scalars, already coerced.
	Default any

	columns map[string]int
}

// Column returns the position and node of the named column of a table.
func (n *Node) Column(name string) (int, *Node, bool) {
	i, ok := n.columns[name]
	if !ok {
		return 0, nil, false
	}
	return i, n.Columns[i].Node, true
}

// Width is the encoded size of a fixed-width scalar, or 0 when values of n
// are variable length.
func (n *Node) Width() int {
	if n.Kind == KindString || n.Kind == KindBytes {
		if n.Size > 0 {
			return n.Size + 2
		}
		return 0
	}
	return n.Kind.width()
}

// Sortable reports whether values of n can take part in bytewise ordering.
// Floats, fixed-size strings and bytes, integers, decimals, bools, ids, dates
// and enums are sortable; geo and variable-length values are not. A tuple is
// sortable when it is marked sorted.
func (n *Node) Sortable() bool {
	switch n.Kind {
	case KindTuple:
		return n.Sorted
	case KindGeo4, KindGeo8, KindGeo16:
		return false
	}
	return n.Kind.IsScalar() && n.Width() > 0
}

// Schema is a validated, immutable schema tree. It is safe for concurrent use.
type Schema struct {
	root        *Node
	canonical   []byte
	fingerprint uint64
}

// New validates root and wraps it in a Schema.
func New(root *Node) (*Schema, error) {
	if root == nil {
		return nil, &SchemaError{Path: "$", Msg: "nil root"}
	}
	if err := validate("$", root); err != nil {
		return nil, err
	}
	canonical, err := json.Marshal(describe(root))
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return &Schema{
		root:        root,
		canonical:   canonical,
		fingerprint: binary.BigEndian.Uint64(sum[:8]),
	}, nil
}

// Parse builds a Schema from a JSON description such as
//
//	{"type": "table", "columns": [["name", {"type": "string"}], ["age", {"type": "uint8"}]]}
func Parse(data []byte) (*Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var desc any
	if err := dec.Decode(&desc); err != nil {
		return nil, &SchemaError{Path: "$", Msg: fmt.Sprintf("invalid JSON: %v", err)}
	}
	root, err := parseNode("$", desc)
	if err != nil {
		return nil, err
	}
	return New(root)
}

// ParseYAML builds a Schema from the YAML form of a description.
func ParseYAML(data []byte) (*Schema, error) {
	var desc any
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, &SchemaError{Path: "$", Msg: fmt.Sprintf("invalid YAML: %v", err)}
	}
	root, err := parseNode("$", desc)
	if err != nil {
		return nil, err
	}
	return New(root)
}

// MustParse is Parse for descriptions known to be valid. It panics on error.
func MustParse(data string) *Schema {
	s, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return s
}

// Root returns the root node.
func (s *Schema) Root() *Node { return s.root }

// Sortable reports whether buffers of this schema compare bytewise.
func (s *Schema) Sortable() bool { return s.root.Sortable() }

// Fingerprint identifies the schema by the first 8 bytes of the SHA-256 of its
// canonical JSON description.
func (s *Schema) Fingerprint() uint64 { return s.fingerprint }

// MarshalJSON returns the canonical JSON description.
func (s *Schema) MarshalJSON() ([]byte, error) {
	out := make([]byte, len(s.canonical))
	copy(out, s.canonical)
	return out, nil
}

func (s *Schema) String() string { return string(s.canonical) }

func parseNode(path string, desc any) (*Node, error) {
	obj, ok := asObject(desc)
	if !ok {
		return nil, &SchemaError{Path: path, Msg: "expected an object"}
	}
	typ, ok := obj["type"].(string)
	if !ok {
		return nil, &SchemaError{Path: path, Msg: "missing type"}
	}
	kind, ok := KindOf(strings.ToLower(typ))
	if !ok {
		return nil, &SchemaError{Path: path, Msg: fmt.Sprintf("unknown type %q", typ)}
	}
	n := &Node{Kind: kind}

	switch kind {
	case KindString, KindBytes:
		if v, ok := obj["size"]; ok {
			size, ok := toInt(v, 1, MaxFixedSize)
			if !ok {
				return nil, &SchemaError{Path: path + ".size", Msg: fmt.Sprintf("must be between 1 and %d", MaxFixedSize)}
			}
			n.Size = int(size)
		}
	case KindDecimal:
		v, ok := obj["exp"]
		if !ok {
			return nil, &SchemaError{Path: path, Msg: "decimal requires exp"}
		}
		exp, ok := toInt(v, 0, MaxDecimalExp)
		if !ok {
			return nil, &SchemaError{Path: path + ".exp", Msg: fmt.Sprintf("must be between 0 and %d", MaxDecimalExp)}
		}
		n.Exp = uint8(exp)
	case KindEnum:
		raw, ok := obj["choices"].([]any)
		if !ok {
			return nil, &SchemaError{Path: path, Msg: "enum requires choices"}
		}
		for i, c := range raw {
			s, ok := c.(string)
			if !ok {
				return nil, &SchemaError{Path: fmt.Sprintf("%s.choices[%d]", path, i), Msg: "expected a string"}
			}
			n.Choices = append(n.Choices, s)
		}
	case KindTable:
		raw, ok := obj["columns"].([]any)
		if !ok {
			return nil, &SchemaError{Path: path, Msg: "table requires columns"}
		}
		for i, c := range raw {
			cpath := fmt.Sprintf("%s.columns[%d]", path, i)
			pair, ok := c.([]any)
			if !ok || len(pair) != 2 {
				return nil, &SchemaError{Path: cpath, Msg: "expected [name, schema]"}
			}
			name, ok := pair[0].(string)
			if !ok {
				return nil, &SchemaError{Path: cpath, Msg: "column name must be a string"}
			}
			child, err := parseNode(cpath+"."+name, pair[1])
			if err != nil {
				return nil, err
			}
			n.Columns = append(n.Columns, Column{Name: name, Node: child})
		}
	case KindList:
		if _, ok := obj["of"]; !ok {
			return nil, &SchemaError{Path: path, Msg: "list requires of"}
		}
		child, err := parseNode(path+".of", obj["of"])
		if err != nil {
			return nil, err
		}
		n.Of = child
	case KindMap:
		if _, ok := obj["value"]; !ok {
			return nil, &SchemaError{Path: path, Msg: "map requires value"}
		}
		child, err := parseNode(path+".value", obj["value"])
		if err != nil {
			return nil, err
		}
		n.Value = child
	case KindTuple:
		raw, ok := obj["values"].([]any)
		if !ok {
			return nil, &SchemaError{Path: path, Msg: "tuple requires values"}
		}
		for i, v := range raw {
			child, err := parseNode(fmt.Sprintf("%s.values[%d]", path, i), v)
			if err != nil {
				return nil, err
			}
			n.Values = append(n.Values, child)
		}
		if v, ok := obj["sorted"]; ok {
			b, ok := v.(bool)
			if !ok {
				return nil, &SchemaError{Path: path + ".sorted", Msg: "expected a bool"}
			}
			n.Sorted = b
		}
	}

	if v, ok := obj["default"]; ok {
		if !kind.IsScalar() {
			return nil, &SchemaError{Path: path + ".default", Msg: fmt.Sprintf("%s cannot have a default", kind)}
		}
		n.Default = v
	}
	return n, nil
}

// asObject accepts both the JSON and the YAML decoding of a mapping.
func asObject(desc any) (map[string]any, bool) {
	switch t := desc.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	}
	return nil, false
}

func validate(path string, n *Node) error {
	switch n.Kind {
	case KindNone:
		return &SchemaError{Path: path, Msg: "missing type"}
	case KindString, KindBytes:
		if n.Size < 0 || n.Size > MaxFixedSize {
			return &SchemaError{Path: path + ".size", Msg: fmt.Sprintf("must be between 1 and %d", MaxFixedSize)}
		}
	case KindDecimal:
		if n.Exp > MaxDecimalExp {
			return &SchemaError{Path: path + ".exp", Msg: fmt.Sprintf("must be between 0 and %d", MaxDecimalExp)}
		}
	case KindEnum:
		if len(n.Choices) == 0 {
			return &SchemaError{Path: path, Msg: "enum requires choices"}
		}
		if len(n.Choices) > MaxChoices {
			return &SchemaError{Path: path + ".choices", Msg: fmt.Sprintf("%d choices exceed the limit of %d", len(n.Choices), MaxChoices)}
		}
		seen := make(map[string]struct{}, len(n.Choices))
		for i, c := range n.Choices {
			if len(c) > MaxChoiceLen {
				return &SchemaError{Path: fmt.Sprintf("%s.choices[%d]", path, i), Msg: "choice longer than 255 bytes"}
			}
			if _, dup := seen[c]; dup {
				return &SchemaError{Path: fmt.Sprintf("%s.choices[%d]", path, i), Msg: fmt.Sprintf("duplicate choice %q", c)}
			}
			seen[c] = struct{}{}
		}
	case KindTable:
		if len(n.Columns) == 0 {
			return &SchemaError{Path: path, Msg: "table requires columns"}
		}
		if len(n.Columns) > MaxColumns {
			return &SchemaError{Path: path + ".columns", Msg: fmt.Sprintf("%d columns exceed the limit of %d", len(n.Columns), MaxColumns)}
		}
		n.columns = make(map[string]int, len(n.Columns))
		for i, c := range n.Columns {
			cpath := fmt.Sprintf("%s.columns[%d]", path, i)
			if c.Name == "" || strings.Contains(c.Name, ".") {
				return &SchemaError{Path: cpath, Msg: fmt.Sprintf("invalid column name %q", c.Name)}
			}
			if _, dup := n.columns[c.Name]; dup {
				return &SchemaError{Path: cpath, Msg: fmt.Sprintf("duplicate column %q", c.Name)}
			}
			if c.Node == nil {
				return &SchemaError{Path: cpath, Msg: "missing schema"}
			}
			if err := validate(cpath+"."+c.Name, c.Node); err != nil {
				return err
			}
			n.columns[c.Name] = i
		}
	case KindList:
		if n.Of == nil {
			return &SchemaError{Path: path, Msg: "list requires of"}
		}
		if err := validate(path+".of", n.Of); err != nil {
			return err
		}
	case KindMap:
		if n.Value == nil {
			return &SchemaError{Path: path, Msg: "map requires value"}
		}
		if err := validate(path+".value", n.Value); err != nil {
			return err
		}
	case KindTuple:
		if len(n.Values) == 0 {
			return &SchemaError{Path: path, Msg: "tuple requires values"}
		}
		if len(n.Values) > MaxTupleValues {
			return &SchemaError{Path: path + ".values", Msg: fmt.Sprintf("%d values exceed the limit of %d", len(n.Values), MaxTupleValues)}
		}
		for i, v := range n.Values {
			vpath := fmt.Sprintf("%s.values[%d]", path, i)
			if v == nil {
				return &SchemaError{Path: vpath, Msg: "missing schema"}
			}
			if err := validate(vpath, v); err != nil {
				return err
			}
			if n.Sorted && !v.Sortable() {
				return &SchemaError{Path: vpath, Msg: fmt.Sprintf("%s is not sortable; sorted tuples need fixed-width sortable items", describeKind(v))}
			}
		}
	default:
		if !n.Kind.IsScalar() {
			return &SchemaError{Path: path, Msg: fmt.Sprintf("unknown kind %d", uint8(n.Kind))}
		}
	}

	if n.Default != nil {
		if !n.Kind.IsScalar() {
			return &SchemaError{Path: path + ".default", Msg: fmt.Sprintf("%s cannot have a default", n.Kind)}
		}
		v, err := n.Coerce(n.Default)
		if err != nil {
			return &SchemaError{Path: path + ".default", Msg: err.Error()}
		}
		n.Default = v
	}
	return nil
}

func describeKind(n *Node) string {
	if (n.Kind == KindString || n.Kind == KindBytes) && n.Size == 0 {
		return "variable-length " + n.Kind.String()
	}
	return n.Kind.String()
}

// description is the canonical JSON shape of a node. Field order is fixed so
// equal schemas produce equal bytes.
type description struct {
	Type    string         `json:"type"`
	Size    int            `json:"size,omitempty"`
	Exp     uint8          `json:"exp,omitempty"`
	Sorted  bool           `json:"sorted,omitempty"`
	Choices []string       `json:"choices,omitempty"`
	Columns [][2]any       `json:"columns,omitempty"`
	Of      *description   `json:"of,omitempty"`
	Value   *description   `json:"value,omitempty"`
	Values  []*description `json:"values,omitempty"`
	Default any            `json:"default,omitempty"`
}

func describe(n *Node) *description {
	d := &description{
		Type:    n.Kind.String(),
		Size:    n.Size,
		Exp:     n.Exp,
		Sorted:  n.Sorted,
		Choices: n.Choices,
	}
	for _, c := range n.Columns {
		d.Columns = append(d.Columns, [2]any{c.Name, describe(c.Node)})
	}
	if n.Of != nil {
		d.Of = describe(n.Of)
	}
	if n.Value != nil {
		d.Value = describe(n.Value)
	}
	for _, v := range n.Values {
		d.Values = append(d.Values, describe(v))
	}
	if n.Default != nil {
		d.Default = DescribeValue(n.Default)
	}
	return d
}

// DescribeValue converts a coerced scalar to its description form: bytes as an
// array of numbers, dates as milliseconds and ids as strings.
func DescribeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		out := make([]int, len(t))
		for i, b := range t {
			out[i] = int(b)
		}
		return out
	case interface{ UnixMilli() int64 }:
		return t.UnixMilli()
	case fmt.Stringer:
		if _, ok := v.(Decimal); ok {
			return json.Number(t.String())
		}
		return t.String()
	case float32:
		return json.Number(strconv.FormatFloat(float64(t), 'g', -1, 32))
	}
	return v
}
