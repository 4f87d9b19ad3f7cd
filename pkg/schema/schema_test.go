package schema

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userSchema = `{
	"type": "table",
	"columns": [
		["name", {"type": "string"}],
		["age", {"type": "uint8", "default": 18}],
		["tags", {"type": "list", "of": {"type": "string"}}],
		["meta", {"type": "map", "value": {"type": "int32"}}],
		["pos", {"type": "tuple", "values": [{"type": "geo8"}, {"type": "date"}]}]
	]
}`

func TestParseTable(t *testing.T) {
	s, err := Parse([]byte(userSchema))
	require.NoError(t, err)

	root := s.Root()
	assert.Equal(t, KindTable, root.Kind)
	require.Len(t, root.Columns, 5)

	i, age, ok := root.Column("age")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, KindUint8, age.Kind)
	assert.Equal(t, uint8(18), age.Default)

	_, tags, ok := root.Column("tags")
	require.True(t, ok)
	assert.Equal(t, KindList, tags.Kind)
	assert.Equal(t, KindString, tags.Of.Kind)

	_, _, ok = root.Column("missing")
	assert.False(t, ok)
	assert.False(t, s.Sortable())
}

func TestParseYAMLMatchesJSON(t *testing.T) {
	y := `
type: table
columns:
  - [name, {type: string}]
  - [age, {type: uint8, default: 18}]
  - [tags, {type: list, of: {type: string}}]
  - [meta, {type: map, value: {type: int32}}]
  - - pos
    - type: tuple
      values:
        - type: geo8
        - type: date
`
	fromYAML, err := ParseYAML([]byte(y))
	require.NoError(t, err)
	fromJSON, err := Parse([]byte(userSchema))
	require.NoError(t, err)

	assert.Equal(t, fromJSON.String(), fromYAML.String())
	assert.Equal(t, fromJSON.Fingerprint(), fromYAML.Fingerprint())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		desc string
		path string
	}{
		{"not json", `{`, "$"},
		{"not an object", `[]`, "$"},
		{"missing type", `{}`, "$"},
		{"unknown type", `{"type": "widget"}`, "$"},
		{"duplicate column", `{"type": "table", "columns": [["a", {"type": "bool"}], ["a", {"type": "bool"}]]}`, "$.columns[1]"},
		{"bad column pair", `{"type": "table", "columns": [["a"]]}`, "$.columns[0]"},
		{"dotted column", `{"type": "table", "columns": [["a.b", {"type": "bool"}]]}`, "$.columns[0]"},
		{"empty table", `{"type": "table", "columns": []}`, "$"},
		{"list without of", `{"type": "list"}`, "$"},
		{"map without value", `{"type": "map"}`, "$"},
		{"tuple without values", `{"type": "tuple"}`, "$"},
		{"enum without choices", `{"type": "enum"}`, "$"},
		{"decimal without exp", `{"type": "decimal"}`, "$"},
		{"bad size", `{"type": "string", "size": 0}`, "$.size"},
		{"bad exp", `{"type": "decimal", "exp": 40}`, "$.exp"},
		{"bad default", `{"type": "uint8", "default": 300}`, "$.default"},
		{"default on collection", `{"type": "list", "of": {"type": "bool"}, "default": []}`, "$.default"},
		{"bad enum default", `{"type": "enum", "choices": ["a"], "default": "b"}`, "$.default"},
		{"nested error", `{"type": "table", "columns": [["x", {"type": "list", "of": {"type": "nope"}}]]}`, "$.columns[0].x.of"},
		{"unsorted item in sorted tuple", `{"type": "tuple", "sorted": true, "values": [{"type": "string"}]}`, "$.values[0]"},
		{"geo in sorted tuple", `{"type": "tuple", "sorted": true, "values": [{"type": "geo4"}]}`, "$.values[0]"},
		{"list in sorted tuple", `{"type": "tuple", "sorted": true, "values": [{"type": "list", "of": {"type": "bool"}}]}`, "$.values[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.desc))
			require.Error(t, err)
			var se *SchemaError
			require.True(t, errors.As(err, &se), "want *SchemaError, got %T", err)
			assert.Equal(t, tt.path, se.Path)
		})
	}
}

func TestLimits(t *testing.T) {
	choices := make([]string, MaxChoices+1)
	for i := range choices {
		choices[i] = strings.Repeat("x", i+1)
	}
	_, err := New(&Node{Kind: KindEnum, Choices: choices})
	var se *SchemaError
	require.ErrorAs(t, err, &se)

	_, err = New(&Node{Kind: KindEnum, Choices: choices[:MaxChoices]})
	require.NoError(t, err)

	values := make([]*Node, MaxTupleValues+1)
	for i := range values {
		values[i] = &Node{Kind: KindBool}
	}
	_, err = New(&Node{Kind: KindTuple, Values: values})
	require.ErrorAs(t, err, &se)
	_, err = New(&Node{Kind: KindTuple, Values: values[:MaxTupleValues]})
	require.NoError(t, err)

	cols := make([]Column, MaxColumns+1)
	for i := range cols {
		cols[i] = Column{Name: "c" + strconv.Itoa(i), Node: &Node{Kind: KindBool}}
	}
	_, err = New(&Node{Kind: KindTable, Columns: cols})
	require.ErrorAs(t, err, &se)
	_, err = New(&Node{Kind: KindTable, Columns: cols[:MaxColumns]})
	require.NoError(t, err)
}

func TestSortable(t *testing.T) {
	tests := []struct {
		desc     string
		sortable bool
	}{
		{`{"type": "int32"}`, true},
		{`{"type": "double"}`, true},
		{`{"type": "string"}`, false},
		{`{"type": "string", "size": 8}`, true},
		{`{"type": "bytes", "size": 8}`, true},
		{`{"type": "geo8"}`, false},
		{`{"type": "uuid"}`, true},
		{`{"type": "ksuid"}`, true},
		{`{"type": "enum", "choices": ["a", "b"]}`, true},
		{`{"type": "tuple", "values": [{"type": "int32"}]}`, false},
		{`{"type": "tuple", "sorted": true, "values": [{"type": "int32"}, {"type": "tuple", "sorted": true, "values": [{"type": "bool"}]}]}`, true},
		{`{"type": "list", "of": {"type": "int32"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			s, err := Parse([]byte(tt.desc))
			require.NoError(t, err)
			assert.Equal(t, tt.sortable, s.Sortable())
		})
	}
}

func TestMarshalJSONCanonical(t *testing.T) {
	s, err := Parse([]byte(`{"type":"table","columns":[["price",{"default":1.5,"exp":2,"type":"dec"}],["on",{"type":"boolean","default":false}]]}`))
	require.NoError(t, err)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"table","columns":[["price",{"type":"decimal","exp":2,"default":1.50}],["on",{"type":"bool","default":false}]]}`, string(out))

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, s.Fingerprint(), again.Fingerprint())
}

func TestFingerprintDistinguishesSchemas(t *testing.T) {
	a := MustParse(`{"type": "list", "of": {"type": "int32"}}`)
	b := MustParse(`{"type": "list", "of": {"type": "int64"}}`)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestDefaults(t *testing.T) {
	s := MustParse(`{"type": "tuple", "values": [
		{"type": "date", "default": 1605909163951},
		{"type": "geo4", "default": {"lat": -20.28, "lng": 19.92}},
		{"type": "bytes", "default": [1, 2, 3]},
		{"type": "uuid", "default": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"type": "float", "default": 2.5}
	]}`)
	vals := s.Root().Values
	assert.Equal(t, time.UnixMilli(1605909163951).UTC(), vals[0].Default)
	assert.Equal(t, Geo{Lat: -20.28, Lng: 19.92}, vals[1].Default)
	assert.Equal(t, []byte{1, 2, 3}, vals[2].Default)
	assert.Equal(t, uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), vals[3].Default)
	assert.Equal(t, float32(2.5), vals[4].Default)
}

func TestKindNames(t *testing.T) {
	for _, name := range []string{"string", "bytes", "int8", "uint64", "double", "decimal", "geo16", "ksuid", "enum", "table", "tuple"} {
		k, ok := KindOf(name)
		require.True(t, ok, name)
		assert.Equal(t, name, k.String())
	}
	k, ok := KindOf("option")
	assert.True(t, ok)
	assert.Equal(t, KindEnum, k)
	_, ok = KindOf("none")
	assert.False(t, ok)
}
