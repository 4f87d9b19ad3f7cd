package buffer

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ssargent/arenabuf/pkg/schema"
)

// ToJSON renders the whole document as JSON. Bytes become base64 strings,
// decimals numbers, geo values {"lat", "lng"} objects, dates RFC 3339 strings.
// NaN and infinite floats become "NaN", "Infinity" and "-Infinity". An empty
// buffer renders as null.
func (b *Buffer) ToJSON() ([]byte, error) {
	return b.PathJSON("")
}

// PathJSON renders the value at path as JSON.
func (b *Buffer) PathJSON(path string) ([]byte, error) {
	v, ok, err := b.Get(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []byte("null"), nil
	}
	out, err := json.Marshal(jsonValue(v))
	if err != nil {
		return nil, fmt.Errorf("failed to render %q: %w", path, err)
	}
	return out, nil
}

// jsonValue replaces the floats encoding/json cannot represent.
func jsonValue(v any) any {
	switch t := v.(type) {
	case float64:
		return finite(t, v)
	case float32:
		return finite(float64(t), v)
	case map[string]any:
		for k, item := range t {
			t[k] = jsonValue(item)
		}
	case []any:
		for i, item := range t {
			t[i] = jsonValue(item)
		}
	}
	return v
}

func finite(f float64, v any) any {
	switch {
	case math.IsNaN(f):
		return schema.NaN
	case math.IsInf(f, 1):
		return schema.Infinity
	case math.IsInf(f, -1):
		return schema.NegInfinity
	}
	return v
}

// SetJSON decodes a JSON value and stores it at path. It accepts everything
// ToJSON produces.
func (b *Buffer) SetJSON(path string, data []byte) error {
	if b.closed {
		return ErrClosed
	}
	p := ParsePath(path)
	_, target, err := resolve(b.schema.Root(), p)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("failed to decode JSON for %q: %w", path, err)
	}
	v, err = fromJSON(p, target, v)
	if err != nil {
		return err
	}
	return b.Set(path, v)
}

// FromJSON builds a new buffer from a JSON document.
func FromJSON(s *schema.Schema, data []byte, opts ...Option) (*Buffer, error) {
	b := New(s, opts...)
	if err := b.SetJSON("", data); err != nil {
		return nil, err
	}
	return b, nil
}

// fromJSON turns the base64 strings ToJSON writes for bytes back into []byte.
// Everything else is already accepted by Set.
func fromJSON(path Path, n *schema.Node, v any) (any, error) {
	switch n.Kind {
	case schema.KindBytes:
		if s, ok := v.(string); ok {
			raw, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, &TypeMismatchError{Path: path.String(), Want: n.Kind, Got: "string", Err: err}
			}
			return raw, nil
		}
	case schema.KindTable:
		if m, ok := v.(map[string]any); ok {
			for k, item := range m {
				_, col, ok := n.Column(k)
				if !ok {
					continue
				}
				c, err := fromJSON(append(path[:len(path):len(path)], k), col, item)
				if err != nil {
					return nil, err
				}
				m[k] = c
			}
		}
	case schema.KindMap:
		if m, ok := v.(map[string]any); ok {
			for k, item := range m {
				c, err := fromJSON(append(path[:len(path):len(path)], k), n.Value, item)
				if err != nil {
					return nil, err
				}
				m[k] = c
			}
		}
	case schema.KindList, schema.KindTuple:
		if s, ok := v.([]any); ok {
			for i, item := range s {
				child := n.Of
				if n.Kind == schema.KindTuple {
					if i >= len(n.Values) {
						break
					}
					child = n.Values[i]
				}
				c, err := fromJSON(append(path[:len(path):len(path)], fmt.Sprint(i)), child, item)
				if err != nil {
					return nil, err
				}
				s[i] = c
			}
		}
	}
	return v, nil
}
