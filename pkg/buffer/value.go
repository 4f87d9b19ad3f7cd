package buffer

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/ssargent/arenabuf/pkg/schema"
	"github.com/ssargent/arenabuf/pkg/sortenc"
)

// read decodes the value at l. Collections come back as map[string]any
// (tables and maps) or []any (lists and tuples, nil where absent).
func (b *Buffer) read(l loc) (any, bool, error) {
	n := l.node
	if n.Kind.IsScalar() {
		var addr uint32
		if l.inline {
			flag, err := b.mem.u8(l.at)
			if err != nil || flag == sortenc.Absent {
				return nil, false, err
			}
			addr = l.at + 1
		} else {
			p, err := b.mem.ptr(l.at)
			if err != nil || p == 0 {
				return nil, false, err
			}
			addr = p
		}
		v, err := decodeScalar(&b.mem, n, addr)
		return v, err == nil, err
	}

	addr, ok, err := b.containerAddr(l, false)
	if err != nil || !ok {
		return nil, false, err
	}
	switch n.Kind {
	case schema.KindTable:
		out := make(map[string]any)
		err := b.eachSlot(addr, 2, len(n.Columns), func(pos int, slot uint32) error {
			v, ok, err := b.read(loc{node: n.Columns[pos].Node, at: slot})
			if ok {
				out[n.Columns[pos].Name] = v
			}
			return err
		})
		return out, err == nil, err
	case schema.KindTuple:
		out := make([]any, len(n.Values))
		if n.Sorted {
			present := false
			for i, item := range n.Values {
				v, ok, err := b.read(loc{node: item, at: addr + itemOffset(n, i), inline: true})
				if err != nil {
					return nil, false, err
				}
				out[i] = v
				present = present || ok
			}
			return out, present, nil
		}
		err := b.eachSlot(addr, 1, len(n.Values), func(pos int, slot uint32) error {
			v, _, err := b.read(loc{node: n.Values[pos], at: slot})
			out[pos] = v
			return err
		})
		return out, err == nil, err
	case schema.KindList:
		out := []any{}
		err := b.eachListItem(addr, func(idx uint16, node uint32) error {
			v, ok, err := b.read(loc{node: n.Of, at: node})
			if err != nil || !ok {
				return err
			}
			for len(out) < int(idx) {
				out = append(out, nil)
			}
			out = append(out, v)
			return nil
		})
		return out, err == nil, err
	case schema.KindMap:
		out := make(map[string]any)
		err := b.eachMapEntry(addr, func(key string, node uint32) error {
			v, ok, err := b.read(loc{node: n.Value, at: node})
			if ok {
				out[key] = v
			}
			return err
		})
		return out, err == nil, err
	}
	return nil, false, fmt.Errorf("buffer: unknown kind %s", n.Kind)
}

// eachSlot visits the pointer fields of a table or tuple, stopping at the
// shorter of the stored count and the schema length.
func (b *Buffer) eachSlot(addr uint32, header, want int, fn func(pos int, slot uint32) error) error {
	count, err := b.count(addr, header)
	if err != nil {
		return err
	}
	for i := 0; i < count && i < want; i++ {
		if err := fn(i, addr+uint32(header+ptrSize*i)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffer) eachListItem(addr uint32, fn func(idx uint16, node uint32) error) error {
	h, err := b.readHeader(addr)
	if err != nil {
		return err
	}
	return b.walk(h.head, func(node uint32) (bool, error) {
		idx, err := b.mem.u16(node + 8)
		if err != nil {
			return false, err
		}
		return true, fn(idx, node)
	})
}

func (b *Buffer) eachMapEntry(addr uint32, fn func(key string, node uint32) error) error {
	h, err := b.readHeader(addr)
	if err != nil {
		return err
	}
	return b.walk(h.head, func(node uint32) (bool, error) {
		k, err := b.mapKey(node)
		if err != nil {
			return false, err
		}
		return true, fn(string(k), node)
	})
}

// write stores a prepared value at l, replacing what was there.
func (b *Buffer) write(l loc, v any) error {
	n := l.node
	if n.Kind.IsScalar() {
		enc, err := encodeScalar(nil, n, v)
		if err != nil {
			return err
		}
		if l.inline {
			return b.mem.write(l.at, append([]byte{sortenc.Present}, enc...))
		}
		p, err := b.mem.ptr(l.at)
		if err != nil {
			return err
		}
		if p != 0 {
			size, err := scalarSize(&b.mem, n, p)
			if err == nil && size == len(enc) {
				return b.mem.write(p, enc)
			}
		}
		off, err := b.mem.store(enc)
		if err != nil {
			return err
		}
		return b.mem.put32(l.at, off)
	}

	if err := b.clear(l); err != nil {
		return err
	}
	addr, _, err := b.containerAddr(l, true)
	if err != nil {
		return err
	}
	switch n.Kind {
	case schema.KindTable:
		m := v.(map[string]any)
		for pos, col := range n.Columns {
			item, ok := m[col.Name]
			if !ok {
				continue
			}
			if err := b.writeChild(l, addr, step{kind: stepColumn, pos: pos, parent: n, node: col.Node}, item); err != nil {
				return err
			}
		}
	case schema.KindTuple:
		for pos, item := range v.([]any) {
			if item == nil {
				continue
			}
			if err := b.writeChild(l, addr, step{kind: stepItem, pos: pos, parent: n, node: n.Values[pos]}, item); err != nil {
				return err
			}
		}
	case schema.KindList:
		for pos, item := range v.([]any) {
			if item == nil {
				continue
			}
			if err := b.writeChild(l, addr, step{kind: stepIndex, pos: pos, parent: n, node: n.Of}, item); err != nil {
				return err
			}
		}
	case schema.KindMap:
		m := v.(map[string]any)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := b.writeChild(l, addr, step{kind: stepKey, key: k, parent: n, node: n.Value}, m[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Buffer) writeChild(l loc, addr uint32, st step, v any) error {
	c, _, err := b.child(l, addr, st, true)
	if err != nil {
		return err
	}
	return b.write(c, v)
}

// clear makes the value at l absent. Sorted tuple blocks are zeroed in place,
// which writes sortenc.Absent into every flag, so their layout survives;
// everything else is unlinked and left orphaned.
func (b *Buffer) clear(l loc) error {
	n := l.node
	if l.inline && n.Kind.IsScalar() {
		return b.mem.zero(l.at, cellWidth(n))
	}
	if n.Kind == schema.KindTuple && n.Sorted {
		addr, ok, err := b.containerAddr(l, false)
		if err != nil || !ok {
			return err
		}
		return b.mem.zero(addr, blockWidth(n))
	}
	p, err := b.mem.ptr(l.at)
	if err != nil || p == 0 {
		return err
	}
	return b.mem.put32(l.at, 0)
}

// prepare validates v against n and converts it to the canonical shape write
// expects. Nothing in the buffer is touched.
func prepare(path Path, n *schema.Node, v any) (any, error) {
	mismatch := func(err error) error {
		return &TypeMismatchError{Path: path.String(), Want: n.Kind, Got: fmt.Sprintf("%T", v), Err: err}
	}
	if n.Kind.IsScalar() {
		c, err := n.Coerce(v)
		if err != nil {
			return nil, mismatch(err)
		}
		return c, nil
	}

	switch n.Kind {
	case schema.KindTable:
		m, ok := asMap(v)
		if !ok {
			return nil, mismatch(nil)
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			_, col, ok := n.Column(k)
			if !ok {
				return nil, &PathError{Path: append(path[:len(path):len(path)], k).String(), Msg: fmt.Sprintf("unknown column %q", k)}
			}
			if item == nil {
				continue
			}
			p, err := prepare(append(path[:len(path):len(path)], k), col, item)
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	case schema.KindTuple:
		s, ok := asSlice(v)
		if !ok || len(s) > len(n.Values) {
			return nil, mismatch(nil)
		}
		return prepareItems(path, s, func(i int) *schema.Node { return n.Values[i] })
	case schema.KindList:
		s, ok := asSlice(v)
		if !ok {
			return nil, mismatch(nil)
		}
		if len(s) > math.MaxUint16 {
			return nil, &CapacityError{What: "list length", Limit: math.MaxUint16}
		}
		return prepareItems(path, s, func(int) *schema.Node { return n.Of })
	case schema.KindMap:
		m, ok := asMap(v)
		if !ok {
			return nil, mismatch(nil)
		}
		if len(m) > math.MaxUint16 {
			return nil, &CapacityError{What: "map size", Limit: math.MaxUint16}
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			if len(k) > math.MaxUint16 {
				return nil, &CapacityError{What: "map key length", Limit: math.MaxUint16}
			}
			if item == nil {
				continue
			}
			p, err := prepare(append(path[:len(path):len(path)], k), n.Value, item)
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	}
	return nil, mismatch(nil)
}

func prepareItems(path Path, s []any, node func(int) *schema.Node) ([]any, error) {
	out := make([]any, len(s))
	for i, item := range s {
		if item == nil {
			continue
		}
		p, err := prepare(append(path[:len(path):len(path)], fmt.Sprint(i)), node(i), item)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
