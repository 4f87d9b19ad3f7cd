package buffer

import (
	"fmt"
	"strconv"

	"github.com/ssargent/arenabuf/pkg/schema"
)

type entry struct {
	key   string
	index int
	at    loc
}

// Iterator walks the entries of one collection. Entry positions are captured
// when the iterator is created; values are decoded as Next reaches them and
// absent entries are skipped. Mutating the buffer while iterating gives
// undefined results.
type Iterator struct {
	b       *Buffer
	entries []entry
	pos     int
	cur     entry
	val     any
	err     error
}

// Iter returns an iterator over the table, tuple, list or map at path.
func (b *Buffer) Iter(path string) (*Iterator, error) {
	if b.closed {
		return nil, ErrClosed
	}
	p := ParsePath(path)
	steps, target, ok, err := resolveRead(b.schema.Root(), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Iterator{b: b}, nil
	}
	if !target.Kind.IsCollection() {
		return nil, &PathError{Path: p.String(), Msg: fmt.Sprintf("cannot iterate %s", target.Kind)}
	}
	it := &Iterator{b: b}
	l, ok, err := b.find(steps, false)
	if err != nil || !ok {
		return it, err
	}
	addr, ok, err := b.containerAddr(l, false)
	if err != nil || !ok {
		return it, err
	}

	switch target.Kind {
	case schema.KindTable:
		err = b.eachSlot(addr, 2, len(target.Columns), func(pos int, slot uint32) error {
			col := target.Columns[pos]
			it.entries = append(it.entries, entry{key: col.Name, index: pos, at: loc{node: col.Node, at: slot}})
			return nil
		})
	case schema.KindTuple:
		if target.Sorted {
			for i, item := range target.Values {
				it.entries = append(it.entries, entry{key: strconv.Itoa(i), index: i, at: loc{node: item, at: addr + itemOffset(target, i), inline: true}})
			}
			break
		}
		err = b.eachSlot(addr, 1, len(target.Values), func(pos int, slot uint32) error {
			it.entries = append(it.entries, entry{key: strconv.Itoa(pos), index: pos, at: loc{node: target.Values[pos], at: slot}})
			return nil
		})
	case schema.KindList:
		err = b.eachListItem(addr, func(idx uint16, node uint32) error {
			it.entries = append(it.entries, entry{key: strconv.Itoa(int(idx)), index: int(idx), at: loc{node: target.Of, at: node}})
			return nil
		})
	case schema.KindMap:
		i := 0
		err = b.eachMapEntry(addr, func(key string, node uint32) error {
			it.entries = append(it.entries, entry{key: key, index: i, at: loc{node: target.Value, at: node}})
			i++
			return nil
		})
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Next advances to the next present entry.
func (it *Iterator) Next() bool {
	for it.err == nil && it.pos < len(it.entries) {
		e := it.entries[it.pos]
		it.pos++
		v, ok, err := it.b.read(e.at)
		if err != nil {
			it.err = err
			return false
		}
		if ok {
			it.cur, it.val = e, v
			return true
		}
	}
	return false
}

// Key is the column name, map key, or decimal position of the current entry.
func (it *Iterator) Key() string { return it.cur.key }

// Index is the position of the current entry. For maps it counts entries in
// insertion order.
func (it *Iterator) Index() int { return it.cur.index }

// Value is the decoded value of the current entry.
func (it *Iterator) Value() any { return it.val }

// Err reports a decoding error that stopped iteration.
func (it *Iterator) Err() error { return it.err }

// Reset restarts iteration from the first entry.
func (it *Iterator) Reset() {
	it.pos = 0
	it.cur, it.val, it.err = entry{}, nil, nil
}
