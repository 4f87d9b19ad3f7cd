package buffer

import (
	"bytes"
	"math"

	"github.com/ssargent/arenabuf/pkg/schema"
)

// Collection layouts, all big-endian:
//
//	table   [u16 count][count x ptr]
//	tuple   [u8 count][count x ptr]
//	sorted  [cell]...                  one cell per item, no pointers
//	list    [u16 count][u32 head][u32 tail]
//	  node  [u32 value][u32 next][u16 index]
//	map     [u16 count][u32 head][u32 tail]
//	  node  [u32 value][u32 next][u32 key]
//	  key   [u16 len][bytes]
//
// A scalar cell inside a sorted tuple is [flag][value].
const (
	collHeaderSize = 10
	listNodeSize   = 10
	mapNodeSize    = 12
)

// loc is where a value lives: behind the pointer field at at, or inline at at
// when it is an item of a sorted tuple (or the root of a sortable schema).
type loc struct {
	node   *schema.Node
	at     uint32
	inline bool
}

// cellWidth is the inline size of a sorted tuple item.
func cellWidth(n *schema.Node) int {
	if n.Kind == schema.KindTuple {
		return blockWidth(n)
	}
	return 1 + n.Width()
}

// blockWidth is the size of a sorted tuple's inline block.
func blockWidth(n *schema.Node) int {
	w := 0
	for _, v := range n.Values {
		w += cellWidth(v)
	}
	return w
}

func itemOffset(n *schema.Node, pos int) uint32 {
	off := 0
	for _, v := range n.Values[:pos] {
		off += cellWidth(v)
	}
	return uint32(off)
}

// rootWidth is the preallocated size of a sortable root.
func rootWidth(n *schema.Node) int {
	if n.Kind == schema.KindTuple {
		return blockWidth(n)
	}
	return cellWidth(n)
}

func (b *Buffer) rootLoc() loc {
	root := b.schema.Root()
	if b.sortable && root.Kind.IsScalar() {
		return loc{node: root, at: dataStart, inline: true}
	}
	return loc{node: root, at: rootOffset}
}

// containerAddr returns the address of the collection at l, allocating an
// empty one when create is set and it is absent.
func (b *Buffer) containerAddr(l loc, create bool) (uint32, bool, error) {
	if l.inline {
		return l.at, true, nil
	}
	p, err := b.mem.ptr(l.at)
	if err != nil {
		return 0, false, err
	}
	if p != 0 || !create {
		return p, p != 0, nil
	}
	p, err = b.newContainer(l.node)
	if err != nil {
		return 0, false, err
	}
	return p, true, b.mem.put32(l.at, p)
}

func (b *Buffer) newContainer(n *schema.Node) (uint32, error) {
	switch n.Kind {
	case schema.KindTable:
		p, err := b.mem.malloc(2 + ptrSize*len(n.Columns))
		if err != nil {
			return 0, err
		}
		return p, b.mem.put16(p, uint16(len(n.Columns)))
	case schema.KindTuple:
		if n.Sorted {
			return b.mem.malloc(blockWidth(n))
		}
		p, err := b.mem.malloc(1 + ptrSize*len(n.Values))
		if err != nil {
			return 0, err
		}
		return p, b.mem.put8(p, uint8(len(n.Values)))
	default:
		return b.mem.malloc(collHeaderSize)
	}
}

// find walks steps from the root. With create set, missing collections, list
// nodes and map entries are allocated on the way.
func (b *Buffer) find(steps []step, create bool) (loc, bool, error) {
	l := b.rootLoc()
	for _, st := range steps {
		addr, ok, err := b.containerAddr(l, create)
		if err != nil || !ok {
			return loc{}, false, err
		}
		l, ok, err = b.child(l, addr, st, create)
		if err != nil || !ok {
			return loc{}, false, err
		}
	}
	return l, true, nil
}

func (b *Buffer) child(l loc, addr uint32, st step, create bool) (loc, bool, error) {
	switch st.kind {
	case stepColumn:
		at, ok, err := b.slotAt(l, addr, 2, len(st.parent.Columns), st.pos, create)
		return loc{node: st.node, at: at}, ok, err
	case stepItem:
		if st.parent.Sorted {
			return loc{node: st.node, at: addr + itemOffset(st.parent, st.pos), inline: true}, true, nil
		}
		at, ok, err := b.slotAt(l, addr, 1, len(st.parent.Values), st.pos, create)
		return loc{node: st.node, at: at}, ok, err
	case stepIndex:
		node, ok, err := b.listNode(addr, uint16(st.pos), create)
		return loc{node: st.node, at: node}, ok, err
	default:
		node, ok, err := b.mapNode(addr, st.key, create)
		return loc{node: st.node, at: node}, ok, err
	}
}

// slotAt returns the pointer field for position pos of a table (header 2) or
// tuple (header 1). Collections written under an older, shorter schema are
// grown into a fresh copy on write.
func (b *Buffer) slotAt(l loc, addr uint32, header, want, pos int, create bool) (uint32, bool, error) {
	count, err := b.count(addr, header)
	if err != nil {
		return 0, false, err
	}
	if pos < count {
		return addr + uint32(header+ptrSize*pos), true, nil
	}
	if !create {
		return 0, false, nil
	}
	grown, err := b.mem.malloc(header + ptrSize*want)
	if err != nil {
		return 0, false, err
	}
	old, err := b.mem.slice(addr+uint32(header), ptrSize*count)
	if err != nil {
		return 0, false, err
	}
	if err := b.mem.write(grown+uint32(header), old); err != nil {
		return 0, false, err
	}
	if header == 2 {
		err = b.mem.put16(grown, uint16(want))
	} else {
		err = b.mem.put8(grown, uint8(want))
	}
	if err != nil {
		return 0, false, err
	}
	if err := b.mem.put32(l.at, grown); err != nil {
		return 0, false, err
	}
	return grown + uint32(header+ptrSize*pos), true, nil
}

func (b *Buffer) count(addr uint32, header int) (int, error) {
	if header == 2 {
		c, err := b.mem.u16(addr)
		return int(c), err
	}
	c, err := b.mem.u8(addr)
	return int(c), err
}

type chainHeader struct {
	count uint16
	head  uint32
	tail  uint32
}

func (b *Buffer) readHeader(addr uint32) (chainHeader, error) {
	var (
		h   chainHeader
		err error
	)
	if h.count, err = b.mem.u16(addr); err != nil {
		return h, err
	}
	if h.head, err = b.mem.ptr(addr + 2); err != nil {
		return h, err
	}
	h.tail, err = b.mem.ptr(addr + 6)
	return h, err
}

func (b *Buffer) writeHeader(addr uint32, h chainHeader) error {
	if err := b.mem.put16(addr, h.count); err != nil {
		return err
	}
	if err := b.mem.put32(addr+2, h.head); err != nil {
		return err
	}
	return b.mem.put32(addr+6, h.tail)
}

// walk calls fn for each node of a list or map chain in order until fn
// returns false.
func (b *Buffer) walk(head uint32, fn func(node uint32) (bool, error)) error {
	hops := 0
	for cur := head; cur != 0; {
		if hops++; hops > maxChain {
			return &BufferBoundsError{Offset: uint64(cur), Size: b.mem.size(), Msg: "chain longer than 65535 nodes"}
		}
		more, err := fn(cur)
		if err != nil || !more {
			return err
		}
		next, err := b.mem.ptr(cur + 4)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// listNode returns the node holding index idx, inserting it in index order
// when create is set.
func (b *Buffer) listNode(addr uint32, idx uint16, create bool) (uint32, bool, error) {
	h, err := b.readHeader(addr)
	if err != nil {
		return 0, false, err
	}

	var prev, next, found uint32
	appendAtTail := false
	if h.tail != 0 {
		last, err := b.mem.u16(h.tail + 8)
		if err != nil {
			return 0, false, err
		}
		switch {
		case last == idx:
			return h.tail, true, nil
		case last < idx:
			appendAtTail = true
			prev = h.tail
		}
	}
	if !appendAtTail {
		err = b.walk(h.head, func(node uint32) (bool, error) {
			i, err := b.mem.u16(node + 8)
			if err != nil {
				return false, err
			}
			switch {
			case i == idx:
				found = node
				return false, nil
			case i > idx:
				next = node
				return false, nil
			}
			prev = node
			return true, nil
		})
		if err != nil {
			return 0, false, err
		}
		if found != 0 {
			return found, true, nil
		}
	}
	if !create {
		return 0, false, nil
	}
	if h.count == math.MaxUint16 {
		return 0, false, &CapacityError{What: "list length", Limit: math.MaxUint16}
	}

	node, err := b.mem.malloc(listNodeSize)
	if err != nil {
		return 0, false, err
	}
	if err := b.mem.put32(node+4, next); err != nil {
		return 0, false, err
	}
	if err := b.mem.put16(node+8, idx); err != nil {
		return 0, false, err
	}
	if prev == 0 {
		h.head = node
	} else if err := b.mem.put32(prev+4, node); err != nil {
		return 0, false, err
	}
	if next == 0 {
		h.tail = node
	}
	h.count++
	return node, true, b.writeHeader(addr, h)
}

// mapNode returns the node for key, appending a new one at the tail when
// create is set.
func (b *Buffer) mapNode(addr uint32, key string, create bool) (uint32, bool, error) {
	h, err := b.readHeader(addr)
	if err != nil {
		return 0, false, err
	}
	var found uint32
	err = b.walk(h.head, func(node uint32) (bool, error) {
		k, err := b.mapKey(node)
		if err != nil {
			return false, err
		}
		if bytes.Equal(k, []byte(key)) {
			found = node
			return false, nil
		}
		return true, nil
	})
	if err != nil || found != 0 || !create {
		return found, found != 0, err
	}
	if h.count == math.MaxUint16 {
		return 0, false, &CapacityError{What: "map size", Limit: math.MaxUint16}
	}

	kb := make([]byte, 2, 2+len(key))
	kb[0], kb[1] = byte(len(key)>>8), byte(len(key))
	kp, err := b.mem.store(append(kb, key...))
	if err != nil {
		return 0, false, err
	}
	node, err := b.mem.malloc(mapNodeSize)
	if err != nil {
		return 0, false, err
	}
	if err := b.mem.put32(node+8, kp); err != nil {
		return 0, false, err
	}
	if h.tail == 0 {
		h.head = node
	} else if err := b.mem.put32(h.tail+4, node); err != nil {
		return 0, false, err
	}
	h.tail = node
	h.count++
	return node, true, b.writeHeader(addr, h)
}

func (b *Buffer) mapKey(node uint32) ([]byte, error) {
	kp, err := b.mem.ptr(node + 8)
	if err != nil {
		return nil, err
	}
	if kp == 0 {
		return nil, &BufferBoundsError{Offset: uint64(node + 8), Size: b.mem.size(), Msg: "map node without key"}
	}
	n, err := b.mem.u16(kp)
	if err != nil {
		return nil, err
	}
	return b.mem.slice(kp+2, int(n))
}
