package buffer

import (
	"github.com/ssargent/arenabuf/pkg/schema"
)

// Sizes reports how much of a buffer is live.
type Sizes struct {
	Current         int `json:"current"`
	AfterCompaction int `json:"after_compaction"`
}

// Reclaimable is the number of bytes compaction would free.
func (s Sizes) Reclaimable() int { return s.Current - s.AfterCompaction }

// Compact returns a compacted copy of b, leaving b unchanged.
//
// Live values are copied depth first in schema order (columns in declaration
// order, list and map nodes head to tail, tuple positions in order) into a
// fresh arena. Orphaned bytes, null list items and deleted map entries are
// dropped. Sorted layouts are copied verbatim, so sortable buffers compare the
// same before and after. Compacting a compacted buffer reproduces it byte for
// byte.
func Compact(b *Buffer) (*Buffer, error) {
	if b.closed {
		return nil, ErrClosed
	}
	out := &Buffer{schema: b.schema, sortable: b.sortable, log: b.log}
	out.mem.b = make([]byte, dataStart, b.mem.size())

	root := b.schema.Root()
	if b.sortable {
		src, err := b.mem.slice(dataStart, rootWidth(root))
		if err != nil {
			return nil, err
		}
		p, err := out.mem.store(src)
		if err != nil {
			return nil, err
		}
		return out, out.mem.put32(rootOffset, p)
	}

	p, err := b.mem.ptr(rootOffset)
	if err != nil || p == 0 {
		return out, err
	}
	np, err := b.copyValue(out, root, p)
	if err != nil {
		return nil, err
	}
	return out, out.mem.put32(rootOffset, np)
}

// Compact replaces the contents of b with a compacted copy.
func (b *Buffer) Compact() error {
	before := b.mem.size()
	out, err := Compact(b)
	if err != nil {
		return err
	}
	b.mem = out.mem
	b.log.Debugw("compacted buffer", "before", before, "after", b.mem.size(), "fingerprint", b.schema.Fingerprint())
	return nil
}

// CalcBytes reports the current size and the size after compaction.
func (b *Buffer) CalcBytes() (Sizes, error) {
	out, err := Compact(b)
	if err != nil {
		return Sizes{}, err
	}
	return Sizes{Current: b.mem.size(), AfterCompaction: out.mem.size()}, nil
}

// copyValue copies the value of node n stored at addr in b into out and
// returns its new address.
func (b *Buffer) copyValue(out *Buffer, n *schema.Node, addr uint32) (uint32, error) {
	switch n.Kind {
	case schema.KindTable:
		return b.copySlots(out, addr, 2, len(n.Columns), func(i int) *schema.Node { return n.Columns[i].Node })
	case schema.KindTuple:
		if n.Sorted {
			src, err := b.mem.slice(addr, blockWidth(n))
			if err != nil {
				return 0, err
			}
			return out.mem.store(src)
		}
		return b.copySlots(out, addr, 1, len(n.Values), func(i int) *schema.Node { return n.Values[i] })
	case schema.KindList:
		return b.copyChain(out, addr, listNodeSize, func(node, nn uint32) error {
			idx, err := b.mem.u16(node + 8)
			if err != nil {
				return err
			}
			return out.mem.put16(nn+8, idx)
		}, n.Of)
	case schema.KindMap:
		return b.copyChain(out, addr, mapNodeSize, func(node, nn uint32) error {
			k, err := b.mapKey(node)
			if err != nil {
				return err
			}
			kb := append([]byte{byte(len(k) >> 8), byte(len(k))}, k...)
			kp, err := out.mem.store(kb)
			if err != nil {
				return err
			}
			return out.mem.put32(nn+8, kp)
		}, n.Value)
	}

	size, err := scalarSize(&b.mem, n, addr)
	if err != nil {
		return 0, err
	}
	src, err := b.mem.slice(addr, size)
	if err != nil {
		return 0, err
	}
	return out.mem.store(src)
}

// copySlots copies a table or tuple, trimming a count longer than the schema.
func (b *Buffer) copySlots(out *Buffer, addr uint32, header, want int, child func(int) *schema.Node) (uint32, error) {
	count, err := b.count(addr, header)
	if err != nil {
		return 0, err
	}
	count = min(count, want)
	np, err := out.mem.malloc(header + ptrSize*count)
	if err != nil {
		return 0, err
	}
	if header == 2 {
		err = out.mem.put16(np, uint16(count))
	} else {
		err = out.mem.put8(np, uint8(count))
	}
	if err != nil {
		return 0, err
	}
	for i := 0; i < count; i++ {
		slot := uint32(header + ptrSize*i)
		p, err := b.mem.ptr(addr + slot)
		if err != nil {
			return 0, err
		}
		if p == 0 {
			continue
		}
		c, err := b.copyValue(out, child(i), p)
		if err != nil {
			return 0, err
		}
		if err := out.mem.put32(np+slot, c); err != nil {
			return 0, err
		}
	}
	return np, nil
}

// copyChain copies the live nodes of a list or map. extra copies the
// kind-specific tail of a node (list index or map key).
func (b *Buffer) copyChain(out *Buffer, addr uint32, nodeSize int, extra func(node, nn uint32) error, item *schema.Node) (uint32, error) {
	h, err := b.readHeader(addr)
	if err != nil {
		return 0, err
	}
	np, err := out.mem.malloc(collHeaderSize)
	if err != nil {
		return 0, err
	}
	var nh chainHeader
	err = b.walk(h.head, func(node uint32) (bool, error) {
		vp, err := b.mem.ptr(node)
		if err != nil || vp == 0 {
			return err == nil, err
		}
		nn, err := out.mem.malloc(nodeSize)
		if err != nil {
			return false, err
		}
		if err := extra(node, nn); err != nil {
			return false, err
		}
		if nh.tail == 0 {
			nh.head = nn
		} else if err := out.mem.put32(nh.tail+4, nn); err != nil {
			return false, err
		}
		nh.tail = nn
		nh.count++
		c, err := b.copyValue(out, item, vp)
		if err != nil {
			return false, err
		}
		return true, out.mem.put32(nn, c)
	})
	if err != nil {
		return 0, err
	}
	return np, out.writeHeader(np, nh)
}
