package page

import (
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/npillmayer/schuko/tracing"
	"github.com/pingcap/errors"
)

// ErrChecksum is returned if a page's trailer does not match its contents.
var ErrChecksum = errors.New("page checksum mismatch")

func (p *Page) checksum() uint32 {
	return uint32(xxhash.Sum64(p.buf[:len(p.buf)-trailerSize]))
}

// Seal writes the checksum of the page contents into the trailer.
func (p *Page) Seal() {
	le.PutUint32(p.buf[len(p.buf)-trailerSize:], p.checksum())
}

// Verify compares the trailer against the page contents.
func (p *Page) Verify() error {
	if stored, sum := le.Uint32(p.buf[len(p.buf)-trailerSize:]), p.checksum(); stored != sum {
		return errors.Annotatef(ErrChecksum, "stored %08x, computed %08x", stored, sum)
	}
	return nil
}

// MarshalBinary returns a sealed copy of the page image.
func (p *Page) MarshalBinary() ([]byte, error) {
	p.Seal()
	return append([]byte{}, p.buf...), nil
}

// Load reconstructs a page from an image produced by MarshalBinary.
func Load(data []byte, rng *rand.Rand) (*Page, error) {
	p, err := Allocate(len(data), rng)
	if err != nil {
		return nil, err
	}
	if err = p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}

// UnmarshalBinary replaces the page contents with image data, which must be
// of the page's size. The checksum, the header and the heap structure are
// validated; on error the page is left unchanged.
func (p *Page) UnmarshalBinary(data []byte) error {
	if len(data) != len(p.buf) {
		return errors.Annotatef(ErrPageSize, "image of %d bytes for page of %d", len(data), len(p.buf))
	}
	q := &Page{buf: append([]byte{}, data...), rng: p.rng, checkGroups: p.checkGroups}
	if err := q.Verify(); err != nil {
		return err
	}
	if err := q.checkHeader(); err != nil {
		return err
	}
	q.layout()
	if n := q.Check(false); n > 0 {
		return errors.Annotatef(ErrCorrupt, "%d structural problems", n)
	}
	p.buf = q.buf
	p.layout()
	return nil
}

func (p *Page) checkHeader() error {
	h := Header{
		Depth:     uint32(le.Uint16(p.buf[offDepth:])),
		HashGroup: le.Uint32(p.buf[offHashGroup:]),
		DirSize:   le.Uint32(p.buf[offDirSize:]),
		EmptyLeft: le.Uint32(p.buf[offEmptyLeft:]),
	}
	switch {
	case h.Depth > MaxDepth:
		return errors.Annotatef(ErrCorrupt, "depth %d", h.Depth)
	case h.HashGroup&^GroupMask(h.Depth) != 0:
		return errors.Annotatef(ErrCorrupt, "hash group %08x has bits below depth %d", h.HashGroup, h.Depth)
	case h.DirSize < MinDirSize || h.DirSize > maxDirSize(len(p.buf)):
		return errors.Annotatef(ErrCorrupt, "directory size %d", h.DirSize)
	case h.EmptyLeft > h.DirSize:
		return errors.Annotatef(ErrCorrupt, "%d empty slots in directory of %d", h.EmptyLeft, h.DirSize)
	}
	for i := 0; i < NumPrimes; i++ {
		if s := le.Uint32(p.buf[offPrimes+4*i:]); s == 0 || s >= h.DirSize {
			return errors.Annotatef(ErrCorrupt, "probe step %d", s)
		}
	}
	return nil
}

// validBlock checks that a block header at off describes a block inside the
// heap.
func (p *Page) validBlock(off int) bool {
	if off%Align != 0 || off+minBlock > p.heapLen {
		return false
	}
	size := p.blockSize(off)
	return size >= minBlock && size%Align == 0 && off+size <= p.heapLen
}

func (p *Page) validNode(off int) bool {
	return p.validBlock(off) && nodeSize+p.recordSize(off) <= p.blockSize(off)
}

// Check validates the directory and the heap and returns the number of
// problems found. With repair set, broken directory slots are turned into
// tombstones, the empty-slot count is recomputed, and a broken free list is
// dropped (its space is recovered by the next Defrag).
func (p *Page) Check(repair bool) int {
	problems := 0
	blocks := make(map[int]bool)
	used, empties := 0, uint32(0)
	for slot := uint32(0); slot < p.dirSize; slot++ {
		e := p.dirEntry(slot)
		if e == dirEmpty {
			empties++
			continue
		} else if e == dirDeleted {
			continue
		}
		off := int(e)
		bad := !p.validNode(off) || blocks[off]
		if !bad && p.checkGroups && !p.InGroup(p.nodeHash(off)) {
			bad = true
		}
		if bad {
			problems++
			tracer().Errorf("page %08x/%d: slot %d references bad heap node at %d",
				p.HashGroup(), p.Depth(), slot, off)
			if repair {
				p.setDirEntry(slot, dirDeleted)
			}
			continue
		}
		blocks[off] = true
		used += p.blockSize(off)
	}
	if empties != p.EmptyLeft() {
		problems++
		tracer().Errorf("page %08x/%d: header counts %d empty slots, found %d",
			p.HashGroup(), p.Depth(), p.EmptyLeft(), empties)
		if repair {
			p.setEmptyLeft(empties)
		}
	}
	free, ok := 0, true
	off := int(p.freeList())
	for n := 0; off != nilOffset; n++ {
		if n >= p.maxBlocks() || !p.validBlock(off) || blocks[off] {
			ok = false
			break
		}
		blocks[off] = true
		free += p.blockSize(off)
		off = p.nextFree(off)
	}
	if ok && used+free > p.heapLen {
		ok = false
	}
	if !ok {
		problems++
		tracer().Errorf("page %08x/%d: free list is broken", p.HashGroup(), p.Depth())
		if repair {
			p.setFreeList(nilOffset)
		}
	}
	if problems > 0 {
		tracing.With(tracer()).Dump("page header", p.Header())
	}
	return problems
}
