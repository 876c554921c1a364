package page

// Heap blocks are at least minBlock bytes and a multiple of Align. An
// allocated block starts with
//
//	blockSize u16 | recordSize u16 | hash u32 | record bytes ...
//
// A free block reuses the recordSize field as the offset of the next free
// block (nilOffset ends the list).

// blockFor returns the block size needed to hold a record of n bytes.
func blockFor(n int) int {
	size := alignUp(nodeSize + n)
	if size < minBlock {
		size = minBlock
	}
	return size
}

// maxBlocks bounds any walk over the free list, so that a corrupted list
// cannot loop forever.
func (p *Page) maxBlocks() int {
	return p.heapLen/minBlock + 1
}

// heapAlloc carves a block for record from the first free block large enough,
// and stores its offset in directory slot slot.
func (p *Page) heapAlloc(slot uint32, hash uint32, record []byte) bool {
	need := blockFor(len(record))
	prev := -1
	off := int(p.freeList())
	for n := 0; off != nilOffset && n < p.maxBlocks(); n++ {
		size := p.blockSize(off)
		if size < need {
			prev, off = off, p.nextFree(off)
			continue
		}
		next := p.nextFree(off)
		if size-need >= minBlock {
			rest := off + need
			p.setBlockSize(rest, size-need)
			p.setNextFree(rest, next)
			p.setBlockSize(off, need)
			next = rest
		}
		if prev < 0 {
			p.setFreeList(next)
		} else {
			p.setNextFree(prev, next)
		}
		p.setRecordSize(off, len(record))
		p.setNodeHash(off, hash)
		copy(p.buf[p.heapStart+off+nodeSize:], record)
		if p.dirEntry(slot) == dirEmpty {
			p.setEmptyLeft(p.EmptyLeft() - 1)
		}
		p.setDirEntry(slot, uint16(off))
		p.setTotalInserts(p.TotalInserts() + 1)
		return true
	}
	return false
}

// heapFree returns the block referenced by slot to the free list and marks
// the slot as deleted. The block's contents are zeroed.
func (p *Page) heapFree(slot uint32) {
	off, ok := p.occupied(slot)
	if !ok {
		return
	}
	size := p.blockSize(off)
	clear(p.buf[p.heapStart+off+2 : p.heapStart+off+size])
	p.setNextFree(off, int(p.freeList()))
	p.setFreeList(off)
	p.setDirEntry(slot, dirDeleted)
}

// FreeBytes returns the number of bytes on the free list. Free bytes may be
// fragmented; a record of that size does not necessarily fit.
func (p *Page) FreeBytes() int {
	total := 0
	off := int(p.freeList())
	for n := 0; off != nilOffset && n < p.maxBlocks(); n++ {
		total += p.blockSize(off)
		off = p.nextFree(off)
	}
	return total
}

// MaxRecordSize returns the largest record an empty page of this size could
// take with the smallest possible directory.
func (p *Page) MaxRecordSize() int {
	return MaxRecordSize(len(p.buf))
}

// MaxRecordSize returns the largest record which fits into an empty page of
// size pageSize.
func MaxRecordSize(pageSize int) int {
	n := heapLen(MinDirSize, pageSize) - nodeSize
	if n > 0xFFFF {
		n = 0xFFFF
	}
	return n
}
