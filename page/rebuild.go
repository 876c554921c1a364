package page

// Usage summarizes the occupation of a page.
type Usage struct {
	Records   int    // live records
	Allocated int    // heap bytes held by live records
	Free      int    // heap bytes on the free list
	Deleted   int    // tombstoned directory slots
	DirSize   uint32 // directory slots
	EmptyLeft uint32 // never used directory slots
}

// FillRatio is the share of the heap held by live records.
func (u Usage) FillRatio() float64 {
	total := u.Allocated + u.Free
	if total == 0 {
		return 0
	}
	return float64(u.Allocated) / float64(total)
}

// Usage returns the page's occupation figures.
func (p *Page) Usage() Usage {
	u := Usage{
		DirSize:   p.dirSize,
		EmptyLeft: p.EmptyLeft(),
		Free:      p.FreeBytes(),
	}
	for slot := uint32(0); slot < p.dirSize; slot++ {
		switch e := p.dirEntry(slot); e {
		case dirEmpty:
		case dirDeleted:
			u.Deleted++
		default:
			u.Records++
			u.Allocated += p.blockSize(int(e))
		}
	}
	return u
}

// GoodDirSize returns the number of live records, the heap bytes they hold,
// and a directory size suitable for rebuilding the page with them. If extra
// is not NoExtra, room for one more record of extra bytes is included.
//
// The directory is sized so that the heap can be filled with records of the
// current average block size while the directory stays at most three quarters
// full, but never smaller than the live records need to stay clear of the
// rebuild trigger.
func (p *Page) GoodDirSize(extra int) (records int, allocated int, dirSize uint32) {
	for slot := uint32(0); slot < p.dirSize; slot++ {
		if off, ok := p.occupied(slot); ok {
			records++
			allocated += p.blockSize(off)
		}
	}
	need := records
	bytes := allocated
	if extra != NoExtra {
		need++
		bytes += blockFor(extra)
	}
	avail := len(p.buf) - headerSize - trailerSize
	avg := 2 * minBlock
	if need > 0 {
		avg = (bytes + need - 1) / need
	}
	fit := avail * 3 / (avg*3 + dirEntrySize*4)
	dir := fit * 4 / 3
	if lower := need*4/3 + 1; dir < lower {
		dir = lower
	}
	if upper := (avail - bytes - 2*Align) / dirEntrySize; dir > upper {
		dir = upper
	}
	if dir < 0 {
		dir = 0
	}
	return records, allocated, clampDirSize(uint32(dir), len(p.buf))
}

// Defrag rebuilds the page with a fresh directory and a compacted heap,
// sized to take one more record of extra bytes (or NoExtra). On failure the
// page is left untouched. Slot indices are not preserved.
func (p *Page) Defrag(extra int) bool {
	records, _, dir := p.GoodDirSize(extra)
	fresh := &Page{buf: make([]byte, len(p.buf)), rng: p.rng, checkGroups: p.checkGroups}
	fresh.Empty(p.Depth(), p.HashGroup(), dir)
	for slot := uint32(0); slot < p.dirSize; slot++ {
		off, ok := p.occupied(slot)
		if !ok {
			continue
		}
		if !fresh.place(p.nodeHash(off), p.record(off)) {
			tracer().Debugf("defrag of page %08x/%d failed with %d records, dir size %d",
				p.HashGroup(), p.Depth(), records, dir)
			return false
		}
	}
	fresh.setTotalInserts(p.TotalInserts())
	p.buf = fresh.buf
	p.layout()
	return true
}

// Split distributes the records of p over two fresh pages a and b, each one
// level deeper than p. a takes the records whose hash has the new group bit
// cleared, b those with the bit set. p itself is not modified. Split fails if
// p already has depth MaxDepth, if a or b differ in size from p, or if the
// records do not fit.
func (p *Page) Split(a, b *Page) bool {
	if p.Depth() >= MaxDepth || a.Size() != p.Size() || b.Size() != p.Size() {
		return false
	}
	_, _, dir := p.GoodDirSize(NoExtra)
	if p.splitInto(a, b, dir) {
		return true
	}
	// p's own directory size is known to hold all of its records
	if dir != p.dirSize && p.splitInto(a, b, p.dirSize) {
		return true
	}
	tracer().Debugf("split of page %08x/%d failed", p.HashGroup(), p.Depth())
	return false
}

func (p *Page) splitInto(a, b *Page, dir uint32) bool {
	depth := p.Depth() + 1
	bit := uint32(1) << (32 - depth)
	lo := p.HashGroup() &^ bit
	a.Empty(depth, lo, dir)
	b.Empty(depth, lo|bit, dir)
	for slot := uint32(0); slot < p.dirSize; slot++ {
		off, ok := p.occupied(slot)
		if !ok {
			continue
		}
		hash := p.nodeHash(off)
		target := a
		if hash&bit != 0 {
			target = b
		}
		if !target.place(hash, p.record(off)) {
			return false
		}
	}
	return true
}

// GetRange returns the inclusive range of table directory entries which map
// to this page, for a table directory of 2^tableDepth entries indexed by the
// top tableDepth bits of a hash. tableDepth must not be less than the page's
// depth.
func (p *Page) GetRange(tableDepth uint32) (first, last uint32) {
	depth := p.Depth()
	assert(tableDepth >= depth, "table depth less than page depth")
	first = p.HashGroup() >> (32 - tableDepth) // shift by 32 yields 0
	count := uint64(1) << (tableDepth - depth)
	return first, uint32(uint64(first) + count - 1)
}
