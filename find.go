package exthash

import (
	"iter"

	"github.com/npillmayer/exthash/page"
	"github.com/pingcap/errors"
)

// Handle designates a record found by a search or a scan. Handles stay valid
// across inserts, updates and removals. A handle becomes stale when the page
// it points into is defragmented or split; handles into other pages are not
// affected. The zero Handle is invalid.
type Handle struct {
	page  PageID
	m     page.Match
	epoch uint64
}

// Valid is true for handles returned by a successful search or scan. It does
// not tell whether the handle is still current.
func (h Handle) Valid() bool {
	return h.epoch != 0
}

// Page returns the id of the page holding the record.
func (h Handle) Page() PageID {
	return h.page
}

// Slot returns the directory slot of the record within its page.
func (h Handle) Slot() uint32 {
	return h.m.Slot
}

func (t *Table) handle(id PageID, m page.Match) Handle {
	return Handle{page: id, m: m, epoch: t.gens[id]}
}

// resolve returns the page a handle points into.
func (t *Table) resolve(h Handle) (*page.Page, error) {
	if h.epoch == 0 {
		return nil, errors.Annotate(ErrStaleHandle, "zero handle")
	}
	if int(h.page) >= len(t.pages) || t.pages[h.page] == nil {
		return nil, errors.Annotatef(ErrStaleHandle, "page %d does not exist", h.page)
	}
	if h.epoch != t.gens[h.page] {
		return nil, errors.Annotatef(ErrStaleHandle, "handle from generation %d, page %d at %d",
			h.epoch, h.page, t.gens[h.page])
	}
	return t.pages[h.page], nil
}

// count aggregates the probe statistics of one keyed search step.
func (t *Table) count(m page.Match, found bool) {
	t.stats.Scans++
	t.stats.Checks += int64(m.Probes)
	if found {
		t.stats.Hits++
	}
	if m.Probes > t.stats.MaxScan {
		t.stats.MaxScan = m.Probes
	}
}

// FindFirstKey searches for the first record stored under hash.
func (t *Table) FindFirstKey(hash uint32) (Handle, bool) {
	id, p := t.pageFor(hash)
	m, found := p.FindFirstKey(hash)
	t.count(m, found)
	if !found {
		return Handle{}, false
	}
	return t.handle(id, m), true
}

// FindNextKey continues a search for hash after h. It returns false at the
// end of the hash's records, and for a stale h.
func (t *Table) FindNextKey(h Handle, hash uint32) (Handle, bool) {
	p, err := t.resolve(h)
	if err != nil {
		tracer().Debugf("find next: %v", err)
		return Handle{}, false
	}
	m, found := p.FindNextKey(h.m, hash)
	t.count(m, found)
	if !found {
		return Handle{}, false
	}
	return t.handle(h.page, m), true
}

// Lookup iterates over handles of all records stored under hash. The loop
// body may remove the record it has been handed.
func (t *Table) Lookup(hash uint32) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for h, ok := t.FindFirstKey(hash); ok; h, ok = t.FindNextKey(h, hash) {
			if !yield(h) {
				return
			}
		}
	}
}

// Copy returns a copy of the record designated by h.
func (t *Table) Copy(h Handle) ([]byte, error) {
	rec, err := t.View(h)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, rec...), nil
}

// View returns the record designated by h without copying it. The slice is
// valid until the next modification of the table.
func (t *Table) View(h Handle) ([]byte, error) {
	p, err := t.resolve(h)
	if err != nil {
		return nil, err
	}
	rec, ok := p.View(h.m.Slot)
	if !ok {
		return nil, errors.Annotatef(ErrStaleHandle, "slot %d of page %d is not occupied", h.m.Slot, h.page)
	}
	return rec, nil
}

// Update overwrites the record designated by h in place. Records can only be
// replaced by records of the same size; for a record of different size,
// Update does nothing and returns false. Use Remove and Insert instead.
func (t *Table) Update(h Handle, record []byte) (bool, error) {
	p, err := t.resolve(h)
	if err != nil {
		return false, err
	}
	return p.Update(h.m.Slot, record), nil
}

// Remove deletes the record designated by h. Removing a record twice is a
// no-op.
func (t *Table) Remove(h Handle) error {
	p, err := t.resolve(h)
	if err != nil {
		return err
	}
	if p.Slot(h.m.Slot) != page.SlotOccupied {
		return nil
	}
	p.Remove(h.m.Slot)
	t.entries--
	t.stats.Deletions++
	return nil
}

// --- Full scan -------------------------------------------------------------

type scanCursor struct {
	index  uint64 // directory entry
	slot   uint32 // next page slot to look at
	epoch  uint64
	active bool
}

// FindFirst starts a scan over all records of the table, in no particular
// order. Each page is visited once, however many directory entries route to
// it.
func (t *Table) FindFirst() (Handle, bool) {
	t.cursor = scanCursor{epoch: t.epoch, active: true}
	return t.FindNext()
}

// FindNext continues the scan started by FindFirst. Records may be removed
// during a scan; an insert which reorganizes any page ends it.
func (t *Table) FindNext() (Handle, bool) {
	if t.cursor.active && t.cursor.epoch != t.epoch {
		tracer().Debugf("table reorganized during scan")
		t.cursor.active = false
	}
	for t.cursor.active && t.cursor.index < uint64(len(t.dir)) {
		id := t.dir[t.cursor.index]
		p := t.pages[id]
		if slot, ok := p.NextOccupied(t.cursor.slot); ok {
			t.cursor.slot = slot + 1
			return t.handle(id, page.Match{Slot: slot}), true
		}
		_, last := p.GetRange(t.depth)
		t.cursor.index = uint64(last) + 1
		t.cursor.slot = 0
	}
	t.cursor.active = false
	return Handle{}, false
}

// All iterates over all records of the table, in no particular order. The
// record slices are views into the table; the loop body must not modify the
// table.
func (t *Table) All() iter.Seq2[Handle, []byte] {
	return func(yield func(Handle, []byte) bool) {
		for i := uint64(0); i < uint64(len(t.dir)); {
			id := t.dir[i]
			p := t.pages[id]
			for slot, rec := range p.Records() {
				if !yield(t.handle(id, page.Match{Slot: slot}), rec) {
					return
				}
			}
			_, last := p.GetRange(t.depth)
			i = uint64(last) + 1
		}
	}
}

// Pages iterates over the distinct pages of the table in directory order.
func (t *Table) Pages() iter.Seq2[PageID, *page.Page] {
	return func(yield func(PageID, *page.Page) bool) {
		for i := uint64(0); i < uint64(len(t.dir)); {
			id := t.dir[i]
			p := t.pages[id]
			if !yield(id, p) {
				return
			}
			_, last := p.GetRange(t.depth)
			i = uint64(last) + 1
		}
	}
}
