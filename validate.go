package exthash

import (
	"github.com/npillmayer/exthash/page"
	"github.com/pingcap/errors"
)

// Validate checks the routing structure of the table and the consistency of
// every page, and returns the number of problems found.
//
// Routing problems (a directory entry routing to a page of the wrong hash
// group, a page deeper than the directory, or a page whose directory entries
// are not contiguous) cannot be repaired and are reported as ErrCorrupt.
// Page-level problems and records stored in a page of the wrong hash group
// are repaired if repair is set, at the cost of losing the records involved;
// otherwise they are reported as ErrCorrupt as well.
func (t *Table) Validate(repair bool) (int, error) {
	if err := t.validateRouting(); err != nil {
		return 1, err
	}
	problems, entries := 0, 0
	for id, p := range t.Pages() {
		n := p.Check(repair)
		for slot := range p.Records() {
			hash, _ := p.HashAt(slot)
			if p.InGroup(hash) {
				continue
			}
			n++
			tracer().Errorf("page %d holds hash %08x outside of its group %08x/%d",
				id, hash, p.HashGroup(), p.Depth())
			if repair {
				p.Remove(slot)
				t.entries--
			}
		}
		if n > 0 && repair {
			t.reorganized(id)
		}
		problems += n
		entries += p.Count()
	}
	if entries != t.entries {
		problems++
		tracer().Errorf("table counts %d entries, pages hold %d", t.entries, entries)
		if repair {
			t.entries = entries
		}
	}
	if problems > 0 {
		if repair {
			return problems, nil
		}
		return problems, errors.Annotatef(ErrCorrupt, "%d problems", problems)
	}
	return 0, nil
}

func (t *Table) validateRouting() error {
	if uint64(len(t.dir)) != uint64(1)<<t.depth {
		return errors.Annotatef(ErrCorrupt, "directory of %d entries at depth %d", len(t.dir), t.depth)
	}
	for i := uint64(0); i < uint64(len(t.dir)); i++ {
		id := t.dir[i]
		if int(id) >= len(t.pages) || t.pages[id] == nil {
			return errors.Annotatef(ErrCorrupt, "directory entry %d routes to missing page %d", i, id)
		}
		p := t.pages[id]
		if p.Depth() > t.depth {
			return errors.Annotatef(ErrCorrupt, "page %d at depth %d exceeds directory depth %d", id, p.Depth(), t.depth)
		}
		prefix := uint32(i << (32 - t.depth))
		if prefix&page.GroupMask(p.Depth()) != p.HashGroup() {
			return errors.Annotatef(ErrCorrupt, "directory entry %d routes to page %d of group %08x/%d",
				i, id, p.HashGroup(), p.Depth())
		}
		first, last := p.GetRange(t.depth)
		if i < uint64(first) || i > uint64(last) || t.dir[first] != id {
			return errors.Annotatef(ErrCorrupt, "directory entry %d: range [%d,%d] of page %d is not contiguous", i, first, last, id)
		}
	}
	return nil
}
