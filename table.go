package exthash

import (
	"math/rand"

	"github.com/npillmayer/exthash/page"
	"github.com/pingcap/errors"
)

// PageID identifies a page within a table's page arena.
type PageID uint32

// Table is an extensible hash table of byte records keyed by 32-bit hashes.
type Table struct {
	opts    Options
	rng     *rand.Rand
	pages   []*page.Page // arena, nil entries are unused
	free    []PageID     // unused arena entries
	gens    []uint64     // per arena entry, renewed whenever the page's records may have moved
	dir     []PageID     // 2^depth entries
	depth   uint32
	epoch   uint64 // advanced on every reorganization, never reused as a generation
	entries int
	stats   Stats
	cursor  scanCursor
}

// New creates an empty table. The table starts with a directory of depth 1
// whose two entries both route to a single page of depth 0.
func New(opts Options) *Table {
	opts = opts.normalize()
	t := &Table{
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		depth: 1,
	}
	id := t.allocPage()
	t.pages[id].Empty(0, 0, opts.DirSize)
	t.dir = []PageID{id, id}
	return t
}

// Options returns the options the table was created with.
func (t *Table) Options() Options {
	return t.opts
}

// Depth returns the directory depth.
func (t *Table) Depth() uint32 {
	return t.depth
}

// DirLen returns the number of directory entries.
func (t *Table) DirLen() int {
	return len(t.dir)
}

// Close releases all pages. The table must not be used afterwards.
func (t *Table) Close() {
	for id := range t.pages {
		t.pages[id] = nil
	}
	t.pages, t.gens, t.free, t.dir = nil, nil, nil, nil
	t.entries = 0
	t.epoch++
}

// allocPage returns the id of a freshly allocated page, reusing arena entries.
func (t *Table) allocPage() PageID {
	p, err := page.Allocate(t.opts.PageSize, t.rng)
	assert(err == nil, "page size not normalized")
	p.SetCheckGroups(t.opts.CheckGroups)
	return t.addPage(p)
}

// addPage places p into the arena and gives it a fresh generation.
func (t *Table) addPage(p *page.Page) PageID {
	var id PageID
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
		t.pages[id] = p
	} else {
		id = PageID(len(t.pages))
		t.pages = append(t.pages, p)
		t.gens = append(t.gens, 0)
	}
	t.renew(id)
	return id
}

func (t *Table) releasePage(id PageID) {
	t.pages[id] = nil
	t.gens[id] = 0
	t.free = append(t.free, id)
	t.epoch++
}

// renew gives page id a generation no handle has seen before.
func (t *Table) renew(id PageID) {
	t.epoch++
	t.gens[id] = t.epoch
}

// index returns the directory entry for hash.
func (t *Table) index(hash uint32) uint32 {
	return hash >> (32 - t.depth)
}

// pageFor returns the page responsible for hash.
func (t *Table) pageFor(hash uint32) (PageID, *page.Page) {
	id := t.dir[t.index(hash)]
	return id, t.pages[id]
}

// Insert stores record under hash and reports success. Duplicate hashes are
// allowed. Use Put to learn why an insert failed.
func (t *Table) Insert(hash uint32, record []byte) bool {
	if err := t.Put(hash, record); err != nil {
		tracer().Debugf("insert of %08x failed: %v", hash, err)
		return false
	}
	return true
}

// Put stores record under hash. If the responsible page is full, it is split,
// doubling the directory if necessary, until the record fits. A failed Put
// leaves the table's contents unchanged.
func (t *Table) Put(hash uint32, record []byte) error {
	if len(record) > page.MaxRecordSize(t.opts.PageSize) {
		return errors.Annotatef(ErrRecordTooLarge, "%d bytes for page size %d", len(record), t.opts.PageSize)
	}
	for {
		id, p := t.pageFor(hash)
		switch r := p.Insert(hash, record); r {
		case page.InsertSuccess:
			t.entries++
			return nil
		case page.InsertSuccessAfterDefrag:
			t.entries++
			t.reorganized(id)
			return nil
		case page.InsertWrongGroup:
			return errors.Annotatef(ErrWrongGroup, "hash %08x at page %d", hash, id)
		}
		t.reorganized(id) // the page may have been rebuilt before giving up
		if err := t.splitPage(id); err != nil {
			return err
		}
	}
}

// reorganized invalidates outstanding handles into page id. Handles into
// other pages stay valid. Probe lengths measured before are no longer
// representative.
func (t *Table) reorganized(id PageID) {
	t.renew(id)
	t.stats.MaxScan = 0
}

// DoubleDirectory doubles the number of directory entries. Every entry is
// duplicated into the two entries it splits into.
func (t *Table) DoubleDirectory() error {
	if t.depth >= t.opts.MaxDepth {
		return errors.Annotatef(ErrAllocation, "directory depth %d reached", t.depth)
	}
	dir := make([]PageID, 2*len(t.dir))
	for i, id := range t.dir {
		dir[2*i], dir[2*i+1] = id, id
	}
	t.dir = dir
	t.depth++
	t.epoch++ // directory positions of running scans have moved
	tracer().Debugf("directory doubled to depth %d", t.depth)
	return nil
}

// splitPage replaces page id by two pages one level deeper.
func (t *Table) splitPage(id PageID) error {
	p := t.pages[id]
	if p.Depth() >= page.MaxDepth {
		return errors.Annotatef(ErrFull, "page %d has committed to all hash bits", id)
	}
	if p.Depth() == t.depth {
		if err := t.DoubleDirectory(); err != nil {
			return err
		}
	}
	ida, idb := t.allocPage(), t.allocPage()
	a, b := t.pages[ida], t.pages[idb]
	if !p.Split(a, b) {
		t.releasePage(ida)
		t.releasePage(idb)
		return errors.Annotatef(ErrFull, "split of page %d failed", id)
	}
	for _, child := range []PageID{ida, idb} {
		first, last := t.pages[child].GetRange(t.depth)
		for i := uint64(first); i <= uint64(last); i++ {
			t.dir[i] = child
		}
	}
	t.releasePage(id)
	t.stats.MaxScan = 0
	tracer().Debugf("page %d split into %d (%d records) and %d (%d records) at depth %d",
		id, ida, a.Count(), idb, b.Count(), a.Depth())
	return nil
}

// GetEntryCount returns the number of records in the table.
func (t *Table) GetEntryCount() int {
	return t.entries
}

// Len is an alias for GetEntryCount.
func (t *Table) Len() int {
	return t.entries
}
