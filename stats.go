package exthash

// Stats are running figures of a table.
type Stats struct {
	Pages     int   // distinct pages
	Entries   int   // live records
	Deletions int   // records removed
	Scans     int64 // keyed search steps (FindFirstKey, FindNextKey)
	Hits      int64 // search steps which found a record
	Checks    int64 // directory slots inspected by search steps
	MaxScan   int   // longest single search step since the last reorganization
}

// AvgScan returns the average number of slots inspected per search step.
func (s Stats) AvgScan() float64 {
	if s.Scans == 0 {
		return 0
	}
	return float64(s.Checks) / float64(s.Scans)
}

// GetStats returns the table's statistics.
func (t *Table) GetStats() Stats {
	s := t.stats
	s.Entries = t.entries
	s.Pages = len(t.pages) - len(t.free)
	return s
}

// ResetStats clears the running counters. Page and entry counts are not
// affected.
func (t *Table) ResetStats() {
	t.stats = Stats{}
}

// Usage sums the occupation of all pages.
type Usage struct {
	Pages     int
	DirSlots  int // page directory slots
	Deleted   int // tombstoned page directory slots
	Allocated int // heap bytes held by records
	Free      int // heap bytes on free lists
}

// FillRatio is the share of heap bytes held by records.
func (u Usage) FillRatio() float64 {
	if u.Allocated+u.Free == 0 {
		return 0
	}
	return float64(u.Allocated) / float64(u.Allocated+u.Free)
}

// Usage walks all pages and sums their occupation.
func (t *Table) Usage() Usage {
	var u Usage
	for _, p := range t.Pages() {
		pu := p.Usage()
		u.Pages++
		u.DirSlots += int(pu.DirSize)
		u.Deleted += pu.Deleted
		u.Allocated += pu.Allocated
		u.Free += pu.Free
	}
	return u
}

// LoadFactor returns the share of the pages' heap bytes held by records.
func (t *Table) LoadFactor() float64 {
	return t.Usage().FillRatio()
}

// TraceStats writes the table's statistics to the tracer at info level.
func (t *Table) TraceStats() {
	s, u := t.GetStats(), t.Usage()
	tracer().Infof("exthash: %d entries in %d pages, directory depth %d", s.Entries, s.Pages, t.depth)
	tracer().Infof("exthash: %d heap bytes used, %d free, fill ratio %.2f", u.Allocated, u.Free, u.FillRatio())
	tracer().Infof("exthash: %d searches, %d hits, %.2f probes avg, %d max", s.Scans, s.Hits, s.AvgScan(), s.MaxScan)
	if s.Deletions > 0 {
		tracer().Infof("exthash: %d deletions, %d tombstones", s.Deletions, u.Deleted)
	}
}
