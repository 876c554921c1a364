package page

import (
	"iter"
	"math/rand"
)

// InsertResult tells the outcome of Page.Insert.
type InsertResult uint8

const (
	InsertSuccess            InsertResult = iota // record stored
	InsertSuccessAfterDefrag                     // record stored, page was rebuilt first
	InsertFull                                   // no room even after one rebuild
	InsertWrongGroup                             // hash does not belong to this page
)

func (r InsertResult) String() string {
	switch r {
	case InsertSuccess:
		return "success"
	case InsertSuccessAfterDefrag:
		return "success-after-defrag"
	case InsertFull:
		return "full"
	case InsertWrongGroup:
		return "wrong-group"
	}
	return "<unknown>"
}

// Ok is true for both success results.
func (r InsertResult) Ok() bool {
	return r == InsertSuccess || r == InsertSuccessAfterDefrag
}

// Match is the position of a key search. Step counts the probe steps taken
// along the key's probe sequence, so a continued search never visits more
// than DirSize slots in total. Probes counts the slots inspected by the call
// which returned the Match.
type Match struct {
	Slot   uint32
	Step   uint32
	Probes int
}

// probeStart returns the first slot and the step for hash.
func (p *Page) probeStart(hash uint32) (uint32, uint32) {
	return (hash >> 4) % p.dirSize, p.prime(hash & 0xF)
}

func (p *Page) advance(slot, step uint32) uint32 {
	slot += step
	if slot >= p.dirSize {
		slot -= p.dirSize
	}
	return slot
}

// probeFree finds the first EMPTY or DELETED slot on hash's probe sequence.
func (p *Page) probeFree(hash uint32) (uint32, bool) {
	slot, step := p.probeStart(hash)
	for i := uint32(0); i < p.dirSize; i++ {
		if p.dirEntry(slot) >= dirDeleted {
			return slot, true
		}
		slot = p.advance(slot, step)
	}
	return 0, false
}

// place stores a record without rebuilding the page.
func (p *Page) place(hash uint32, record []byte) bool {
	if p.EmptyLeft() <= p.emptyTrigger() {
		return false
	}
	slot, ok := p.probeFree(hash)
	return ok && p.heapAlloc(slot, hash, record)
}

// Insert stores record under hash. Duplicates are allowed. If the page runs
// short of directory slots or heap space, it is rebuilt once; if the record
// still does not fit, InsertFull is returned and the page content is
// unchanged apart from that rebuild.
func (p *Page) Insert(hash uint32, record []byte) InsertResult {
	if p.checkGroups && !p.InGroup(hash) {
		tracer().Errorf("hash %08x inserted into page of group %08x/%d", hash, p.HashGroup(), p.Depth())
		return InsertWrongGroup
	}
	if len(record) > p.MaxRecordSize() {
		return InsertFull
	}
	result := InsertSuccess
	for attempt := 0; ; attempt++ {
		if p.place(hash, record) {
			return result
		}
		if attempt > 0 || !p.Defrag(len(record)) {
			return InsertFull
		}
		result = InsertSuccessAfterDefrag
	}
}

// FindFirstKey starts a search for records with the given hash. If found is
// false, the returned Match still carries the number of probes spent.
func (p *Page) FindFirstKey(hash uint32) (m Match, found bool) {
	slot, step := p.probeStart(hash)
	return p.scan(slot, step, 0, hash)
}

// FindNextKey continues a search after prev, which must have been returned
// by FindFirstKey or FindNextKey for the same hash on an unchanged page.
func (p *Page) FindNextKey(prev Match, hash uint32) (m Match, found bool) {
	if prev.Slot >= p.dirSize {
		return Match{Step: p.dirSize}, false
	}
	_, step := p.probeStart(hash)
	return p.scan(p.advance(prev.Slot, step), step, prev.Step+1, hash)
}

func (p *Page) scan(slot, step, done uint32, hash uint32) (Match, bool) {
	probes := 0
	for ; done < p.dirSize; done++ {
		e := p.dirEntry(slot)
		probes++
		if e == dirEmpty {
			return Match{Slot: slot, Step: done, Probes: probes}, false
		}
		if e != dirDeleted && p.nodeHash(int(e)) == hash {
			return Match{Slot: slot, Step: done, Probes: probes}, true
		}
		slot = p.advance(slot, step)
	}
	return Match{Slot: slot, Step: done, Probes: probes}, false
}

// Copy returns a copy of the record in slot, or nil if the slot is not
// occupied.
func (p *Page) Copy(slot uint32) []byte {
	off, ok := p.occupied(slot)
	if !ok {
		return nil
	}
	return append([]byte{}, p.record(off)...)
}

// View returns the record in slot without copying. The slice is valid until
// the page is modified.
func (p *Page) View(slot uint32) ([]byte, bool) {
	off, ok := p.occupied(slot)
	if !ok {
		return nil, false
	}
	return p.record(off), true
}

// HashAt returns the hash stored with the record in slot.
func (p *Page) HashAt(slot uint32) (uint32, bool) {
	off, ok := p.occupied(slot)
	if !ok {
		return 0, false
	}
	return p.nodeHash(off), true
}

// Update overwrites the record in slot. The new record must be of the same
// size as the stored one.
func (p *Page) Update(slot uint32, record []byte) bool {
	off, ok := p.occupied(slot)
	if !ok || p.recordSize(off) != len(record) {
		return false
	}
	copy(p.record(off), record)
	return true
}

// Remove deletes the record in slot. Removing an unoccupied slot is a no-op.
func (p *Page) Remove(slot uint32) {
	p.heapFree(slot)
}

// NextOccupied returns the first occupied slot at or after from.
func (p *Page) NextOccupied(from uint32) (uint32, bool) {
	for slot := from; slot < p.dirSize; slot++ {
		if p.dirEntry(slot) < dirDeleted {
			return slot, true
		}
	}
	return 0, false
}

// Records iterates over all records in directory order. The record slices are
// views into the page.
func (p *Page) Records() iter.Seq2[uint32, []byte] {
	return func(yield func(uint32, []byte) bool) {
		for slot := uint32(0); slot < p.dirSize; slot++ {
			if off, ok := p.occupied(slot); ok {
				if !yield(slot, p.record(off)) {
					return
				}
			}
		}
	}
}

// Count returns the number of records on the page.
func (p *Page) Count() int {
	n := 0
	for slot := uint32(0); slot < p.dirSize; slot++ {
		if p.dirEntry(slot) < dirDeleted {
			n++
		}
	}
	return n
}

// --- Probe steps -----------------------------------------------------------

// choosePrimes picks sixteen probe steps for a directory of dirSize slots.
// The range [0, dirSize/2] is cut into sixteen zones and the prime nearest to
// each zone's upper boundary which does not divide dirSize is taken. Every
// other step is mirrored to dirSize-p, then the steps are shuffled so that
// step size and direction do not correlate with the low hash bits.
func choosePrimes(dirSize uint32, rng *rand.Rand) [NumPrimes]uint32 {
	var primes [NumPrimes]uint32
	half := dirSize / 2
	for i := range primes {
		s := nearestStep(half*uint32(i+1)/NumPrimes, dirSize)
		if i&1 == 1 {
			s = dirSize - s
		}
		primes[i] = s
	}
	rng.Shuffle(NumPrimes, func(i, j int) {
		primes[i], primes[j] = primes[j], primes[i]
	})
	return primes
}

// nearestStep returns the prime closest to target, which lies strictly
// between 1 and n and does not divide n. If none exists, 1 is returned.
func nearestStep(target, n uint32) uint32 {
	usable := func(c uint32) bool {
		return c >= 2 && c < n && n%c != 0 && isPrime(c)
	}
	for d := uint32(0); d <= target || target+d < n; d++ {
		if d <= target && usable(target-d) {
			return target - d
		}
		if usable(target + d) {
			return target + d
		}
	}
	return 1
}

func isPrime(n uint32) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint32(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
