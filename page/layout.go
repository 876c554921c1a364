package page

import (
	"encoding/binary"
	"math/rand"

	"github.com/pingcap/errors"
)

// Geometry of a page.
const (
	Align        = 8     // heap blocks are aligned to this boundary
	MinPageSize  = 512   // smallest page accepted by Allocate
	MaxPageSize  = 65536 // directory offsets are 16 bit
	MinDirSize   = 16    // smallest directory; keeps enough probe steps available
	MaxDepth     = 32    // a page may commit to at most all 32 hash bits
	NumPrimes    = 16    // number of probe step values per page
	NoExtra      = -1    // size hint meaning "no additional record"
	nodeSize     = 8     // heap node header: blockSize, recordSize|next, hash
	minBlock     = nodeSize
	headerSize   = 84
	trailerSize  = 4
	dirEntrySize = 2
)

// Header field offsets.
const (
	offTotalInserts = 0
	offEmptyLeft    = 4
	offHashGroup    = 8
	offDirSize      = 12
	offPrimes       = 16
	offFreeList     = offPrimes + 4*NumPrimes
	offDepth        = offFreeList + 2
)

// Encoded directory and free-list values. These never leave the package:
// callers see SlotState instead.
const (
	dirEmpty   = 0xFFFF
	dirDeleted = 0xFFFE
	nilOffset  = 0xFFFF
)

var le = binary.LittleEndian

// ErrPageSize is returned for page sizes outside [MinPageSize, MaxPageSize] or
// not a multiple of Align.
var ErrPageSize = errors.New("illegal page size")

// ErrCorrupt flags a page image which fails validation.
var ErrCorrupt = errors.New("corrupt page")

// SlotState tells what a directory slot currently holds.
type SlotState uint8

const (
	SlotEmpty    SlotState = iota // never used; terminates probe sequences
	SlotDeleted                   // tombstone; probed through, reusable
	SlotOccupied                  // references a record on the heap
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotDeleted:
		return "deleted"
	case SlotOccupied:
		return "occupied"
	}
	return "<unknown>"
}

// Page is a fixed-size bucket with its own directory and heap.
type Page struct {
	buf         []byte
	rng         *rand.Rand
	checkGroups bool
	dirSize     uint32 // cached from header
	heapStart   int    // byte offset of heap within buf
	heapLen     int    // usable heap bytes, multiple of Align
}

// Header is a decoded copy of a page header.
type Header struct {
	Depth        uint32
	HashGroup    uint32
	DirSize      uint32
	EmptyLeft    uint32
	TotalInserts uint32
	FreeList     uint16
	Primes       [NumPrimes]uint32
}

// Allocate creates a page of size bytes. The page is unusable until Empty
// has been called. rng drives the choice of probe steps; if it is nil, a
// generator with a fixed seed is used.
func Allocate(size int, rng *rand.Rand) (*Page, error) {
	if size < MinPageSize || size > MaxPageSize || size%Align != 0 {
		return nil, errors.Annotatef(ErrPageSize, "size %d", size)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Page{
		buf: make([]byte, size),
		rng: rng,
	}, nil
}

// SetCheckGroups switches consistency checking of incoming hashes against
// the page's hash group on or off.
func (p *Page) SetCheckGroups(on bool) {
	p.checkGroups = on
}

// Size returns the page size in bytes.
func (p *Page) Size() int {
	return len(p.buf)
}

// Empty initializes the page to answer for hash group group at depth depth,
// with a directory of dirSize slots. dirSize is clamped to what the page can
// hold. All records are dropped and new probe steps are chosen.
func (p *Page) Empty(depth uint32, group uint32, dirSize uint32) {
	assert(depth <= MaxDepth, "page depth exceeds 32")
	dirSize = clampDirSize(dirSize, len(p.buf))
	clear(p.buf)
	le.PutUint32(p.buf[offHashGroup:], group&GroupMask(depth))
	le.PutUint32(p.buf[offDirSize:], dirSize)
	le.PutUint32(p.buf[offEmptyLeft:], dirSize)
	le.PutUint16(p.buf[offDepth:], uint16(depth))
	primes := choosePrimes(dirSize, p.rng)
	for i, s := range primes {
		le.PutUint32(p.buf[offPrimes+4*i:], s)
	}
	p.layout()
	for i := uint32(0); i < dirSize; i++ {
		p.setDirEntry(i, dirEmpty)
	}
	p.setBlockSize(0, p.heapLen)
	p.setNextFree(0, nilOffset)
	p.setFreeList(0)
}

// layout recomputes the cached geometry from the header.
func (p *Page) layout() {
	p.dirSize = le.Uint32(p.buf[offDirSize:])
	p.heapStart = heapStart(p.dirSize)
	p.heapLen = heapLen(p.dirSize, len(p.buf))
}

func alignUp(n int) int {
	return (n + Align - 1) &^ (Align - 1)
}

func heapStart(dirSize uint32) int {
	return alignUp(headerSize + int(dirSize)*dirEntrySize)
}

func heapLen(dirSize uint32, pageSize int) int {
	n := pageSize - trailerSize - heapStart(dirSize)
	return n &^ (Align - 1)
}

// maxDirSize is the largest directory leaving room for one minimal block.
func maxDirSize(pageSize int) uint32 {
	return uint32((pageSize - headerSize - trailerSize - minBlock - Align) / dirEntrySize)
}

func clampDirSize(dirSize uint32, pageSize int) uint32 {
	if dirSize < MinDirSize {
		dirSize = MinDirSize
	}
	if max := maxDirSize(pageSize); dirSize > max {
		dirSize = max
	}
	return dirSize
}

// GroupMask returns the mask selecting the top depth bits of a hash.
func GroupMask(depth uint32) uint32 {
	return ^uint32(0) << (32 - depth) // shift by 32 yields 0
}

// --- Header accessors ------------------------------------------------------

// Depth is the number of leading hash bits this page has committed to.
func (p *Page) Depth() uint32 {
	return uint32(le.Uint16(p.buf[offDepth:]))
}

// HashGroup is the bit pattern of the top Depth bits this page answers for,
// kept in place (not shifted down).
func (p *Page) HashGroup() uint32 {
	return le.Uint32(p.buf[offHashGroup:])
}

// DirSize returns the number of directory slots.
func (p *Page) DirSize() uint32 {
	return p.dirSize
}

// EmptyLeft returns the number of directory slots never used since the page
// was last emptied.
func (p *Page) EmptyLeft() uint32 {
	return le.Uint32(p.buf[offEmptyLeft:])
}

// TotalInserts returns the lifetime number of inserts into this page.
func (p *Page) TotalInserts() uint32 {
	return le.Uint32(p.buf[offTotalInserts:])
}

// Primes returns the probe step values.
func (p *Page) Primes() [NumPrimes]uint32 {
	var primes [NumPrimes]uint32
	for i := range primes {
		primes[i] = p.prime(uint32(i))
	}
	return primes
}

// Header returns a decoded copy of the page header.
func (p *Page) Header() Header {
	return Header{
		Depth:        p.Depth(),
		HashGroup:    p.HashGroup(),
		DirSize:      p.DirSize(),
		EmptyLeft:    p.EmptyLeft(),
		TotalInserts: p.TotalInserts(),
		FreeList:     p.freeList(),
		Primes:       p.Primes(),
	}
}

// InGroup is a predicate: does hash belong to this page's hash group?
func (p *Page) InGroup(hash uint32) bool {
	return hash&GroupMask(p.Depth()) == p.HashGroup()
}

func (p *Page) prime(i uint32) uint32 {
	return le.Uint32(p.buf[offPrimes+4*int(i&(NumPrimes-1)):])
}

func (p *Page) setEmptyLeft(n uint32) {
	le.PutUint32(p.buf[offEmptyLeft:], n)
}

func (p *Page) setTotalInserts(n uint32) {
	le.PutUint32(p.buf[offTotalInserts:], n)
}

func (p *Page) freeList() uint16 {
	return le.Uint16(p.buf[offFreeList:])
}

func (p *Page) setFreeList(off int) {
	le.PutUint16(p.buf[offFreeList:], uint16(off))
}

// emptyTrigger is the number of EMPTY slots below which the page must be
// rebuilt before consuming another one.
func (p *Page) emptyTrigger() uint32 {
	return p.dirSize / 7
}

// --- Directory accessors ---------------------------------------------------

func (p *Page) dirEntry(i uint32) uint16 {
	return le.Uint16(p.buf[headerSize+int(i)*dirEntrySize:])
}

func (p *Page) setDirEntry(i uint32, v uint16) {
	le.PutUint16(p.buf[headerSize+int(i)*dirEntrySize:], v)
}

// Slot reports the state of directory slot i. Out of range slots are
// reported as empty.
func (p *Page) Slot(i uint32) SlotState {
	if i >= p.dirSize {
		return SlotEmpty
	}
	switch p.dirEntry(i) {
	case dirEmpty:
		return SlotEmpty
	case dirDeleted:
		return SlotDeleted
	}
	return SlotOccupied
}

// occupied returns the heap offset of the record in slot i, if any.
func (p *Page) occupied(i uint32) (int, bool) {
	if i >= p.dirSize {
		return 0, false
	}
	e := p.dirEntry(i)
	if e >= dirDeleted {
		return 0, false
	}
	return int(e), true
}

// --- Heap node accessors ---------------------------------------------------

func (p *Page) blockSize(off int) int {
	return int(le.Uint16(p.buf[p.heapStart+off:]))
}

func (p *Page) setBlockSize(off int, n int) {
	le.PutUint16(p.buf[p.heapStart+off:], uint16(n))
}

func (p *Page) recordSize(off int) int {
	return int(le.Uint16(p.buf[p.heapStart+off+2:]))
}

func (p *Page) setRecordSize(off int, n int) {
	le.PutUint16(p.buf[p.heapStart+off+2:], uint16(n))
}

func (p *Page) nextFree(off int) int {
	return int(le.Uint16(p.buf[p.heapStart+off+2:]))
}

func (p *Page) setNextFree(off int, next int) {
	le.PutUint16(p.buf[p.heapStart+off+2:], uint16(next))
}

func (p *Page) nodeHash(off int) uint32 {
	return le.Uint32(p.buf[p.heapStart+off+4:])
}

func (p *Page) setNodeHash(off int, hash uint32) {
	le.PutUint32(p.buf[p.heapStart+off+4:], hash)
}

func (p *Page) record(off int) []byte {
	start := p.heapStart + off + nodeSize
	return p.buf[start : start+p.recordSize(off)]
}
