package exthash

import (
	"bufio"
	"encoding/binary"
	"io"
	"math/rand"

	"github.com/klauspost/compress/zstd"
	"github.com/npillmayer/exthash/page"
	"github.com/pingcap/errors"
)

// A snapshot starts with an 8 byte preamble
//
//	magic "EXTH" | version u8 | flags u8 | reserved u16
//
// followed by the body, zstd-compressed if flagCompressed is set:
//
//	page size u32 | directory depth u32 | page count u32 | entries u64
//	directory: 2^depth × u32 page number
//	pages: page count × page size bytes, sealed page images
//
// Page numbers in a snapshot are dense, independent of arena ids.

const (
	snapshotMagic   = "EXTH"
	snapshotVersion = 1
	flagCompressed  = 1 << 0
	preambleSize    = 8
	bodyHeaderSize  = 20
	dirChunk        = 1 << 16 // directory entries allocated ahead of reading them
)

// SnapshotOptions control the snapshot format.
type SnapshotOptions struct {
	Compress bool // compress the body with zstd
}

// WriteSnapshot writes the table's records and structure to w. Running
// statistics are not part of a snapshot.
func (t *Table) WriteSnapshot(w io.Writer, opts SnapshotOptions) error {
	var pre [preambleSize]byte
	copy(pre[:], snapshotMagic)
	pre[4] = snapshotVersion
	if opts.Compress {
		pre[5] = flagCompressed
	}
	if _, err := w.Write(pre[:]); err != nil {
		return errors.Trace(err)
	}
	if !opts.Compress {
		return t.writeBody(w)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return errors.Trace(err)
	}
	if err = t.writeBody(enc); err != nil {
		enc.Close()
		return err
	}
	return errors.Trace(enc.Close())
}

func (t *Table) writeBody(w io.Writer) error {
	bw := bufio.NewWriter(w)
	number := make(map[PageID]uint32)
	var order []PageID
	for id := range t.Pages() {
		number[id] = uint32(len(order))
		order = append(order, id)
	}
	var hdr [bodyHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(t.opts.PageSize))
	binary.LittleEndian.PutUint32(hdr[4:], t.depth)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(order)))
	binary.LittleEndian.PutUint64(hdr[12:], uint64(t.entries))
	if _, err := bw.Write(hdr[:]); err != nil {
		return errors.Trace(err)
	}
	var b [4]byte
	for _, id := range t.dir {
		binary.LittleEndian.PutUint32(b[:], number[id])
		if _, err := bw.Write(b[:]); err != nil {
			return errors.Trace(err)
		}
	}
	for _, id := range order {
		img, err := t.pages[id].MarshalBinary()
		if err != nil {
			return errors.Trace(err)
		}
		if _, err = bw.Write(img); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(bw.Flush())
}

// ReadSnapshot reconstructs a table from a snapshot written by WriteSnapshot.
// The page size is taken from the snapshot; the other options apply to the
// new table. A snapshot deeper than opts.MaxDepth is rejected as corrupt. Every page is verified against its checksum and the table's
// routing structure is validated.
func ReadSnapshot(r io.Reader, opts Options) (*Table, error) {
	var pre [preambleSize]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, errors.Annotate(err, "snapshot preamble")
	}
	if string(pre[:4]) != snapshotMagic {
		return nil, errors.Annotatef(ErrCorrupt, "not a snapshot: magic %q", pre[:4])
	}
	if pre[4] != snapshotVersion {
		return nil, errors.Annotatef(ErrCorrupt, "unsupported snapshot version %d", pre[4])
	}
	if pre[5]&flagCompressed != 0 {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
		defer dec.Close()
		return readBody(dec, opts)
	}
	return readBody(bufio.NewReader(r), opts)
}

func readBody(r io.Reader, opts Options) (*Table, error) {
	var hdr [bodyHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Annotate(err, "snapshot header")
	}
	pageSize := int(binary.LittleEndian.Uint32(hdr[0:]))
	depth := binary.LittleEndian.Uint32(hdr[4:])
	count := binary.LittleEndian.Uint32(hdr[8:])
	entries := binary.LittleEndian.Uint64(hdr[12:])
	if pageSize < page.MinPageSize || pageSize > page.MaxPageSize || pageSize%page.Align != 0 {
		return nil, errors.Annotatef(ErrCorrupt, "page size %d", pageSize)
	}
	if depth < 1 || depth > page.MaxDepth || uint64(count) > uint64(1)<<depth || count == 0 {
		return nil, errors.Annotatef(ErrCorrupt, "directory depth %d with %d pages", depth, count)
	}
	opts.PageSize = pageSize
	opts = opts.normalize()
	if depth > opts.MaxDepth {
		return nil, errors.Annotatef(ErrCorrupt, "directory depth %d exceeds limit %d", depth, opts.MaxDepth)
	}
	t := &Table{
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		depth: depth,
		dir:   make([]PageID, 0, min(uint64(1)<<depth, dirChunk)),
	}
	var b [4]byte
	for i := uint64(0); i < uint64(1)<<depth; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, errors.Annotate(err, "snapshot directory")
		}
		n := binary.LittleEndian.Uint32(b[:])
		if n >= count {
			return nil, errors.Annotatef(ErrCorrupt, "directory entry %d routes to page %d of %d", i, n, count)
		}
		t.dir = append(t.dir, PageID(n))
	}
	img := make([]byte, pageSize)
	for n := uint32(0); n < count; n++ {
		if _, err := io.ReadFull(r, img); err != nil {
			return nil, errors.Annotatef(err, "snapshot page %d", n)
		}
		p, err := page.Load(img, t.rng)
		if err != nil {
			return nil, errors.Annotatef(err, "snapshot page %d", n)
		}
		p.SetCheckGroups(opts.CheckGroups)
		t.addPage(p)
		t.entries += p.Count()
	}
	if uint64(t.entries) != entries {
		return nil, errors.Annotatef(ErrCorrupt, "snapshot counts %d entries, pages hold %d", entries, t.entries)
	}
	if _, err := t.Validate(false); err != nil {
		return nil, err
	}
	return t, nil
}
