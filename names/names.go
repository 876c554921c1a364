/*
Package names is a string-keyed name table on top of an extensible hash table.

Names are hashed to 32 bits and stored together with their value in one
exthash record. As hash values are not unique, every lookup compares the
stored name with the one asked for. Names may be folded, making lookups
insensitive to ASCII case, and may be looked up by unique abbreviation:

	tbl := names.New(names.WithFold(true))
	tbl.Put("Wizard", []byte("level 30"))
	full, _ := tbl.Match("wiz")  // "Wizard"

Name lists are loaded through a streaming Reader; package textfile provides
one for plain text files.

----------------------------------------------------------------------

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer@com>

All rights reserved.

License information is available in the LICENSE file.
*/
package names

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/derekparker/trie"
	"github.com/npillmayer/exthash"
	"github.com/npillmayer/exthash/hashfn"
	"github.com/npillmayer/schuko/tracing"
	"github.com/pingcap/errors"
)

// tracer writes to trace with key 'exthash'
func tracer() tracing.Trace {
	return tracing.Select("exthash")
}

// Reader yields name/value pairs one-by-one.
// It should return io.EOF when the stream is exhausted.
type Reader interface {
	Next() (name string, value []byte, err error)
}

// Table maps names to byte values.
type Table struct {
	tbl        *exthash.Table
	prefix     *trie.Trie // lookup keys of all names ever stored, deleted ones included
	hash       func(string) uint32
	fold       bool
	Identifier string // identifies the table, e.g. by its source
}

type config struct {
	hash hashfn.Func
	fold bool
	opts exthash.Options
}

// Option configures a name table.
type Option func(*config)

// WithHash sets the hash function for names. The default is hashfn.String,
// or hashfn.Fold for folded tables.
func WithHash(f hashfn.Func) Option {
	return func(c *config) {
		c.hash = f
	}
}

// WithFold makes names insensitive to ASCII case.
func WithFold(fold bool) Option {
	return func(c *config) {
		c.fold = fold
	}
}

// WithTableOptions sets the options for the underlying hash table.
func WithTableOptions(opts exthash.Options) Option {
	return func(c *config) {
		c.opts = opts
	}
}

func configure(opts []Option) config {
	c := config{opts: exthash.DefaultOptions()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// New creates an empty name table.
func New(opts ...Option) *Table {
	c := configure(opts)
	return newTable(exthash.New(c.opts), c)
}

func newTable(tbl *exthash.Table, c config) *Table {
	t := &Table{
		tbl:    tbl,
		prefix: trie.New(),
		fold:   c.fold,
	}
	switch {
	case c.hash != nil:
		f := c.hash
		t.hash = func(name string) uint32 { return f([]byte(t.key(name))) }
	case c.fold:
		t.hash = hashfn.Fold
	default:
		t.hash = hashfn.String
	}
	return t
}

// FromTable wraps a hash table holding name records, e.g. one read from a
// snapshot. The options must match the ones the records were stored with.
func FromTable(tbl *exthash.Table, opts ...Option) (*Table, error) {
	t := newTable(tbl, configure(opts))
	for h, rec := range tbl.All() {
		name, _, err := decodeRecord(rec)
		if err != nil {
			return nil, errors.Annotatef(err, "page %d, slot %d", h.Page(), h.Slot())
		}
		t.remember(string(name))
	}
	return t, nil
}

// Load creates a name table from a streaming source. Later entries for a name
// replace earlier ones.
func Load(identifier string, reader Reader, opts ...Option) (*Table, error) {
	t := New(opts...)
	t.Identifier = fmt.Sprintf("names: %s", identifier)
	for {
		name, value, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err = t.Put(name, value); err != nil {
			return nil, errors.Annotatef(err, "name %q", name)
		}
	}
	s := t.tbl.GetStats()
	tracer().Infof("name table stats entries=%d pages=%d depth=%d fill=%.2f",
		s.Entries, s.Pages, t.tbl.Depth(), t.tbl.LoadFactor())
	return t, nil
}

// HashTable returns the underlying hash table.
func (t *Table) HashTable() *exthash.Table {
	return t.tbl
}

// key returns the lookup key for name.
func (t *Table) key(name string) string {
	if t.fold {
		return lowerASCII(name)
	}
	return name
}

func (t *Table) same(stored []byte, name string) bool {
	if !t.fold {
		return string(stored) == name
	}
	if len(stored) != len(name) {
		return false
	}
	for i, c := range stored {
		if lowerByte(c) != lowerByte(name[i]) {
			return false
		}
	}
	return true
}

// find locates the record for name. Besides the value it returns the name as
// stored, which may differ from name in case for folded tables.
func (t *Table) find(name string) (exthash.Handle, []byte, []byte, bool) {
	for h := range t.tbl.Lookup(t.hash(name)) {
		rec, err := t.tbl.View(h)
		if err != nil {
			continue
		}
		stored, value, err := decodeRecord(rec)
		if err != nil {
			tracer().Errorf("%v", err)
			continue
		}
		if t.same(stored, name) {
			return h, stored, value, true
		}
	}
	return exthash.Handle{}, nil, nil, false
}

// Put sets the value for name.
func (t *Table) Put(name string, value []byte) error {
	if name == "" {
		return errors.Trace(ErrEmptyName)
	}
	hash := t.hash(name)
	rec := encodeRecord(name, value)
	h, _, _, found := t.find(name)
	if !found {
		if err := t.tbl.Put(hash, rec); err != nil {
			return err
		}
		t.remember(name)
		return nil
	}
	ok, err := t.tbl.Update(h, rec)
	if err != nil {
		return err
	}
	if !ok { // size changed
		if err = t.tbl.Remove(h); err != nil {
			return err
		}
		return t.tbl.Put(hash, rec)
	}
	return nil
}

// remember enters name into the prefix index. Keys are never removed; every
// key found in the index is checked against the hash table.
func (t *Table) remember(name string) {
	key := t.key(name)
	if _, ok := t.prefix.Find(key); !ok {
		t.prefix.Add(key, nil)
	}
}

// Get returns a copy of the value for name.
func (t *Table) Get(name string) ([]byte, bool) {
	_, _, value, found := t.find(name)
	if !found {
		return nil, false
	}
	return append([]byte{}, value...), true
}

// Has is a predicate: is name in the table?
func (t *Table) Has(name string) bool {
	_, _, _, found := t.find(name)
	return found
}

// Delete removes name and reports whether it was present.
func (t *Table) Delete(name string) bool {
	h, _, _, found := t.find(name)
	if !found {
		return false
	}
	if err := t.tbl.Remove(h); err != nil {
		tracer().Errorf("delete %q: %v", name, err)
		return false
	}
	return true
}

// Len returns the number of names.
func (t *Table) Len() int {
	return t.tbl.GetEntryCount()
}

// Complete returns all names starting with prefix, sorted, in the spelling
// they were last stored with.
func (t *Table) Complete(prefix string) []string {
	keys := t.prefix.PrefixSearch(t.key(prefix))
	completions := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, stored, _, ok := t.find(key); ok {
			completions = append(completions, string(stored))
		}
	}
	sort.Strings(completions)
	return completions
}

// Match resolves an abbreviation. A name matches itself; otherwise abbrev
// must be the prefix of exactly one name.
func (t *Table) Match(abbrev string) (string, bool) {
	if _, stored, _, ok := t.find(abbrev); ok {
		return string(stored), true
	}
	completions := t.Complete(abbrev)
	if len(completions) != 1 {
		return "", false
	}
	return completions[0], true
}

// Range calls fn for every name and its value, in no particular order,
// until fn returns false. The value is only valid during the call, and fn
// must not modify the table.
func (t *Table) Range(fn func(name string, value []byte) bool) {
	for _, rec := range t.tbl.All() {
		name, value, err := decodeRecord(rec)
		if err != nil {
			continue
		}
		if !fn(string(name), value) {
			return
		}
	}
}

func lowerASCII(s string) string {
	if strings.IndexFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' }) < 0 {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		b[i] = lowerByte(c)
	}
	return string(b)
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
