package names

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/npillmayer/exthash"
	"github.com/npillmayer/exthash/hashfn"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

type pair struct {
	name, value string
}

type sliceReader struct {
	pairs []pair
	err   error
}

func (r *sliceReader) Next() (string, []byte, error) {
	if len(r.pairs) == 0 {
		if r.err != nil {
			return "", nil, r.err
		}
		return "", nil, io.EOF
	}
	p := r.pairs[0]
	r.pairs = r.pairs[1:]
	return p.name, []byte(p.value), nil
}

func TestPutGet(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Put("wizard", []byte("level 30")))
	require.NoError(t, tbl.Put("hobbit", nil))
	v, ok := tbl.Get("wizard")
	require.True(t, ok)
	require.Equal(t, "level 30", string(v))
	v, ok = tbl.Get("hobbit")
	require.True(t, ok)
	require.Empty(t, v)
	_, ok = tbl.Get("Wizard")
	require.False(t, ok, "unfolded table must be case sensitive")
	require.Equal(t, 2, tbl.Len())
}

func TestPutRejectsEmptyName(t *testing.T) {
	err := New().Put("", []byte("x"))
	require.Equal(t, ErrEmptyName, errors.Cause(err))
}

func TestPutReplaces(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Put("orc", []byte("aaaa")))
	require.NoError(t, tbl.Put("orc", []byte("bbbb"))) // same size
	require.NoError(t, tbl.Put("orc", []byte("a much longer value")))
	v, ok := tbl.Get("orc")
	require.True(t, ok)
	require.Equal(t, "a much longer value", string(v))
	require.Equal(t, 1, tbl.Len())
}

func TestCollidingNames(t *testing.T) {
	constant := func([]byte) uint32 { return 7 }
	tbl := New(WithHash(constant))
	for i := 0; i < 50; i++ {
		require.NoError(t, tbl.Put(fmt.Sprintf("name-%02d", i), []byte{byte(i)}))
	}
	require.Equal(t, 50, tbl.Len())
	for i := 0; i < 50; i++ {
		v, ok := tbl.Get(fmt.Sprintf("name-%02d", i))
		require.True(t, ok, "name-%02d", i)
		require.Equal(t, []byte{byte(i)}, v)
	}
	require.True(t, tbl.Delete("name-10"))
	require.False(t, tbl.Has("name-10"))
	require.True(t, tbl.Has("name-11"))
}

func TestKeyedHash(t *testing.T) {
	tbl := New(WithHash(hashfn.Keyed(0x0706050403020100, 0x0f0e0d0c0b0a0908)), WithFold(true))
	require.NoError(t, tbl.Put("Balrog", []byte("shadow")))
	require.True(t, tbl.Has("BALROG"))
	require.False(t, tbl.Has("balrogs"))
}

func TestDelete(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Put("elf", []byte("archer")))
	require.True(t, tbl.Delete("elf"))
	require.False(t, tbl.Delete("elf"))
	require.False(t, tbl.Has("elf"))
	require.Equal(t, 0, tbl.Len())
	require.Empty(t, tbl.Complete("e"))
}

func TestFold(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "exthash")
	defer teardown()
	//
	tbl := New(WithFold(true))
	require.NoError(t, tbl.Put("Gandalf", []byte("grey")))
	v, ok := tbl.Get("GANDALF")
	require.True(t, ok)
	require.Equal(t, "grey", string(v))
	require.NoError(t, tbl.Put("gandalf", []byte("white")))
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, []string{"gandalf"}, tbl.Complete("GAN"))
}

func TestCompleteAfterReplace(t *testing.T) {
	tbl := New(WithFold(true))
	require.NoError(t, tbl.Put("Frodo", []byte("hobbit")))
	require.NoError(t, tbl.Put("Gandalf", []byte("wizard, level 30")))
	require.NoError(t, tbl.Put("Gandalf", []byte("the white"))) // changes the record size
	require.Equal(t, []string{"Frodo"}, tbl.Complete("fro"))
	full, ok := tbl.Match("fro")
	require.True(t, ok)
	require.Equal(t, "Frodo", full)
	require.Equal(t, []string{"Frodo", "Gandalf"}, tbl.Complete(""))
}

func TestCompleteAfterDelete(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Put("Frodo", nil))
	require.NoError(t, tbl.Put("Gandalf", nil))
	require.True(t, tbl.Delete("Gandalf"))
	require.Equal(t, []string{"Frodo"}, tbl.Complete("Fro"))
	require.Empty(t, tbl.Complete("Gan"))
	_, ok := tbl.Match("Gandalf")
	require.False(t, ok)
	full, ok := tbl.Match("F")
	require.True(t, ok)
	require.Equal(t, "Frodo", full)
	require.NoError(t, tbl.Put("Gandalf", nil))
	require.Equal(t, []string{"Frodo", "Gandalf"}, tbl.Complete(""))
}

func TestCompleteAndMatch(t *testing.T) {
	tbl := New()
	for _, name := range []string{"north", "northeast", "northwest", "south", "southeast"} {
		require.NoError(t, tbl.Put(name, nil))
	}
	require.Equal(t, []string{"north", "northeast", "northwest"}, tbl.Complete("nor"))
	require.Equal(t, []string{"northwest"}, tbl.Complete("northw"))
	require.Empty(t, tbl.Complete("west"))
	tests := []struct {
		abbrev string
		full   string
		ok     bool
	}{
		{"north", "north", true}, // exact match wins over longer names
		{"northw", "northwest", true},
		{"nor", "", false}, // ambiguous
		{"southe", "southeast", true},
		{"east", "", false},
	}
	for _, tt := range tests {
		full, ok := tbl.Match(tt.abbrev)
		if ok != tt.ok || full != tt.full {
			t.Errorf("Match(%q) = %q,%v, want %q,%v", tt.abbrev, full, ok, tt.full, tt.ok)
		}
	}
}

func TestRange(t *testing.T) {
	tbl := New()
	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		require.NoError(t, tbl.Put(k, []byte(v)))
	}
	got := map[string]string{}
	tbl.Range(func(name string, value []byte) bool {
		got[name] = string(value)
		return true
	})
	require.Equal(t, want, got)
	n := 0
	tbl.Range(func(string, []byte) bool {
		n++
		return false
	})
	require.Equal(t, 1, n)
}

func TestLoad(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "exthash")
	defer teardown()
	//
	r := &sliceReader{}
	for i := 0; i < 2000; i++ {
		r.pairs = append(r.pairs, pair{fmt.Sprintf("player%d", i), fmt.Sprintf("score %d", i*7)})
	}
	opts := exthash.DefaultOptions()
	opts.PageSize = 1024
	tbl, err := Load("players", r, WithTableOptions(opts))
	require.NoError(t, err)
	require.Equal(t, "names: players", tbl.Identifier)
	require.Equal(t, 2000, tbl.Len())
	require.Greater(t, tbl.HashTable().GetStats().Pages, 1)
	v, ok := tbl.Get("player1999")
	require.True(t, ok)
	require.Equal(t, "score 13993", string(v))
	n, err := tbl.HashTable().Validate(false)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLoadPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	r := &sliceReader{pairs: []pair{{"a", "1"}}, err: boom}
	_, err := Load("broken", r)
	require.Equal(t, boom, errors.Cause(err))
	r = &sliceReader{pairs: []pair{{"", "1"}}}
	_, err = Load("empty", r)
	require.Equal(t, ErrEmptyName, errors.Cause(err))
}

func TestFromTableAfterSnapshot(t *testing.T) {
	tbl := New(WithFold(true))
	for _, name := range []string{"Aragorn", "Boromir", "Legolas"} {
		require.NoError(t, tbl.Put(name, []byte("fellowship")))
	}
	var buf bytes.Buffer
	require.NoError(t, tbl.HashTable().WriteSnapshot(&buf, exthash.SnapshotOptions{Compress: true}))
	raw, err := exthash.ReadSnapshot(&buf, exthash.DefaultOptions())
	require.NoError(t, err)
	restored, err := FromTable(raw, WithFold(true))
	require.NoError(t, err)
	require.Equal(t, 3, restored.Len())
	require.True(t, restored.Has("legolas"))
	full, ok := restored.Match("bor")
	require.True(t, ok)
	require.Equal(t, "Boromir", full)
}

func TestFromTableRejectsForeignRecords(t *testing.T) {
	raw := exthash.New(exthash.DefaultOptions())
	require.True(t, raw.Insert(1, []byte{0xff})) // truncated varint
	_, err := FromTable(raw)
	require.Equal(t, ErrBadRecord, errors.Cause(err))
}

func TestRecordCodec(t *testing.T) {
	rec := encodeRecord("key", []byte("value"))
	name, value, err := decodeRecord(rec)
	require.NoError(t, err)
	require.Equal(t, "key", string(name))
	require.Equal(t, "value", string(value))
	_, _, err = decodeRecord([]byte{5, 'a'})
	require.Equal(t, ErrBadRecord, errors.Cause(err))
	_, _, err = decodeRecord(nil)
	require.Equal(t, ErrBadRecord, errors.Cause(err))
}
