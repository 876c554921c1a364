package exthash_test

import (
	"fmt"
	"sort"

	"github.com/npillmayer/exthash"
	"github.com/npillmayer/exthash/hashfn"
)

func ExampleTable() {
	t := exthash.New(exthash.DefaultOptions())
	t.Insert(42, []byte("hello"))
	t.Insert(42, []byte("world"))
	var recs []string
	for h := range t.Lookup(42) {
		rec, _ := t.Copy(h)
		recs = append(recs, string(rec))
	}
	sort.Strings(recs)
	fmt.Println(recs, t.GetEntryCount())
	// Output: [hello world] 2
}

func ExampleTable_FindFirst() {
	t := exthash.New(exthash.DefaultOptions())
	for _, name := range []string{"alpha", "beta", "gamma"} {
		t.Insert(hashfn.String(name), []byte(name))
	}
	n := 0
	for h, ok := t.FindFirst(); ok; h, ok = t.FindNext() {
		if rec, err := t.View(h); err == nil && len(rec) > 0 {
			n++
		}
	}
	fmt.Println(n, "records")
	// Output: 3 records
}
