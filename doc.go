/*
Package exthash is a page-oriented extensible hash table.

A Table maps 32-bit hash values to opaque byte records. It is a multimap:
hash values need not be unique, and callers disambiguate records sharing a
hash by looking at their contents. Records live in fixed-size pages (package
page), each of which owns an open-addressed directory and a private heap.
A global directory of 2^depth entries routes a hash by its top depth bits to
the page answering for it. Several directory entries may route to the same
page as long as the page has committed to fewer hash bits than the directory.

When a page runs full, it is split along the next hash bit into two pages; if
the page had already committed to as many bits as the directory, the directory
is doubled first. Pages defragment themselves before giving up on an insert.

	t := exthash.New(exthash.DefaultOptions())
	t.Insert(hashfn.String("hello"), []byte("hello"))
	for h := range t.Lookup(hashfn.String("hello")) {
		rec, _ := t.Copy(h)
		...
	}

Pages are kept in an arena indexed by PageID; the directory holds ids, not
pointers, so releasing a table visits every page exactly once.

Tables are not safe for concurrent use. Clients serialize all calls.

Further Reading

	R. Fagin, J. Nievergelt, N. Pippenger, H. R. Strong: Extendible hashing,
	a fast access method for dynamic files. ACM TODS 4(3), 1979.

----------------------------------------------------------------------

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer@com>

All rights reserved.

License information is available in the LICENSE file.
*/
package exthash

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'exthash'
func tracer() tracing.Trace {
	return tracing.Select("exthash")
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
