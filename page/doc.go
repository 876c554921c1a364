/*
Package page implements the fixed-size bucket pages of an extensible hash table.

A page is a single byte buffer laid out as

	Header | Directory | Heap | Trailer

The header records the page's depth and hash group, the directory size, sixteen
probe step values, the head of the heap's free list, the number of directory
slots never used so far, and a lifetime insert count. The directory is an
open-addressed array of 16-bit heap offsets, probed by double hashing: the
start slot is taken from the hash bits above the low nibble, the step from
one of the sixteen step values selected by the low nibble. The heap is a
first-fit allocator over a singly linked free list of variable-size blocks.
The trailer holds a checksum of everything in front of it.

All multi-byte fields are encoded little-endian through explicit accessors,
so a page image is portable between machines.

Records never move except when a page is rebuilt (Defrag) or split (Split);
slot indices are stable in between.

----------------------------------------------------------------------

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer@com>

All rights reserved.

License information is available in the LICENSE file.
*/
package page

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
