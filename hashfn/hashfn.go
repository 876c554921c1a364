/*
Package hashfn computes the 32-bit hash values consumed by package exthash.

Short inputs (up to 16 bytes) are hashed with a table-driven CRC-32 using the
standard reflected polynomial, which keeps as much information as possible for
small keys. Longer inputs switch to an Adler-style sum of sums over 16-byte
groups, and the two sums are folded back through the CRC table every 256 groups
(4096 bytes). The result is folded through four CRC table steps per sum.

Hashing is incremental: pass a previous result as prev to continue a hash over
more bytes, or 0 to start a fresh one. For inputs that stay within the CRC range
the result equals crc32.ChecksumIEEE of the concatenated bytes.

----------------------------------------------------------------------

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer@com>

All rights reserved.

License information is available in the LICENSE file.
*/
package hashfn

import (
	"hash/crc32"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
)

// Func maps a byte sequence to a hash value.
type Func func([]byte) uint32

// Default hashes a buffer from scratch with Hash.
var Default Func = func(buf []byte) uint32 { return Hash(0, buf) }

const (
	smallInput  = 16  // inputs up to this length are hashed with plain CRC-32
	groupSize   = 16  // bytes summed per group
	foldGroups  = 256 // groups between two folds of the running sums
	asciiOffset = 'a' - 'A'
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// Hash extends the hash prev over buf. Use prev = 0 for a fresh hash.
func Hash(prev uint32, buf []byte) uint32 {
	h := ^prev
	if len(buf) <= smallInput {
		for _, b := range buf {
			h = crcTable[byte(h)^b] ^ (h >> 8)
		}
		return ^h
	}
	s1, s2 := h, uint32(0)
	n := 0
	for len(buf) >= groupSize {
		g := buf[:groupSize:groupSize]
		s1 += uint32(g[0])
		s2 += s1
		s1 += uint32(g[1])
		s2 += s1
		s1 += uint32(g[2])
		s2 += s1
		s1 += uint32(g[3])
		s2 += s1
		s1 += uint32(g[4])
		s2 += s1
		s1 += uint32(g[5])
		s2 += s1
		s1 += uint32(g[6])
		s2 += s1
		s1 += uint32(g[7])
		s2 += s1
		s1 += uint32(g[8])
		s2 += s1
		s1 += uint32(g[9])
		s2 += s1
		s1 += uint32(g[10])
		s2 += s1
		s1 += uint32(g[11])
		s2 += s1
		s1 += uint32(g[12])
		s2 += s1
		s1 += uint32(g[13])
		s2 += s1
		s1 += uint32(g[14])
		s2 += s1
		s1 += uint32(g[15])
		s2 += s1
		buf = buf[groupSize:]
		if n++; n == foldGroups {
			s1 = fold(s1, s2)
			s2 = fold(s2, s1)
			n = 0
		}
	}
	for _, b := range buf {
		s1 += uint32(b)
		s2 += s1
	}
	h = fold(h, s1)
	h = fold(h, s2)
	return ^h
}

// fold feeds the four bytes of w, low byte first, through the CRC table.
func fold(h, w uint32) uint32 {
	h = crcTable[byte(h)^byte(w)] ^ (h >> 8)
	h = crcTable[byte(h)^byte(w>>8)] ^ (h >> 8)
	h = crcTable[byte(h)^byte(w>>16)] ^ (h >> 8)
	h = crcTable[byte(h)^byte(w>>24)] ^ (h >> 8)
	return h
}

// Uint32 hashes an integer key. It equals Hash(0, b) with b the little-endian
// encoding of v.
func Uint32(v uint32) uint32 {
	return ^fold(^uint32(0), v)
}

// Uint64 hashes a 64-bit integer key. It equals Hash(0, b) with b the
// little-endian encoding of v.
func Uint64(v uint64) uint32 {
	h := fold(^uint32(0), uint32(v))
	return ^fold(h, uint32(v>>32))
}

// Pointer hashes the address p.
func Pointer(p unsafe.Pointer) uint32 {
	if unsafe.Sizeof(uintptr(0)) == 4 {
		return Uint32(uint32(uintptr(p)))
	}
	return Uint64(uint64(uintptr(p)))
}

// String hashes s without copying it.
func String(s string) uint32 {
	return Hash(0, unsafe.Slice(unsafe.StringData(s), len(s)))
}

// Fold hashes s with ASCII letters folded to lower case, so that names
// differing only in case hash alike.
func Fold(s string) uint32 {
	var stack [64]byte
	buf := stack[:0]
	if len(s) > len(stack) {
		buf = make([]byte, 0, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += asciiOffset
		}
		buf = append(buf, c)
	}
	return Hash(0, buf)
}

// XX hashes buf with xxhash64 and folds the result to 32 bits.
func XX(buf []byte) uint32 {
	s := xxhash.Sum64(buf)
	return uint32(s>>32) ^ uint32(s)
}

// XXString is XX for strings.
func XXString(s string) uint32 {
	v := xxhash.Sum64String(s)
	return uint32(v>>32) ^ uint32(v)
}

// Keyed returns a hash function based on SipHash-2-4 with the 128-bit key
// (k0, k1). Tables holding names from untrusted sources should use a random
// key, so that colliding names cannot be precomputed.
func Keyed(k0, k1 uint64) Func {
	return func(buf []byte) uint32 {
		s := siphash.Hash(k0, k1, buf)
		return uint32(s>>32) ^ uint32(s)
	}
}
