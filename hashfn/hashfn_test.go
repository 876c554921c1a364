package hashfn

import (
	"encoding/binary"
	"hash/crc32"
	"math/rand"
	"testing"
	"unsafe"
)

func TestSmallInputsAreCRC32(t *testing.T) {
	tests := []string{"", "a", "hello", "0123456789abcdef"}
	for _, s := range tests {
		if got, want := Hash(0, []byte(s)), crc32.ChecksumIEEE([]byte(s)); got != want {
			t.Fatalf("hash of %q: got %08x, want %08x", s, got, want)
		}
	}
}

func TestIncrementalSmallInputs(t *testing.T) {
	whole := Hash(0, []byte("abcdefgh"))
	parts := Hash(Hash(0, []byte("abc")), []byte("defgh"))
	if whole != parts {
		t.Fatalf("incremental hash differs: %08x != %08x", parts, whole)
	}
}

func TestLongInputsAreStable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{17, 31, 32, 100, 4095, 4096, 4097, 10000} {
		buf := make([]byte, n)
		rng.Read(buf)
		h1 := Hash(0, buf)
		h2 := Hash(0, append([]byte(nil), buf...))
		if h1 != h2 {
			t.Fatalf("length %d: hash not deterministic", n)
		}
		buf[n/2] ^= 0x01
		if Hash(0, buf) == h1 {
			t.Fatalf("length %d: single bit flip did not change hash", n)
		}
	}
}

func TestLongInputsDependOnPrevious(t *testing.T) {
	buf := make([]byte, 64)
	if Hash(0, buf) == Hash(1, buf) {
		t.Fatalf("previous hash value was ignored")
	}
}

func TestIntegerHashes(t *testing.T) {
	var b4 [4]byte
	var b8 [8]byte
	for _, v := range []uint64{0, 1, 42, 0xdeadbeef, 0x0123456789abcdef} {
		binary.LittleEndian.PutUint32(b4[:], uint32(v))
		if got, want := Uint32(uint32(v)), Hash(0, b4[:]); got != want {
			t.Fatalf("Uint32(%x) = %08x, want %08x", v, got, want)
		}
		binary.LittleEndian.PutUint64(b8[:], v)
		if got, want := Uint64(v), Hash(0, b8[:]); got != want {
			t.Fatalf("Uint64(%x) = %08x, want %08x", v, got, want)
		}
	}
}

func TestPointer(t *testing.T) {
	x := 5
	p := unsafe.Pointer(&x)
	if Pointer(p) != Uint64(uint64(uintptr(p))) && Pointer(p) != Uint32(uint32(uintptr(p))) {
		t.Fatalf("pointer hash does not match integer hash of its address")
	}
}

func TestFoldIgnoresCase(t *testing.T) {
	tests := []struct {
		a, b string // b is the lower-case form of a
	}{
		{"Wizard", "wizard"},
		{"wIZARD", "wizard"},
		{"", ""},
		{"A-Very-Long-Attribute-Name-That-Exceeds-The-Stack-Buffer-Of-Sixty-Four", "a-very-long-attribute-name-that-exceeds-the-stack-buffer-of-sixty-four"},
	}
	for _, tt := range tests {
		if Fold(tt.a) != Fold(tt.b) {
			t.Fatalf("Fold(%q) != Fold(%q)", tt.a, tt.b)
		}
		if Fold(tt.b) != String(tt.b) {
			t.Fatalf("Fold of lower-case %q differs from String", tt.b)
		}
	}
}

func TestXX(t *testing.T) {
	if XX([]byte("hello")) != XXString("hello") {
		t.Fatalf("XX and XXString disagree")
	}
	if XX([]byte("hello")) == XX([]byte("hellp")) {
		t.Fatalf("xxhash collision on trivial input")
	}
}

func TestKeyed(t *testing.T) {
	a, b := Keyed(1, 2), Keyed(2, 1)
	key := []byte("gandalf")
	if a(key) != a(key) {
		t.Fatalf("keyed hash is not deterministic")
	}
	if a(key) == b(key) {
		t.Fatalf("keyed hash does not depend on the key")
	}
}

func TestDistribution(t *testing.T) {
	// 4096 random keys over 16 buckets by the top 4 bits; no bucket may be starved
	rng := rand.New(rand.NewSource(1))
	var buckets [16]int
	var b [8]byte
	for i := 0; i < 4096; i++ {
		rng.Read(b[:])
		buckets[Hash(0, b[:])>>28]++
	}
	for i, n := range buckets {
		if n < 128 {
			t.Fatalf("bucket %d received only %d of 4096 keys", i, n)
		}
	}
}

func BenchmarkHash4K(b *testing.B) {
	buf := make([]byte, 4096)
	b.SetBytes(int64(len(buf)))
	for i := 0; i < b.N; i++ {
		Hash(0, buf)
	}
}
