package nghs

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher32 mixes a 32-bit key into a 32-bit pseudo-random value used as the
// starting probe index. Any fast mixer with good avalanche behavior
// suffices; the table never relies on cryptographic properties of the
// mixer, only on a low collision rate across the capacity it is reduced
// modulo.
type Hasher32 interface {
	Hash32(key uint32) uint32
}

// XXHasher32 mixes keys through xxhash's 64-bit digest and folds the result
// to 32 bits by xor-folding the high and low halves. This is the default
// hasher: it avoids the bias a plain truncation of a 64-bit hash can carry
// in its low bits, at the cost of one small allocation-free buffer per call.
type XXHasher32 struct{}

func (XXHasher32) Hash32(key uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], key)
	h := xxhash.Sum64(buf[:])
	return uint32(h>>32) ^ uint32(h)
}

// SplitMixHasher32 is an allocation-free alternative mixer grounded in a
// SplitMix64-style finalizer, for callers who want to avoid pulling in
// xxhash on a hot path. It is not the default because xxhash's avalanche
// has been more thoroughly vetted, but it is equally valid per the
// contract above.
type SplitMixHasher32 struct{}

func (SplitMixHasher32) Hash32(key uint32) uint32 {
	x := uint64(key) + 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x = x ^ (x >> 31)
	return uint32(x>>32) ^ uint32(x)
}
