// Package randutil derives reproducible random sources from one seed so a
// simulation can be replayed exactly.
package randutil

import (
	"hash/fnv"
	rand "math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a PCG generator seeded from seed.
func New(seed int64) *rand.Rand {
	return fromState(uint64(seed))
}

// Derive returns an independent generator for one named consumer of seed, so
// the deck, the opponent and the equity sampler do not share a stream.
func Derive(seed int64, stream string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(stream))
	return fromState(uint64(seed) ^ mix(h.Sum64()))
}

func fromState(u uint64) *rand.Rand {
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// splitmix64 finalizer
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
