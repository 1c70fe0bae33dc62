package workload

import "math/rand/v2"

// DefaultSeed is used when no seed is configured.
const DefaultSeed uint64 = 1

// newRand derives an independent stream per purpose from one seed, so
// adding a kernel never shifts the data another kernel sees.
func newRand(seed uint64, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// uniformInts fills n values in [lo, hi].
func uniformInts(r *rand.Rand, n, lo, hi int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = lo + r.IntN(hi-lo+1)
	}
	return out
}

func randomWords(r *rand.Rand, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = r.Uint64()
	}
	return out
}
