package workload

import (
	"fmt"

	"microbench/internal/kernel"
	"microbench/internal/matrix"
)

const (
	branchElements = 1 << 16
	ilpElements    = 1 << 12
	cacheStride    = 16 // uint64s, two cache lines
	mixPrime       = 0x9E3779B97F4A7C15
)

func init() {
	mustRegister(Suite{
		Name:        "branch",
		Description: "conditional swaps with predictable and unpredictable outcomes, branchy and branchless",
		Build:       buildBranch,
	})
	mustRegister(Suite{
		Name:        "cache",
		Description: "sequential, strided and random traversal over working sets of increasing size",
		Build:       buildCache,
	})
	mustRegister(Suite{
		Name:        "ilp",
		Description: "dependent versus independent arithmetic chains",
		Build:       buildILP,
	})
}

func buildBranch(seed uint64) (*matrix.Matrix, error) {
	m, err := matrix.New(
		axis("pattern", "predictable", "unpredictable"),
		axis("style", "branchy", "branchless"),
	)
	if err != nil {
		return nil, err
	}
	err = m.RegisterEach(func(c matrix.Cell) (kernel.Factory, error) {
		// Values are in [1, 100]: pair sums stay below 195 about 97% of
		// the time and below 100 about half of the time.
		threshold := 195
		if c.Value("pattern") == "unpredictable" {
			threshold = 100
		}
		branchless := c.Value("style") == "branchless"
		return kernel.Stateful(kernel.StatefulSpec[[]int]{
			Setup: func() ([]int, error) {
				return uniformInts(newRand(seed, 1), branchElements, 1, 100), nil
			},
			Run: func(data []int) (uint64, error) {
				if branchless {
					return swapBranchless(data, threshold), nil
				}
				return swapBranchy(data, threshold), nil
			},
		}), nil
	})
	return m, err
}

// swapBranchy swaps mirrored pairs whose sum is below threshold, then the
// pairs whose sum is above it.
func swapBranchy(data []int, threshold int) uint64 {
	n := len(data)
	for i := 0; i < n/2; i++ {
		j := n - 1 - i
		if data[i]+data[j] < threshold {
			data[i], data[j] = data[j], data[i]
		}
	}
	for i := 0; i < n/2; i++ {
		j := n - 1 - i
		if data[i]+data[j] > threshold {
			data[i], data[j] = data[j], data[i]
		}
	}
	return uint64(data[0]) + uint64(data[n-1])
}

// swapBranchless performs the same swaps through a mask.
func swapBranchless(data []int, threshold int) uint64 {
	n := len(data)
	for i := 0; i < n/2; i++ {
		j := n - 1 - i
		a, b := data[i], data[j]
		mask := (a + b - threshold) >> 63 // all ones when a+b < threshold
		d := (a ^ b) & mask
		data[i], data[j] = a^d, b^d
	}
	for i := 0; i < n/2; i++ {
		j := n - 1 - i
		a, b := data[i], data[j]
		mask := (threshold - a - b) >> 63 // all ones when a+b > threshold
		d := (a ^ b) & mask
		data[i], data[j] = a^d, b^d
	}
	return uint64(data[0]) + uint64(data[n-1])
}

var cacheFootprints = map[string]int{
	"16KiB": 16 << 10,
	"1MiB":  1 << 20,
	"32MiB": 32 << 20,
}

type cacheState struct {
	data  []uint64
	order []int32
}

func buildCache(seed uint64) (*matrix.Matrix, error) {
	m, err := matrix.New(
		axis("access", "sequential", "strided", "random"),
		axis("footprint", "16KiB", "1MiB", "32MiB"),
	)
	if err != nil {
		return nil, err
	}
	err = m.RegisterEach(func(c matrix.Cell) (kernel.Factory, error) {
		n := cacheFootprints[c.Value("footprint")] / 8
		access := c.Value("access")
		return kernel.Stateful(kernel.StatefulSpec[*cacheState]{
			Setup: func() (*cacheState, error) {
				r := newRand(seed, 2)
				s := &cacheState{data: randomWords(r, n)}
				if access == "random" {
					s.order = make([]int32, n)
					for i := range s.order {
						s.order[i] = int32(i)
					}
					r.Shuffle(n, func(i, j int) { s.order[i], s.order[j] = s.order[j], s.order[i] })
				}
				return s, nil
			},
			Run: func(s *cacheState) (uint64, error) {
				switch access {
				case "sequential":
					return sumSequential(s.data), nil
				case "strided":
					return sumStrided(s.data, cacheStride), nil
				default:
					return sumIndexed(s.data, s.order), nil
				}
			},
		}), nil
	})
	return m, err
}

func sumSequential(data []uint64) uint64 {
	var sum uint64
	for _, v := range data {
		sum += v
	}
	return sum
}

// sumStrided touches every element once, stride elements apart.
func sumStrided(data []uint64, stride int) uint64 {
	var sum uint64
	for off := 0; off < stride; off++ {
		for i := off; i < len(data); i += stride {
			sum += data[i]
		}
	}
	return sum
}

func sumIndexed(data []uint64, order []int32) uint64 {
	var sum uint64
	for _, i := range order {
		sum += data[i]
	}
	return sum
}

func buildILP(seed uint64) (*matrix.Matrix, error) {
	m, err := matrix.New(axis("chain", "dependent", "independent", "unrolled4", "unrolled8"))
	if err != nil {
		return nil, err
	}
	err = m.RegisterEach(func(c matrix.Cell) (kernel.Factory, error) {
		var fn func([]uint64) uint64
		switch c.Value("chain") {
		case "dependent":
			fn = mixDependent
		case "independent":
			fn = mixIndependent
		case "unrolled4":
			fn = mixUnrolled4
		case "unrolled8":
			fn = mixUnrolled8
		default:
			return nil, fmt.Errorf("unknown chain %q", c.Value("chain"))
		}
		return kernel.Stateful(kernel.StatefulSpec[[]uint64]{
			Setup: func() ([]uint64, error) { return randomWords(newRand(seed, 3), ilpElements), nil },
			Run:   func(data []uint64) (uint64, error) { return fn(data), nil },
		}), nil
	})
	return m, err
}

// mixDependent feeds every multiply into the next.
func mixDependent(data []uint64) uint64 {
	var x uint64
	for _, v := range data {
		x = (x ^ v) * mixPrime
	}
	return x
}

// mixIndependent multiplies every element on its own and only adds.
func mixIndependent(data []uint64) uint64 {
	var sum uint64
	for _, v := range data {
		sum += v * mixPrime
	}
	return sum
}

// mixUnrolled4 runs four multiply chains side by side. len(data) must be a
// multiple of 4.
func mixUnrolled4(data []uint64) uint64 {
	var a, b, c, d uint64
	for i := 0; i+3 < len(data); i += 4 {
		a = (a ^ data[i]) * mixPrime
		b = (b ^ data[i+1]) * mixPrime
		c = (c ^ data[i+2]) * mixPrime
		d = (d ^ data[i+3]) * mixPrime
	}
	return a ^ b ^ c ^ d
}

// mixUnrolled8 is mixUnrolled4 with eight chains.
func mixUnrolled8(data []uint64) uint64 {
	var a, b, c, d, e, f, g, h uint64
	for i := 0; i+7 < len(data); i += 8 {
		a = (a ^ data[i]) * mixPrime
		b = (b ^ data[i+1]) * mixPrime
		c = (c ^ data[i+2]) * mixPrime
		d = (d ^ data[i+3]) * mixPrime
		e = (e ^ data[i+4]) * mixPrime
		f = (f ^ data[i+5]) * mixPrime
		g = (g ^ data[i+6]) * mixPrime
		h = (h ^ data[i+7]) * mixPrime
	}
	return a ^ b ^ c ^ d ^ e ^ f ^ g ^ h
}
