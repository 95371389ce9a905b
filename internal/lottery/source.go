package lottery

import (
	"math/bits"
	"math/rand/v2"
)

// seedStream selects the PCG stream; changing it changes every replay.
const seedStream = 0x6a6f62736861646f

// source is the single generator of a run. Bounded draws are derived
// directly from the PCG output, never through rand.Rand helpers.
type source struct {
	pcg *rand.PCG
}

func newSource(seed int64) *source {
	return &source{pcg: rand.NewPCG(uint64(seed), seedStream)}
}

// intN returns a uniform value in [0, n) using Lemire's multiply-shift
// with rejection. n must be positive.
func (s *source) intN(n int) int {
	bound := uint64(n)
	hi, lo := bits.Mul64(s.pcg.Uint64(), bound)
	if lo < bound {
		threshold := -bound % bound
		for lo < threshold {
			hi, lo = bits.Mul64(s.pcg.Uint64(), bound)
		}
	}
	return int(hi)
}

// shuffle is an in-place Fisher-Yates walk from the end.
func shuffle[T any](s *source, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := s.intN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
