package scoring

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// Jitter perturbs fallback scores by a bounded, reproducible amount so areas
// sharing a region do not render identically. The value for a given area and
// cycle depends only on Seed, so concurrent callers need no coordination.
type Jitter struct {
	Amplitude float64
	Seed      int64
}

// For returns a value in [-Amplitude, Amplitude] for the area and cycle key.
func (j Jitter) For(areaID string, cycle int64) float64 {
	if j.Amplitude <= 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(areaID))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(cycle))
	_, _ = h.Write(buf[:])
	rng := rand.New(rand.NewSource(j.Seed ^ int64(h.Sum64())))
	return (rng.Float64()*2 - 1) * j.Amplitude
}
