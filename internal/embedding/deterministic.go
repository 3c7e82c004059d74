package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Deterministic is a hash-based embedder with no external dependency,
// useful for tests and local development without a real embeddings
// endpoint configured.
type Deterministic struct {
	Dim       int
	Normalize bool
	Seed      uint64
}

// NewDeterministic builds a Deterministic embedder, defaulting Dim to 64.
func NewDeterministic(dim int, normalize bool, seed uint64) *Deterministic {
	if dim <= 0 {
		dim = 64
	}
	return &Deterministic{Dim: dim, Normalize: normalize, Seed: seed}
}

// Embed hashes 3-grams of text into a fixed-size vector.
func (d *Deterministic) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, d.Dim)
	b := []byte(text)
	if len(b) == 0 {
		return v, nil
	}
	if len(b) < 3 {
		addGram(d.Seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			addGram(d.Seed, b[i:i+3], v)
		}
	}
	if d.Normalize {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range v {
				v[i] *= inv
			}
		}
	}
	return v, nil
}

func addGram(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
