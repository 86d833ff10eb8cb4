package quiz

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is a goroutine-safe source of randomness. A fixed seed makes every
// sampling helper reproducible.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a Rand seeded with seed, or with the clock when seed is 0.
func NewRand(seed int64) *Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Intn(n)
}

// Shuffle permutes s in place (Fisher-Yates).
func Shuffle[T any](r *Rand, s []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(s) - 1; i > 0; i-- {
		j := r.r.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// SampleWithout returns k distinct elements of pool chosen uniformly.
// k is capped at len(pool); pool is not modified.
func SampleWithout[T any](r *Rand, pool []T, k int) []T {
	k = max(0, min(k, len(pool)))
	cp := append([]T(nil), pool...)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < k; i++ {
		j := i + r.r.Intn(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:k]
}

// SampleWith returns k elements of pool chosen uniformly with replacement.
func SampleWith[T any](r *Rand, pool []T, k int) []T {
	if len(pool) == 0 || k <= 0 {
		return nil
	}
	out := make([]T, k)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range out {
		out[i] = pool[r.r.Intn(len(pool))]
	}
	return out
}

func without(ids []string, skip string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
