package fault

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Source supplies every random decision a node makes, so runs can be seeded
// or made fault-free.
type Source interface {
	Float64() float64
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a goroutine-safe PCG source. Seed 0 picks a random seed.
func NewSource(seed int64) Source {
	s1 := uint64(seed)
	if seed == 0 {
		s1 = rand.Uint64()
	}
	return &lockedSource{r: rand.New(rand.NewPCG(s1, s1^0x9e3779b97f4a7c15))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *lockedSource) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *lockedSource) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Shuffle(n, swap)
}

type fixedSource float64

// Never makes every Chance false and every pause its minimum.
func Never() Source {
	return fixedSource(1)
}

// Always makes every Chance with a positive rate true.
func Always() Source {
	return fixedSource(0)
}

func (f fixedSource) Float64() float64            { return float64(f) }
func (f fixedSource) IntN(int) int                { return 0 }
func (f fixedSource) Shuffle(int, func(i, j int)) {}

func Chance(src Source, p float64) bool {
	return p > 0 && src.Float64() < p
}

// Between draws a duration from [lo, hi].
func Between(src Source, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(src.IntN(int(hi-lo)+1))
}

// Pause sleeps for d and reports false if ctx ended first.
func Pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
