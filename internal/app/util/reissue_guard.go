package util

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// ReissueGuard remembers every token handed out by this process so an evicted token is not
// given to a new link. It may wrongly report a fresh token as issued; it never forgets one.
// A nil guard accepts every token.
type ReissueGuard struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewReissueGuard sizes the filter for capacity tokens at the given false-positive rate.
// It returns nil when capacity is zero.
func NewReissueGuard(capacity uint, fpRate float64) *ReissueGuard {
	if capacity == 0 {
		return nil
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.001
	}
	return &ReissueGuard{filter: bloom.NewWithEstimates(capacity, fpRate)}
}

// Claim records token and reports whether it had never been claimed before.
func (g *ReissueGuard) Claim(token string) bool {
	if g == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.filter.TestOrAddString(token)
}

// Seen reports whether token may have been claimed already.
func (g *ReissueGuard) Seen(token string) bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.filter.TestString(token)
}
