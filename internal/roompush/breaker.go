package roompush

import (
	"errors"
	"sync"
	"time"
)

var errCircuitOpen = errors.New("circuit_open")

// breakers tracks consecutive delivery failures per target. After threshold
// failures in a row the target is skipped for cooldown.
type breakers struct {
	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  map[string]int
	openUntil map[string]time.Time
}

func newBreakers(threshold int, cooldown time.Duration) *breakers {
	return &breakers{
		threshold: threshold,
		cooldown:  cooldown,
		failures:  map[string]int{},
		openUntil: map[string]time.Time{},
	}
}

func (b *breakers) allow(key string, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if until, ok := b.openUntil[key]; ok && now.Before(until) {
		return errCircuitOpen
	}
	return nil
}

func (b *breakers) failure(key string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[key]++
	if b.failures[key] < b.threshold {
		return
	}
	b.openUntil[key] = now.Add(b.cooldown)
	delete(b.failures, key)
}

func (b *breakers) success(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, key)
	delete(b.openUntil, key)
}
