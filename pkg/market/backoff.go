package market

import (
	"sync"
	"time"
)

const DefaultMaxBackoff = 4 * time.Hour

// Backoff grows the wait after each consecutive failure: 2^(5+failures/2)
// seconds, capped at max.
type Backoff struct {
	max   time.Duration
	count int
	start time.Time
}

func (b *Backoff) Total() time.Duration {
	exp := 5 + b.count/2
	if exp > 32 {
		return b.max
	}
	d := time.Duration(int64(1)<<exp) * time.Second
	if b.max > 0 && d > b.max {
		return b.max
	}
	return d
}

func (b *Backoff) remaining(now time.Time) time.Duration {
	if b.count == 0 {
		return 0
	}
	end := b.start.Add(b.Total())
	if !end.After(now) {
		return 0
	}
	return end.Sub(now)
}

// Backoffs tracks one Backoff per request key so a failing item never blocks
// requests for other items.
type Backoffs struct {
	mu    sync.Mutex
	rules map[string]*Backoff
	max   time.Duration
	now   func() time.Time
}

func NewBackoffs(max time.Duration) *Backoffs {
	return NewBackoffsWithClock(max, time.Now)
}

func NewBackoffsWithClock(max time.Duration, now func() time.Time) *Backoffs {
	return &Backoffs{
		rules: make(map[string]*Backoff),
		max:   max,
		now:   now,
	}
}

func (b *Backoffs) Failure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rule, ok := b.rules[key]
	if !ok {
		rule = &Backoff{max: b.max}
		b.rules[key] = rule
	}
	rule.count++
	rule.start = b.now()
}

func (b *Backoffs) Success(key string) {
	b.mu.Lock()
	delete(b.rules, key)
	b.mu.Unlock()
}

func (b *Backoffs) Remaining(key string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	rule, ok := b.rules[key]
	if !ok {
		return 0
	}
	return rule.remaining(b.now())
}

func (b *Backoffs) Count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rule, ok := b.rules[key]; ok {
		return rule.count
	}
	return 0
}
