package ratelimit

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count     int
	resetTime time.Time
}

// Memory keeps one record per key in process memory. Records are lost on
// restart.
type Memory struct {
	max    int
	window time.Duration
	now    Clock

	mu      sync.Mutex
	records map[string]*record
}

type MemoryOption func(*Memory)

func WithClock(c Clock) MemoryOption {
	return func(m *Memory) { m.now = c }
}

func NewMemory(max int, window time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		max:     max,
		window:  window,
		now:     time.Now,
		records: map[string]*record{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Admit(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		r = &record{count: 1, resetTime: now.Add(m.window)}
		m.records[key] = r
		return Decision{Allowed: true, Remaining: m.max - 1, ResetAt: r.resetTime}, nil
	}
	if now.After(r.resetTime) {
		r.count = 1
		r.resetTime = now.Add(m.window)
		return Decision{Allowed: true, Remaining: m.max - 1, ResetAt: r.resetTime}, nil
	}
	if r.count >= m.max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: r.resetTime}, nil
	}
	r.count++
	return Decision{Allowed: true, Remaining: m.max - r.count, ResetAt: r.resetTime}, nil
}

// Sweep drops records whose window ended before now and returns how many
// were removed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, r := range m.records {
		if now.After(r.resetTime) {
			delete(m.records, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep(m.now())
		}
	}
}

// Len is the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
