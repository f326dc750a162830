package clock

import (
	"sort"
	"sync"
)

// Manual is a Scheduler whose time only moves when Advance is called.
// Used by engine tests to drive phase transitions deterministically.
type Manual struct {
	mu     sync.Mutex
	now    int64
	timers map[int64][]chan struct{}
}

// NewManual creates a Manual scheduler starting at the given Unix
// timestamp.
func NewManual(start int64) *Manual {
	return &Manual{
		now:    start,
		timers: make(map[int64][]chan struct{}),
	}
}

// Now returns the manual clock's current timestamp.
func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// At returns a channel closed once Advance moves the clock to or past the
// given timestamp. Timestamps already in the past resolve on the next
// Advance call, mirroring the production clock's "next tick" behavior.
func (m *Manual) At(timestamp int64) <-chan struct{} {
	ch := make(chan struct{})

	m.mu.Lock()
	m.timers[timestamp] = append(m.timers[timestamp], ch)
	m.mu.Unlock()

	return ch
}

// Advance moves the clock forward by the given number of seconds and fires
// every due wait in timestamp order.
func (m *Manual) Advance(seconds int64) {
	m.mu.Lock()
	m.now += seconds
	now := m.now

	due := make([]int64, 0)
	for at := range m.timers {
		if at <= now {
			due = append(due, at)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	waiters := make([][]chan struct{}, 0, len(due))
	for _, at := range due {
		waiters = append(waiters, m.timers[at])
		delete(m.timers, at)
	}
	m.mu.Unlock()

	for _, chans := range waiters {
		for _, ch := range chans {
			close(ch)
		}
	}
}
