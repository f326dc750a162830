// Package clock provides the wall-clock scheduler that drives session phase
// transitions. Callers ask for a channel that closes at or after an absolute
// Unix timestamp; resolution is a coarse 1-second tick, so callbacks may
// fire slightly late but never early. The scheduler is infallible by
// construction: failures inside a waiting goroutine belong to that
// goroutine's owner, never to the scheduler.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Scheduler is the timer contract consumed by the session engine. At
// returns a channel that is closed no earlier than the given Unix
// timestamp. Multiple pending waits on the same or different timestamps all
// eventually resolve; waits whose timestamps are equal or already past
// resolve in non-decreasing timestamp order.
type Scheduler interface {
	Now() int64
	At(timestamp int64) <-chan struct{}
}

// Clock is the production Scheduler, backed by a 1-second ticker goroutine.
type Clock struct {
	mu     sync.Mutex
	timers map[int64][]chan struct{}
	stop   chan struct{}
	once   sync.Once
}

// New creates a Clock and starts its tick loop.
func New() *Clock {
	c := &Clock{
		timers: make(map[int64][]chan struct{}),
		stop:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Now returns the current Unix timestamp in seconds.
func (c *Clock) Now() int64 {
	return time.Now().Unix()
}

// At returns a channel closed at or after the given Unix timestamp.
func (c *Clock) At(timestamp int64) <-chan struct{} {
	ch := make(chan struct{})

	c.mu.Lock()
	c.timers[timestamp] = append(c.timers[timestamp], ch)
	c.mu.Unlock()

	return ch
}

// Timer returns a channel closed roughly the given number of seconds from
// now.
func (c *Clock) Timer(seconds int64) <-chan struct{} {
	return c.At(c.Now() + seconds)
}

// Stop terminates the tick loop. Pending waits never resolve after Stop;
// intended for shutdown paths only.
func (c *Clock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Clock) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.fire(c.Now())
		}
	}
}

// fire resolves every wait whose timestamp is due, in timestamp order.
func (c *Clock) fire(now int64) {
	c.mu.Lock()

	due := make([]int64, 0)
	for at := range c.timers {
		if at <= now {
			due = append(due, at)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	waiters := make([][]chan struct{}, 0, len(due))
	for _, at := range due {
		waiters = append(waiters, c.timers[at])
		delete(c.timers, at)
	}
	c.mu.Unlock()

	for _, chans := range waiters {
		for _, ch := range chans {
			close(ch)
		}
	}
}
