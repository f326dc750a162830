package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockFiresPastTimestamps(t *testing.T) {
	c := New()
	defer c.Stop()

	// A timestamp already in the past resolves on the next tick.
	ch := c.At(c.Now() - 10)

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for past timestamp to fire")
	}
}

func TestClockFiresMultipleWaiters(t *testing.T) {
	c := New()
	defer c.Stop()

	at := c.Now()
	first := c.At(at)
	second := c.At(at)
	third := c.At(at - 5)

	deadline := time.After(3 * time.Second)
	for _, ch := range []<-chan struct{}{first, second, third} {
		select {
		case <-ch:
		case <-deadline:
			t.Fatal("timed out waiting for waiters to fire")
		}
	}
}

func TestClockDoesNotFireEarly(t *testing.T) {
	c := New()
	defer c.Stop()

	ch := c.At(c.Now() + 3600)

	select {
	case <-ch:
		t.Fatal("future timestamp fired early")
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestManualAdvance(t *testing.T) {
	m := NewManual(1000)

	early := m.At(1005)
	late := m.At(1020)

	m.Advance(10)
	assert.Equal(t, int64(1010), m.Now())

	select {
	case <-early:
	default:
		t.Fatal("due wait did not fire")
	}

	select {
	case <-late:
		t.Fatal("future wait fired early")
	default:
	}

	m.Advance(10)
	select {
	case <-late:
	default:
		t.Fatal("due wait did not fire after second advance")
	}
}

func TestManualFiresInTimestampOrder(t *testing.T) {
	m := NewManual(0)

	order := make(chan int, 2)
	first := m.At(5)
	second := m.At(10)

	done := make(chan struct{})
	go func() {
		<-first
		order <- 1
		<-second
		order <- 2
		close(done)
	}()

	m.Advance(20)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waits did not resolve")
	}

	require.Equal(t, 1, <-order)
	require.Equal(t, 2, <-order)
}
