// Package ledger implements the per-session revision ledger: a bounded ring
// of recent canvas revisions and the single cell each revision's mutation
// touched. It lets an optimistic writer submit a mutation "as of" a revision
// that is no longer current, accepting it only if no intervening mutation
// landed within a minimum spatial radius of the proposed cell. Distant edits
// race freely; only spatially adjacent concurrent edits conflict.
package ledger

import (
	"math"

	"github.com/easelhq/easel/pkg/board"
)

// DefaultCapacity is the number of recent revisions retained per session.
const DefaultCapacity = 5

// DefaultRadius is the minimum Euclidean distance between concurrent edits
// from different base revisions.
const DefaultRadius = 3.0

// Entry records one accepted mutation: the revision it produced and the
// cell it touched.
type Entry struct {
	Revision      string
	PositionIndex int
}

// Ring is a bounded, ordered ledger of recent entries. Order is mutation
// order, not wall-clock order. Not safe for concurrent use; the session
// engine owns one ring per session under the session lock.
type Ring struct {
	capacity int
	radius   float64
	entries  []Entry
}

// NewRing creates a ring with the given capacity and conflict radius.
// Non-positive arguments fall back to the defaults.
func NewRing(capacity int, radius float64) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &Ring{
		capacity: capacity,
		radius:   radius,
		entries:  make([]Entry, 0, capacity+1),
	}
}

// Check decides whether a mutation claiming baseRevision may touch
// positionIndex. currentRevision is the session's latest accepted revision.
//
// A claim equal to the current revision is accepted unconditionally: no
// writer intervened. Otherwise the claim must name a ledger entry, and
// every entry after it must be farther than the conflict radius from the
// proposed cell. Returns board.ErrRevisionUnknown or
// board.ErrDrawSpaceViolation on rejection.
func (r *Ring) Check(currentRevision, baseRevision string, positionIndex, columns int) error {
	if baseRevision == currentRevision {
		return nil
	}

	match := -1
	for i, entry := range r.entries {
		if entry.Revision == baseRevision {
			match = i
			break
		}
	}
	if match < 0 {
		return board.ErrRevisionUnknown
	}

	for _, entry := range r.entries[match+1:] {
		if Distance(columns, entry.PositionIndex, positionIndex) < r.radius {
			return board.ErrDrawSpaceViolation
		}
	}
	return nil
}

// Push appends an accepted mutation's entry. If the ring exceeds capacity
// the oldest entry is evicted and returned so the caller can delete its
// buffer from the canvas store (no orphan snapshots).
func (r *Ring) Push(entry Entry) (Entry, bool) {
	r.entries = append(r.entries, entry)
	if len(r.entries) <= r.capacity {
		return Entry{}, false
	}

	evicted := r.entries[0]
	r.entries = r.entries[1:]
	return evicted, true
}

// Entries returns a copy of the ring's entries in mutation order. Used by
// finalization to prune every retained non-final buffer.
func (r *Ring) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	return len(r.entries)
}

// Distance returns the Euclidean distance between two flat cell indices on
// a grid with the given column stride.
func Distance(columns, positionIndex1, positionIndex2 int) float64 {
	x1 := positionIndex1 % columns
	x2 := positionIndex2 % columns
	y1 := positionIndex1 / columns
	y2 := positionIndex2 / columns

	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	return math.Sqrt(dx*dx + dy*dy)
}
