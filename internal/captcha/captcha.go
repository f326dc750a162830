// Package captcha gates first-time participants behind a lightweight
// anti-automation challenge. The engine only depends on the Gate contract;
// the stock implementation is a palette-match puzzle a human solves by
// naming the dominant color of a small rendered canvas, which deployments
// can swap for a heavier challenge service.
package captcha

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/easelhq/easel/internal/clock"
	"github.com/easelhq/easel/pkg/board"
)

// ChallengeTTL is how long an issued challenge stays answerable, in
// seconds.
const ChallengeTTL = 120

// Challenge is a rendered puzzle sent to a participant. The answer is a
// palette index.
type Challenge struct {
	ID       string
	Columns  int
	Rows     int
	Palette  []string
	Canvas   []byte
	IssuedAt int64
}

// Gate decides whether an identity may act in a session.
type Gate interface {
	// Issue creates a challenge for an identity that has not passed yet.
	Issue(identity string) (Challenge, error)
	// Verify checks an answer; success marks the identity as passed.
	Verify(identity, challengeID string, answer int) error
	// Passed reports whether an identity has cleared the gate.
	Passed(identity string) bool
}

// Open is a Gate that admits everyone. Used when no challenge service is
// configured.
type Open struct{}

func (Open) Issue(identity string) (Challenge, error) {
	return Challenge{}, fmt.Errorf("challenge gating is disabled: %w", board.ErrInvalidInput)
}

func (Open) Verify(identity, challengeID string, answer int) error { return nil }

func (Open) Passed(identity string) bool { return true }

// PaletteMatch is the stock in-memory Gate. Each challenge is a small
// noise canvas where one palette color dominates; the expected answer is
// that color's index.
type PaletteMatch struct {
	mu         sync.Mutex
	rng        *rand.Rand
	scheduler  clock.Scheduler
	palette    []string
	challenges map[string]issued
	passed     map[string]bool
}

type issued struct {
	identity string
	solution int
	issuedAt int64
}

// NewPaletteMatch creates a gate rendering challenges from the given
// palette.
func NewPaletteMatch(rng *rand.Rand, scheduler clock.Scheduler, palette []string) (*PaletteMatch, error) {
	if len(palette) < 2 || len(palette) > 255 {
		return nil, fmt.Errorf("palette size %d out of range [2,255]", len(palette))
	}
	return &PaletteMatch{
		rng:        rng,
		scheduler:  scheduler,
		palette:    palette,
		challenges: make(map[string]issued),
		passed:     make(map[string]bool),
	}, nil
}

const challengeSize = 8

func (g *PaletteMatch) Issue(identity string) (Challenge, error) {
	if !board.IsValidIdentity(identity) {
		return Challenge{}, fmt.Errorf("invalid identity %q: %w", identity, board.ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	solution := g.rng.Intn(len(g.palette))

	// Slightly over half the cells carry the solution color; the rest are
	// uniform noise, so the dominant color is unambiguous but the canvas
	// is not a solid fill.
	canvas := make([]byte, challengeSize*challengeSize)
	for i := range canvas {
		if g.rng.Intn(100) < 55 {
			canvas[i] = byte(solution)
		} else {
			canvas[i] = byte(g.rng.Intn(len(g.palette)))
		}
	}

	challenge := Challenge{
		ID:       uuid.New().String(),
		Columns:  challengeSize,
		Rows:     challengeSize,
		Palette:  g.palette,
		Canvas:   canvas,
		IssuedAt: g.scheduler.Now(),
	}
	g.challenges[challenge.ID] = issued{
		identity: identity,
		solution: solution,
		issuedAt: challenge.IssuedAt,
	}
	return challenge, nil
}

func (g *PaletteMatch) Verify(identity, challengeID string, answer int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.challenges[challengeID]
	if !ok || entry.identity != identity {
		return fmt.Errorf("unknown challenge %q: %w", challengeID, board.ErrNotFound)
	}

	// One attempt per challenge.
	delete(g.challenges, challengeID)

	if g.scheduler.Now()-entry.issuedAt > ChallengeTTL {
		return fmt.Errorf("challenge expired: %w", board.ErrInvalidInput)
	}
	if answer != entry.solution {
		return fmt.Errorf("wrong challenge answer: %w", board.ErrUnauthorized)
	}

	g.passed[identity] = true
	return nil
}

func (g *PaletteMatch) Passed(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.passed[identity]
}
