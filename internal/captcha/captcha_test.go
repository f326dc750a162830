package captcha

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/internal/clock"
	"github.com/easelhq/easel/pkg/board"
)

const testIdentity = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"

var testPalette = []string{"#000000", "#ff0000", "#00ff00", "#0000ff"}

func setupGate(t *testing.T) (*PaletteMatch, *clock.Manual) {
	scheduler := clock.NewManual(1000)
	gate, err := NewPaletteMatch(rand.New(rand.NewSource(7)), scheduler, testPalette)
	require.NoError(t, err)
	return gate, scheduler
}

// solve recovers the dominant color of a challenge canvas, which is what a
// human solver does visually.
func solve(c Challenge) int {
	counts := make(map[byte]int)
	for _, cell := range c.Canvas {
		counts[cell]++
	}

	best, bestCount := 0, -1
	for color, count := range counts {
		if count > bestCount {
			best, bestCount = int(color), count
		}
	}
	return best
}

func TestIssue(t *testing.T) {
	gate, _ := setupGate(t)

	challenge, err := gate.Issue(testIdentity)
	require.NoError(t, err)

	assert.NotEmpty(t, challenge.ID)
	assert.Len(t, challenge.Canvas, challenge.Columns*challenge.Rows)
	assert.Equal(t, testPalette, challenge.Palette)
	assert.Equal(t, int64(1000), challenge.IssuedAt)

	_, err = gate.Issue("not-an-identity")
	assert.ErrorIs(t, err, board.ErrInvalidInput)
}

func TestVerifySolvesTheDominantColor(t *testing.T) {
	gate, _ := setupGate(t)

	challenge, err := gate.Issue(testIdentity)
	require.NoError(t, err)

	assert.False(t, gate.Passed(testIdentity))
	require.NoError(t, gate.Verify(testIdentity, challenge.ID, solve(challenge)))
	assert.True(t, gate.Passed(testIdentity))
}

func TestVerifyRejectsWrongAnswers(t *testing.T) {
	gate, _ := setupGate(t)

	challenge, err := gate.Issue(testIdentity)
	require.NoError(t, err)

	wrong := (solve(challenge) + 1) % len(testPalette)
	assert.ErrorIs(t, gate.Verify(testIdentity, challenge.ID, wrong), board.ErrUnauthorized)
	assert.False(t, gate.Passed(testIdentity))

	// The challenge burned on the failed attempt.
	err = gate.Verify(testIdentity, challenge.ID, solve(challenge))
	assert.ErrorIs(t, err, board.ErrNotFound)
}

func TestVerifyRejectsForeignChallenges(t *testing.T) {
	gate, _ := setupGate(t)

	challenge, err := gate.Issue(testIdentity)
	require.NoError(t, err)

	other := "0x2b5ad5c4795c026514f8317c7a215e218dccd6cf"
	err = gate.Verify(other, challenge.ID, solve(challenge))
	assert.ErrorIs(t, err, board.ErrNotFound)
}

func TestVerifyRejectsExpiredChallenges(t *testing.T) {
	gate, scheduler := setupGate(t)

	challenge, err := gate.Issue(testIdentity)
	require.NoError(t, err)

	scheduler.Advance(ChallengeTTL + 1)
	err = gate.Verify(testIdentity, challenge.ID, solve(challenge))
	assert.ErrorIs(t, err, board.ErrInvalidInput)
}

func TestOpenGate(t *testing.T) {
	gate := Open{}

	assert.True(t, gate.Passed(testIdentity))
	assert.NoError(t, gate.Verify(testIdentity, "any", 0))

	_, err := gate.Issue(testIdentity)
	assert.Error(t, err)
}

func TestNewPaletteMatchRejectsBadPalettes(t *testing.T) {
	_, err := NewPaletteMatch(rand.New(rand.NewSource(1)), clock.NewManual(0), []string{"#000000"})
	assert.Error(t, err)
}
