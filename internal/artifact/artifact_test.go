package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/internal/canvasstore"
	"github.com/easelhq/easel/pkg/board"
)

const (
	alice = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
	bob   = "0x2b5ad5c4795c026514f8317c7a215e218dccd6cf"
)

func testSignature(fill string) string {
	return "0x" + strings.Repeat(fill, 65)
}

func testRevision(fill string) string {
	return "0x" + strings.Repeat(fill, 32)
}

// testArtifact builds a consistent 4x4 artifact: the final revision is the
// digest of the initial canvas with the activity log applied.
func testArtifact(t *testing.T) *Artifact {
	t.Helper()

	initial := make([]byte, 16)
	activity := []board.Activity{
		{Identity: alice, Revision: testRevision("aa"), PositionIndex: 0, ColorIndex: 1, Iteration: 1, CreatedAt: 1700000100},
		{Identity: bob, Revision: testRevision("bb"), PositionIndex: 5, ColorIndex: 2, Iteration: 1, CreatedAt: 1700000200},
		{Identity: alice, Revision: testRevision("cc"), PositionIndex: 0, ColorIndex: 3, Iteration: 2, CreatedAt: 1700000300},
	}

	final := make([]byte, len(initial))
	copy(final, initial)
	for _, act := range activity {
		final[act.PositionIndex] = byte(act.ColorIndex)
	}

	return &Artifact{
		Version:       Version,
		SessionDigest: canvasstore.Digest(initial),
		FinalRevision: canvasstore.Digest(final),
		Columns:       4,
		Rows:          4,
		CreatedAt:     1700000000,
		Palette:       []string{"#000000", "#ff0000", "#00ff00", "#0000ff"},
		InitialCanvas: initial,
		Signatures: []Signature{
			{Identity: alice, Signature: testSignature("ab")},
			{Identity: bob, Signature: testSignature("cd")},
		},
		Activity: activity,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := testArtifact(t)

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEncodeHeader(t *testing.T) {
	data, err := Encode(testArtifact(t))
	require.NoError(t, err)

	assert.Equal(t, Magic, string(data[:4]))
	assert.Equal(t, byte(Version), data[4])
	// columns at offset 69, rows at 71.
	assert.Equal(t, []byte{0, 4}, data[69:71])
	assert.Equal(t, []byte{0, 4}, data[71:73])
}

func TestEncodeRejectsInvalidArtifacts(t *testing.T) {
	t.Run("canvas length mismatch", func(t *testing.T) {
		a := testArtifact(t)
		a.InitialCanvas = a.InitialCanvas[:10]
		_, err := Encode(a)
		assert.Error(t, err)
	})

	t.Run("activity out of bounds", func(t *testing.T) {
		a := testArtifact(t)
		a.Activity[0].PositionIndex = 99
		_, err := Encode(a)
		assert.Error(t, err)
	})

	t.Run("activity color out of palette", func(t *testing.T) {
		a := testArtifact(t)
		a.Activity[0].ColorIndex = 7
		_, err := Encode(a)
		assert.Error(t, err)
	})

	t.Run("bad palette color", func(t *testing.T) {
		a := testArtifact(t)
		a.Palette[0] = "black"
		_, err := Encode(a)
		assert.Error(t, err)
	})
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	data, err := Encode(testArtifact(t))
	require.NoError(t, err)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[0] = 'X'
		_, err := Decode(bad)
		assert.ErrorIs(t, err, board.ErrInvalidInput)
	})

	t.Run("unsupported version", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[4] = 99
		_, err := Decode(bad)
		assert.ErrorIs(t, err, board.ErrInvalidInput)
	})

	t.Run("truncated", func(t *testing.T) {
		for _, cut := range []int{3, 10, 70, len(data) - 1} {
			_, err := Decode(data[:cut])
			assert.ErrorIs(t, err, board.ErrInvalidInput, "cut at %d", cut)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := Decode(append(append([]byte{}, data...), 0))
		assert.ErrorIs(t, err, board.ErrInvalidInput)
	})
}

func TestReplay(t *testing.T) {
	a := testArtifact(t)

	t.Run("reproduces the final revision", func(t *testing.T) {
		canvas, err := Replay(a)
		require.NoError(t, err)
		assert.Equal(t, a.FinalRevision, canvasstore.Digest(canvas))
		assert.Equal(t, byte(3), canvas[0])
		assert.Equal(t, byte(2), canvas[5])
	})

	t.Run("does not mutate the initial canvas", func(t *testing.T) {
		_, err := Replay(a)
		require.NoError(t, err)
		assert.Equal(t, byte(0), a.InitialCanvas[0])
	})

	t.Run("detects a tampered log", func(t *testing.T) {
		tampered := testArtifact(t)
		tampered.Activity[1].ColorIndex = 3
		_, err := Replay(tampered)
		assert.ErrorIs(t, err, board.ErrInternal)
	})

	t.Run("detects a tampered final revision", func(t *testing.T) {
		tampered := testArtifact(t)
		tampered.FinalRevision = testRevision("ee")
		_, err := Replay(tampered)
		assert.ErrorIs(t, err, board.ErrInternal)
	})
}

func TestContributions(t *testing.T) {
	a := testArtifact(t)

	contributions, err := Contributions(a)
	require.NoError(t, err)
	require.Len(t, contributions, 2)

	t.Run("sorted by descending score", func(t *testing.T) {
		assert.GreaterOrEqual(t, contributions[0].Score, contributions[1].Score)
	})

	t.Run("covers every contributor", func(t *testing.T) {
		identities := []string{contributions[0].Identity, contributions[1].Identity}
		assert.ElementsMatch(t, []string{alice, bob}, identities)
	})

	t.Run("surviving edits score positive", func(t *testing.T) {
		// Bob's single edit at cell 5 survives to the final canvas.
		for _, c := range contributions {
			if c.Identity == bob {
				assert.Greater(t, c.Score, 0.0)
			}
		}
	})

	t.Run("payout is floored and non-negative", func(t *testing.T) {
		for _, c := range contributions {
			assert.GreaterOrEqual(t, c.Payout, 0)
			if c.Score > 0 {
				assert.LessOrEqual(t, float64(c.Payout), c.Score/100)
			}
		}
	})
}

func TestContributionsRepaintCostsMore(t *testing.T) {
	// Two identical-shape sessions; in the second, alice's prior edit on
	// the same cell bumps its history length, so bob's identical edit
	// carries a higher cost weight. Alice's edit keeps the cell's color
	// so the only difference between the runs is the history counter.
	initial := make([]byte, 16)

	build := func(activity []board.Activity) *Artifact {
		final := make([]byte, len(initial))
		for _, act := range activity {
			final[act.PositionIndex] = byte(act.ColorIndex)
		}
		return &Artifact{
			Version:       Version,
			SessionDigest: canvasstore.Digest(initial),
			FinalRevision: canvasstore.Digest(final),
			Columns:       4,
			Rows:          4,
			CreatedAt:     1700000000,
			Palette:       []string{"#000000", "#ffffff", "#ff0000"},
			InitialCanvas: initial,
			Activity:      activity,
		}
	}

	fresh := build([]board.Activity{
		{Identity: bob, Revision: testRevision("aa"), PositionIndex: 5, ColorIndex: 1, Iteration: 1, CreatedAt: 1},
	})
	repaint := build([]board.Activity{
		{Identity: alice, Revision: testRevision("aa"), PositionIndex: 5, ColorIndex: 0, Iteration: 1, CreatedAt: 1},
		{Identity: bob, Revision: testRevision("bb"), PositionIndex: 5, ColorIndex: 1, Iteration: 1, CreatedAt: 2},
	})

	freshScores, err := Contributions(fresh)
	require.NoError(t, err)
	repaintScores, err := Contributions(repaint)
	require.NoError(t, err)

	bobScore := func(cs []Contribution) float64 {
		for _, c := range cs {
			if c.Identity == bob {
				return c.Score
			}
		}
		t.Fatal("bob not found")
		return 0
	}

	assert.Greater(t, bobScore(repaintScores), bobScore(freshScores))
}
