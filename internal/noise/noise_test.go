package noise

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/internal/economy"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestSizeClass(t *testing.T) {
	assert.Equal(t, 0, SizeClass(32, 24))
	assert.Equal(t, 0, SizeClass(24, 32))
	assert.Equal(t, 3, SizeClass(96, 144))
	assert.Equal(t, MaxSizeClass(), SizeClass(384, 576))

	// Unknown shapes fold into the smallest class.
	assert.Equal(t, 0, SizeClass(16, 16))
}

func TestClampSizeClass(t *testing.T) {
	assert.Equal(t, 0, ClampSizeClass(-1))
	assert.Equal(t, 2, ClampSizeClass(2))
	assert.Equal(t, MaxSizeClass(), ClampSizeClass(MaxSizeClass()+5))
}

func TestPickDimensions(t *testing.T) {
	rng := testRand()
	for size := 0; size <= MaxSizeClass(); size++ {
		d := PickDimensions(rng, size)
		assert.Equal(t, size, SizeClass(d.Columns, d.Rows))
	}

	// Out-of-range classes clamp rather than panic.
	d := PickDimensions(rng, MaxSizeClass()+10)
	assert.Equal(t, MaxSizeClass(), SizeClass(d.Columns, d.Rows))
}

func TestGeneratePalette(t *testing.T) {
	t.Run("produces the requested size", func(t *testing.T) {
		palette, err := GeneratePalette(testRand(), 12)
		require.NoError(t, err)
		assert.Len(t, palette, 12)
	})

	t.Run("colors are valid and distinct", func(t *testing.T) {
		palette, err := GeneratePalette(testRand(), 8)
		require.NoError(t, err)

		seen := make(map[string]bool)
		for _, hex := range palette {
			assert.Len(t, hex, 7)
			assert.False(t, seen[hex], "duplicate color %s", hex)
			seen[hex] = true
		}
	})

	t.Run("colors are perceptually spread", func(t *testing.T) {
		palette, err := GeneratePalette(testRand(), 4)
		require.NoError(t, err)

		for i := range palette {
			for j := i + 1; j < len(palette); j++ {
				d, err := economy.ColorDistance(palette[i], palette[j])
				require.NoError(t, err)
				assert.Greater(t, d, 1.0, "%s vs %s", palette[i], palette[j])
			}
		}
	})

	t.Run("is deterministic for a seed", func(t *testing.T) {
		first, err := GeneratePalette(testRand(), 6)
		require.NoError(t, err)
		second, err := GeneratePalette(testRand(), 6)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("rejects out-of-range sizes", func(t *testing.T) {
		_, err := GeneratePalette(testRand(), 1)
		assert.Error(t, err)
		_, err = GeneratePalette(testRand(), 300)
		assert.Error(t, err)
	})
}

func TestGenerate(t *testing.T) {
	palette, err := GeneratePalette(testRand(), 12)
	require.NoError(t, err)

	for _, algorithm := range []Algorithm{Uniform, ControlPoints} {
		canvas, err := Generate(testRand(), algorithm, 32, 24, palette)
		require.NoError(t, err)
		require.Len(t, canvas, 32*24)

		// Every cell indexes into the palette.
		for _, c := range canvas {
			assert.Less(t, int(c), len(palette))
		}

		// Noise is not a solid fill.
		distinct := make(map[byte]bool)
		for _, c := range canvas {
			distinct[c] = true
		}
		assert.Greater(t, len(distinct), 1)
	}
}

func TestGenerateRejectsBadInputs(t *testing.T) {
	palette, err := GeneratePalette(testRand(), 4)
	require.NoError(t, err)

	_, err = Generate(testRand(), Uniform, 0, 24, palette)
	assert.Error(t, err)

	_, err = Generate(testRand(), Algorithm(99), 32, 24, palette)
	assert.Error(t, err)

	_, err = Generate(testRand(), Uniform, 32, 24, []string{"#000000"})
	assert.Error(t, err)
}
