// Package noise seeds new sessions: it picks canvas dimensions for a size
// class, generates a perceptually spread color palette, and fills the
// initial canvas with one of the noise algorithms. Every function takes an
// injected *rand.Rand so session seeding is reproducible in tests.
package noise

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
)

// Dimensions is one candidate canvas shape.
type Dimensions struct {
	Columns int
	Rows    int
}

// sizeClasses orders candidate shapes from smallest to largest. Community
// growth walks sessions up the table; each class offers a few aspect
// ratios.
var sizeClasses = [][]Dimensions{
	{{32, 24}, {24, 32}},
	{{64, 48}, {48, 64}, {48, 72}},
	{{96, 72}, {72, 96}, {72, 108}},
	{{128, 96}, {96, 128}, {96, 144}},
	{{192, 144}, {144, 192}, {144, 216}},
	{{256, 192}, {192, 256}, {192, 288}},
	{{384, 288}, {288, 384}, {288, 432}},
	{{512, 384}, {384, 512}, {384, 576}},
}

// MaxSizeClass is the largest valid size class index.
func MaxSizeClass() int {
	return len(sizeClasses) - 1
}

// ClampSizeClass folds an out-of-range class into the table.
func ClampSizeClass(size int) int {
	if size < 0 {
		return 0
	}
	if size > MaxSizeClass() {
		return MaxSizeClass()
	}
	return size
}

// SizeClass returns the class index for a known shape, or 0 when the shape
// is not in the table.
func SizeClass(columns, rows int) int {
	for size, shapes := range sizeClasses {
		for _, d := range shapes {
			if d.Columns == columns && d.Rows == rows {
				return size
			}
		}
	}
	return 0
}

// PickDimensions selects a random shape from a size class.
func PickDimensions(rng *rand.Rand, size int) Dimensions {
	shapes := sizeClasses[ClampSizeClass(size)]
	return shapes[rng.Intn(len(shapes))]
}

// GeneratePalette produces n hex colors with a minimum pairwise perceptual
// separation of 200/n delta-E. The separation requirement relaxes after
// repeated rejections so generation always terminates.
func GeneratePalette(rng *rand.Rand, n int) ([]string, error) {
	if n < 2 || n > 255 {
		return nil, fmt.Errorf("palette size %d out of range [2,255]", n)
	}

	minSeparation := 200.0 / float64(n)
	colors := make([]colorful.Color, 0, n)

	for len(colors) < n {
		rejections := 0
		for {
			candidate := colorful.Color{
				R: rng.Float64(),
				G: rng.Float64(),
				B: rng.Float64(),
			}

			ok := true
			for _, existing := range colors {
				if candidate.DistanceCIEDE2000(existing)*100 < minSeparation {
					ok = false
					break
				}
			}
			if ok {
				colors = append(colors, candidate)
				break
			}

			rejections++
			if rejections >= 64 {
				minSeparation /= 2
				rejections = 0
			}
		}
	}

	palette := make([]string, n)
	for i, c := range colors {
		palette[i] = c.Hex()
	}
	return palette, nil
}

// Algorithm identifies a canvas noise generator.
type Algorithm int

const (
	// Uniform fills every cell with an independently random color.
	Uniform Algorithm = iota
	// ControlPoints scatters random control points and lets each pull
	// the surrounding cells toward perceptually distant colors, yielding
	// blotchy regions instead of static.
	ControlPoints
)

// Generate fills a canvas buffer of rows*columns palette indices using the
// given algorithm.
func Generate(rng *rand.Rand, algorithm Algorithm, columns, rows int, palette []string) ([]byte, error) {
	if columns <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid canvas shape %dx%d", columns, rows)
	}
	if len(palette) < 2 || len(palette) > 255 {
		return nil, fmt.Errorf("palette size %d out of range [2,255]", len(palette))
	}

	switch algorithm {
	case Uniform:
		return generateUniform(rng, columns, rows, len(palette)), nil
	case ControlPoints:
		return generateControlPoints(rng, columns, rows, palette)
	default:
		return nil, fmt.Errorf("unknown noise algorithm %d", algorithm)
	}
}

func generateUniform(rng *rand.Rand, columns, rows, paletteSize int) []byte {
	canvas := make([]byte, rows*columns)
	for i := range canvas {
		canvas[i] = byte(rng.Intn(paletteSize))
	}
	return canvas
}

func generateControlPoints(rng *rand.Rand, columns, rows int, palette []string) ([]byte, error) {
	paletteSize := len(palette)
	area := rows * columns
	canvas := generateUniform(rng, columns, rows, paletteSize)

	parsed := make([]colorful.Color, paletteSize)
	for i, hex := range palette {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid palette color %q: %w", hex, err)
		}
		parsed[i] = c
	}

	// Pairwise distances are reused heavily; precompute once.
	diffs := make([][]float64, paletteSize)
	for i := range diffs {
		diffs[i] = make([]float64, paletteSize)
		for j := range diffs[i] {
			diffs[i][j] = parsed[i].DistanceCIEDE2000(parsed[j])
		}
	}

	pointCount := area / 1024
	if pointCount < 1 {
		pointCount = 1
	}

	diagonal := math.Sqrt(float64(rows*rows + columns*columns))
	commitments := make([]float64, area)

	for p := 0; p < pointCount; p++ {
		point := rng.Intn(area)
		canvas[point] = byte(rng.Intn(paletteSize))
		pointRow := point / columns
		pointColumn := point % columns

		for i := 0; i < rows; i++ {
			for j := 0; j < columns; j++ {
				index := i*columns + j
				di := float64(i - pointRow)
				dj := float64(j - pointColumn)
				distance := math.Sqrt(di*di+dj*dj) / diagonal

				color := rng.Intn(paletteSize)
				commitment := distance * diffs[color][canvas[point]]

				if commitment > commitments[index] {
					commitments[index] = commitment
					canvas[index] = byte(color)
				}
			}
		}
	}

	return canvas, nil
}
