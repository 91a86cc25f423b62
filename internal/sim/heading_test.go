package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateHeadings_StraightNorth(t *testing.T) {
	// 10 fixes, 1 m apart, due north.
	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range y {
		y[i] = float64(i)
	}

	headings := estimateHeadings(x, y)
	require.Len(t, headings, 10)
	for i, h := range headings {
		assert.InDelta(t, math.Pi/2, h, 1e-9, "sample %d", i)
	}
}

func TestEstimateHeadings_GateAndBackfill(t *testing.T) {
	// Steps of 5 cm north: the gate (0.1 m displacement) only clears on the
	// third step, and the earlier samples get backfilled with that heading.
	x := []float64{0, 0, 0, 0}
	y := []float64{0, 0.05, 0.10, 0.15}

	headings := estimateHeadings(x, y)
	for i, h := range headings {
		assert.InDelta(t, math.Pi/2, h, 1e-9, "sample %d", i)
	}
}

func TestEstimateHeadings_ReversedTrack(t *testing.T) {
	// Short push east, then a long run back west. The first emission locks
	// the east direction, but the majority of gated steps disagree, so the
	// vote flips the whole sequence to the westbound heading.
	x := []float64{0, 1, 2, 1, 0, -1, -2, -3, -4, -5}
	y := make([]float64, 10)

	headings := estimateHeadings(x, y)
	// The tail is solidly westbound.
	assert.InDelta(t, math.Pi, math.Abs(wrapAngle(headings[9])), 1e-9)
}

func TestSmoothHeadings_SparesEnds(t *testing.T) {
	h := []float64{0, 0, 1, 0, 0, 0, 0}
	out := smoothHeadings(h)

	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.0, out[1])
	assert.Equal(t, 0.0, out[5])
	assert.Equal(t, 0.0, out[6])
	// The spike is spread over the centred window.
	assert.InDelta(t, 1.0/5, out[3], 1e-9)
}

func TestSmoothHeadings_CircularSeam(t *testing.T) {
	// Values straddling ±π must not average through zero.
	h := []float64{math.Pi - 0.1, math.Pi - 0.05, math.Pi, -math.Pi + 0.05, -math.Pi + 0.1}
	out := smoothHeadings(h)
	assert.InDelta(t, 0, wrapAngle(out[2]-math.Pi), 0.1)
}

func TestWrapAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi, math.Pi},
		{math.Pi / 2, math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, wrapAngle(tc.in), 1e-12, "wrapAngle(%v)", tc.in)
	}
}
