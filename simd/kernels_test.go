package simd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLinearRampThenDiffIsConstantStep(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 256).Draw(rt, "n")
		start := float32(rapid.Float64Range(-10, 10).Draw(rt, "start"))
		step := float32(rapid.Float64Range(-5, 5).Draw(rt, "step"))

		ramp := make([]float32, n)
		LinearRamp(ramp, start, step)

		diff := make([]float32, n)
		Diff(diff, ramp)

		for i := 1; i < n; i++ {
			assert.InDelta(rt, float64(step), float64(diff[i]), 1e-3)
		}
	})
}

func TestCumsumOfDiffReconstructsInput(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 256).Draw(rt, "n")
		x := make([]float32, n)
		for i := range x {
			x[i] = float32(rapid.Float64Range(-100, 100).Draw(rt, "x"))
		}

		diff := make([]float32, n)
		Diff(diff, x)
		recon := make([]float32, n)
		Cumsum(recon, diff)

		for i := range x {
			assert.InDelta(rt, float64(x[i]), float64(recon[i]), 1e-2)
		}
	})
}

func TestVectorMatchesScalar(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(rt, "n")
		a := randomSlice(rt, n)
		b := randomSlice(rt, n)

		outScalar := make([]float32, n)
		SetForceScalar(true)
		Add(outScalar, a, b)

		outVector := make([]float32, n)
		SetForceScalar(false)
		Add(outVector, a, b)

		for i := range outScalar {
			assert.InDelta(rt, float64(outScalar[i]), float64(outVector[i]), 1e-6)
		}
	})
	SetForceScalar(false)
}

func randomSlice(rt *rapid.T, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(rapid.Float64Range(-1000, 1000).Draw(rt, "v"))
	}
	return s
}

func TestMeanSquaredZeroLength(t *testing.T) {
	assert.Equal(t, float32(0), MeanSquared(nil))
	assert.Equal(t, float32(0), Mean(nil))
}

func TestInterleaveRoundTrip(t *testing.T) {
	l := []float32{1, 2, 3, 4}
	r := []float32{5, 6, 7, 8}
	inter := make([]float32, 8)
	WriteInterleaved(inter, l, r)

	l2 := make([]float32, 4)
	r2 := make([]float32, 4)
	ReadInterleaved(inter, l2, r2)

	assert.Equal(t, l, l2)
	assert.Equal(t, r, r2)
}

func TestPanCenterIsEqualPower(t *testing.T) {
	mono := []float32{1, 1, 1, 1}
	l := make([]float32, 4)
	r := make([]float32, 4)
	Pan(l, r, mono, 0)
	for i := range l {
		assert.InDelta(t, float64(l[i]), float64(r[i]), 1e-5)
		assert.InDelta(t, 1/math.Sqrt2, float64(l[i]), 1e-5)
	}
}

func TestWidthZeroCollapsesToMono(t *testing.T) {
	l := []float32{1, 0.5, -0.2}
	r := []float32{-1, 0.1, 0.8}
	Width(l, r, 0)
	for i := range l {
		assert.InDelta(t, float64(l[i]), float64(r[i]), 1e-6)
	}
}

func TestZeroLengthIsNoOp(t *testing.T) {
	var empty []float32
	require.NotPanics(t, func() {
		Fill(empty, 1)
		Add(empty, empty, empty)
		ApplyGain(empty, 2)
	})
}
