package oversample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeRoundTripBandLimited(t *testing.T) {
	const n = 512
	const freq = 0.05 // cycles/sample, well inside Nyquist after any factor

	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freq * float64(i))
	}

	for _, factor := range []int{1, 2, 4, 8} {
		c := NewCascade(factor)
		c.Prepare(n)

		upScratch := make([]float64, n*factor)
		up := c.Up(x, upScratch)
		require.Equal(t, n*factor, len(up))

		downScratch := make([]float64, n)
		down := c.Down(up, downScratch)
		require.Equal(t, n, len(down))

		// Compare over the tail, skipping filter group-delay warm-up.
		var errEnergy, sigEnergy float64
		skip := n / 4
		for i := skip; i < n; i++ {
			d := down[i] - x[i]
			errEnergy += d * d
			sigEnergy += x[i] * x[i]
		}
		if sigEnergy == 0 {
			continue
		}
		ratio := errEnergy / sigEnergy
		assert.Lessf(t, ratio, 0.3, "factor=%d error/signal energy ratio=%.4f", factor, ratio)
	}
}

func TestCascadeFactorOnePassesThrough(t *testing.T) {
	c := NewCascade(1)
	c.Prepare(16)
	in := []float64{1, 2, 3, 4}
	out := make([]float64, 4)
	got := c.Up(in, out)
	assert.Equal(t, in, got)
}

func TestDesignHalfbandSymmetric(t *testing.T) {
	taps := designHalfband(6)
	n := len(taps)
	for i := 0; i < n/2; i++ {
		assert.InDelta(t, taps[i], taps[n-1-i], 1e-9)
	}
}
