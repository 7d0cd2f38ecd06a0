package modgen

// PowerFollower tracks a one-pole smoothed mean square of a voice's output.
// Its only reader is the voice pool's steal-priority comparison (lowest
// recent mean-square power steals first); it is not wired up as a
// modulation source.
type PowerFollower struct {
	meanSquare float64
	coeff      float64 // one-pole smoothing coefficient
}

// NewPowerFollower builds a follower with a smoothing time constant of
// timeConstantMs milliseconds at the given sample rate.
func NewPowerFollower(sampleRate float64, timeConstantMs float64) *PowerFollower {
	if timeConstantMs <= 0 {
		timeConstantMs = 1
	}
	tau := timeConstantMs / 1000
	return &PowerFollower{coeff: 1 - fastExp(-1/(tau*sampleRate))}
}

// fastExp is the (1 + x/n)^n limit approximation, adequate for the single coefficient
// computed once per follower configuration, not in the per-sample path.
func fastExp(x float64) float64 {
	// e^x ~= (1 + x/n)^n for large n; n=64 is plenty accurate for the small
	// negative x values a smoothing coefficient needs.
	const n = 64
	v := 1 + x/n
	for i := 0; i < 6; i++ {
		v *= v
	}
	return v
}

// Push feeds one sample into the follower.
func (p *PowerFollower) Push(sample float64) {
	sq := sample * sample
	p.meanSquare += p.coeff * (sq - p.meanSquare)
}

// MeanSquare returns the current smoothed mean-square power.
func (p *PowerFollower) MeanSquare() float64 { return p.meanSquare }

// Reset zeroes the follower's state, e.g. on voice retrigger.
func (p *PowerFollower) Reset() { p.meanSquare = 0 }
