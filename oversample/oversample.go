// Package oversample implements the polyphase half-band up/downsampler
// cascade used to run a voice's resampling interpolator at a higher internal
// rate than the render rate. Factors are built by cascading 2x stages, so
// any power-of-two factor up to 128 is available by chaining log2(factor)
// half-band filters.
package oversample

import "math"

// MaxFactor is the largest supported oversampling ratio.
const MaxFactor = 128

// halfbandTaps are windowed-sinc half-band FIR coefficients, one stage per
// doubling of internal rate: stage 0 is used to go from 1x to 2x, stage 1
// from 2x to 4x, and so on. Each successive stage needs fewer taps because
// the extra oversampling from the previous stages gives the half-band
// transition more room; the shortest (128x) stage degenerates to a single
// unity tap, i.e. that stage is a pure zero-stuff with no additional
// filtering (acceptable because six cascaded stages of real filtering
// have already removed everything above the final Nyquist by then).
var halfbandTaps = [][]float64{
	designHalfband(12),
	designHalfband(10),
	designHalfband(8),
	designHalfband(6),
	designHalfband(4),
	designHalfband(2),
	{1},
}

// designHalfband builds a symmetric, windowed-sinc half-band lowpass FIR
// with the given number of taps on each side of the center tap (so the
// total length is 2*half+1). Half-band filters have the property that every
// other coefficient (besides the center) is exactly zero; the filter loop
// still multiplies every tap, zero or not.
func designHalfband(half int) []float64 {
	n := 2*half + 1
	taps := make([]float64, n)
	center := half
	for i := 0; i < n; i++ {
		k := i - center
		if k == 0 {
			taps[i] = 0.5
			continue
		}
		if k%2 == 0 {
			taps[i] = 0
			continue
		}
		// Windowed sinc for a half-band filter: h[k] = sin(pi*k/2)/(pi*k),
		// tapered by a Hamming window to control stop-band attenuation.
		sinc := math.Sin(math.Pi*float64(k)/2) / (math.Pi * float64(k))
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		taps[i] = sinc * w
	}
	return taps
}

// stage is one 2x polyphase half-band filter stage with persistent state
// across Process calls, so streaming doesn't introduce block-boundary
// discontinuities.
type stage struct {
	taps  []float64
	delay []float64 // circular history, length len(taps)
	pos   int
}

func newStage(taps []float64) *stage {
	return &stage{taps: taps, delay: make([]float64, len(taps))}
}

func (s *stage) reset() {
	for i := range s.delay {
		s.delay[i] = 0
	}
	s.pos = 0
}

func (s *stage) push(x float64) {
	s.delay[s.pos] = x
	s.pos++
	if s.pos == len(s.delay) {
		s.pos = 0
	}
}

func (s *stage) filter() float64 {
	var acc float64
	n := len(s.taps)
	idx := s.pos
	for i := 0; i < n; i++ {
		idx--
		if idx < 0 {
			idx = n - 1
		}
		acc += s.taps[i] * s.delay[idx]
	}
	return acc
}

// Upsampler2x doubles the sample rate of a stream by zero-stuffing and
// half-band lowpass filtering.
type Upsampler2x struct{ s *stage }

// NewUpsampler2x creates a 2x upsampler using the stage-th cascade filter
// (stage 0 = first doubling from the base rate).
func NewUpsampler2x(stageIdx int) *Upsampler2x {
	return &Upsampler2x{s: newStage(halfbandTaps[stageIdx%len(halfbandTaps)])}
}

// Reset clears the filter's history.
func (u *Upsampler2x) Reset() { u.s.reset() }

// Process upsamples n input frames into 2*n output frames.
func (u *Upsampler2x) Process(in []float64, out []float64) {
	for i, x := range in {
		u.s.push(x * 2)
		out[2*i] = u.s.filter()
		u.s.push(0)
		out[2*i+1] = u.s.filter()
	}
}

// Downsampler2x halves the sample rate of a stream via half-band lowpass
// filtering followed by decimation.
type Downsampler2x struct{ s *stage }

// NewDownsampler2x mirrors NewUpsampler2x's stage selection.
func NewDownsampler2x(stageIdx int) *Downsampler2x {
	return &Downsampler2x{s: newStage(halfbandTaps[stageIdx%len(halfbandTaps)])}
}

// Reset clears the filter's history.
func (d *Downsampler2x) Reset() { d.s.reset() }

// Process downsamples 2*n input frames into n output frames.
func (d *Downsampler2x) Process(in []float64, out []float64) {
	pairs := len(in) / 2
	for i := 0; i < pairs; i++ {
		d.s.push(in[2*i])
		d.s.filter()
		d.s.push(in[2*i+1])
		out[i] = d.s.filter()
	}
}

// Cascade runs a full factor-N conversion (N a power of two up to
// MaxFactor) by chaining log2(N) 2x stages. It owns per-voice state, since
// each voice in the synth runs at its own pitch ratio and therefore its own
// oversampling schedule — sharing a Cascade across voices would require
// synchronization or per-voice state copies for no benefit.
type Cascade struct {
	factor int
	ups    []*Upsampler2x
	downs  []*Downsampler2x
	pingA  []float64
	pingB  []float64
}

// NewCascade builds a cascade for the given factor. factor must be a power
// of two in [1, MaxFactor]; factor 1 yields a pass-through cascade.
func NewCascade(factor int) *Cascade {
	c := &Cascade{factor: factor}
	n := log2(factor)
	for i := 0; i < n; i++ {
		c.ups = append(c.ups, NewUpsampler2x(i))
		c.downs = append(c.downs, NewDownsampler2x(n-1-i))
	}
	return c
}

func log2(n int) int {
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}

// Factor returns the configured oversampling ratio.
func (c *Cascade) Factor() int { return c.factor }

// Prepare preallocates the cascade's internal ping-pong scratch for blocks
// of up to maxFrames input frames. Call this from the control thread
// whenever the block size or oversampling factor changes; Up/Down never
// grow these buffers themselves, keeping the audio-rendering path
// allocation-free.
func (c *Cascade) Prepare(maxFrames int) {
	need := maxFrames * c.factor
	if len(c.pingA) < need {
		c.pingA = make([]float64, need)
	}
	if len(c.pingB) < need {
		c.pingB = make([]float64, need)
	}
}

// Reset clears all stage history (e.g. after a seek or a voice retrigger).
func (c *Cascade) Reset() {
	for _, u := range c.ups {
		u.Reset()
	}
	for _, d := range c.downs {
		d.Reset()
	}
}

// Up converts nIn frames of in to nIn*factor frames in scratch, which must
// have capacity >= nIn*factor (the same "scratch_cap" contract spec.md
// describes for Oversampler.process). Call Prepare first so the cascade's
// internal ping-pong buffers are already sized; Up itself never allocates.
func (c *Cascade) Up(in []float64, scratch []float64) []float64 {
	if c.factor == 1 {
		n := copy(scratch, in)
		return scratch[:n]
	}
	src := in
	dstLen := len(in)
	bufs := [2][]float64{c.pingA, c.pingB}
	for i, u := range c.ups {
		dstLen *= 2
		last := i == len(c.ups)-1
		var dst []float64
		if last {
			dst = scratch[:dstLen]
		} else {
			dst = bufs[i%2][:dstLen]
		}
		u.Process(src, dst)
		src = dst
	}
	return src
}

// Down converts nIn*factor frames of in back to nIn frames in scratch.
func (c *Cascade) Down(in []float64, scratch []float64) []float64 {
	if c.factor == 1 {
		n := copy(scratch, in)
		return scratch[:n]
	}
	src := in
	dstLen := len(in)
	bufs := [2][]float64{c.pingA, c.pingB}
	for i, d := range c.downs {
		dstLen /= 2
		last := i == len(c.downs)-1
		var dst []float64
		if last {
			dst = scratch[:dstLen]
		} else {
			dst = bufs[i%2][:dstLen]
		}
		d.Process(src, dst)
		src = dst
	}
	return src
}
