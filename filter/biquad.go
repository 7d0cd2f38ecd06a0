// Package filter implements the per-voice filter/EQ chain: a tagged-variant
// biquad covering the lowpass/highpass/bandpass/bandreject/allpass/peak/
// shelf family, with one-pole coefficient smoothing so a modulated cutoff or
// Q doesn't zipper.
//
// The coefficient math follows the RBJ biquad cookbook (the standard
// derivation every audio engine's filter stage is built on); the smoothing
// and per-block-vs-per-sample recompute strategy generalizes the teacher's
// state-variable filter (audio_chip.go's filterLP/filterBP/filterHP
// Chamberlin SVF) from a single fixed LP/HP/BP mode to the spec's full
// tagged-variant set with a transposed direct-form-II implementation.
package filter

import "math"

// Type selects the biquad's response shape.
type Type int

const (
	TypeLPF1P Type = iota // first-order one-pole lowpass
	TypeLPF2P
	TypeLPF4P // two cascaded 2-pole stages
	TypeLPF6P // three cascaded 2-pole stages
	TypeHPF1P
	TypeHPF2P
	TypeBPF1P
	TypeBPF2P
	TypeBRF
	TypeAPF
	TypePeak
	TypeLowShelf
	TypeHighShelf
)

// smoothTimeMs is the one-pole parameter-smoothing time constant: spec.md
// requires cutoff/Q changes not produce audible zipper noise within this
// window.
const smoothTimeMs = 1.0

// coeffs is one 2-pole biquad's transposed-direct-form-II coefficients.
type coeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// stage2 is one cascaded biquad section with its own state, used to build
// the 4-pole/6-pole variants out of 2/3 cascaded 2-pole sections.
type stage2 struct {
	c      coeffs
	z1, z2 float64 // transposed direct form II state
}

func (s *stage2) process(x float64) float64 {
	y := s.c.b0*x + s.z1
	s.z1 = s.c.b1*x - s.c.a1*y + s.z2
	s.z2 = s.c.b2*x - s.c.a2*y
	return y
}

// Params is the user-facing, unsmoothed filter configuration.
type Params struct {
	Type   Type
	Cutoff float64 // Hz
	Q      float64 // resonance/Q, >0
	GainDB float64 // used by Peak/LowShelf/HighShelf only
}

// Filter is one channel's biquad (or cascade of biquads, for 4p/6p types),
// with one-pole smoothing of Cutoff/Q/GainDB and a cached recompute of
// coefficients.
type Filter struct {
	sampleRate float64
	target     Params
	smoothed   Params
	smoothCoef float64
	stages     []stage2

	// modulated marks whether this filter's cutoff/Q is being driven by a
	// per-sample modulation source this block; when false, coefficients are
	// computed once per block instead of once per sample.
	modulated      bool
	coeffsValid    bool
}

// New builds a Filter at the given sample rate with an initial Params.
func New(sampleRate float64, p Params) *Filter {
	f := &Filter{sampleRate: sampleRate, target: p, smoothed: p}
	f.smoothCoef = 1 - math.Exp(-1/((smoothTimeMs/1000)*sampleRate))
	f.rebuildStages()
	f.recompute()
	return f
}

func (f *Filter) stageCount() int {
	switch f.target.Type {
	case TypeLPF4P:
		return 2
	case TypeLPF6P:
		return 3
	default:
		return 1
	}
}

func (f *Filter) rebuildStages() {
	n := f.stageCount()
	if len(f.stages) != n {
		f.stages = make([]stage2, n)
	}
}

// SetParams updates the target params a modulated or host-driven change
// wants to reach; actual coefficients approach this target over
// smoothTimeMs via the one-pole smoother in smoothStep.
func (f *Filter) SetParams(p Params) {
	if p.Type != f.target.Type {
		f.target = p
		f.rebuildStages()
		f.coeffsValid = false
		return
	}
	f.target = p
	f.coeffsValid = false
}

// SetModulated marks whether this filter's cutoff is changing every sample
// this block (from an envelope/LFO connection) or is fixed for the block.
func (f *Filter) SetModulated(v bool) { f.modulated = v }

// smoothStep advances the smoothed params one sample toward target.
func (f *Filter) smoothStep() {
	f.smoothed.Cutoff += f.smoothCoef * (f.target.Cutoff - f.smoothed.Cutoff)
	f.smoothed.Q += f.smoothCoef * (f.target.Q - f.smoothed.Q)
	f.smoothed.GainDB += f.smoothCoef * (f.target.GainDB - f.smoothed.GainDB)
}

func (f *Filter) recompute() {
	c := designBiquad(f.target.Type, f.smoothed.Cutoff, f.smoothed.Q, f.smoothed.GainDB, f.sampleRate)
	for i := range f.stages {
		f.stages[i].c = c
	}
	f.coeffsValid = true
}

// ProcessSample filters one sample through the cascade, recomputing
// coefficients first if this filter is under per-sample modulation (or if
// BeginBlock hasn't run a per-block recompute yet).
func (f *Filter) ProcessSample(x float64) float64 {
	f.smoothStep()
	if f.modulated || !f.coeffsValid {
		f.recompute()
	}
	y := x
	for i := range f.stages {
		y = f.stages[i].process(y)
	}
	return y
}

// BeginBlock recomputes coefficients once for the whole upcoming block,
// appropriate when this filter isn't under per-sample modulation — spec.md's
// "compute coefficients once per block unless modulated" rule.
func (f *Filter) BeginBlock() {
	if !f.modulated {
		f.smoothStep()
		f.recompute()
	}
}

// Reset clears all stage state (e.g. on voice retrigger).
func (f *Filter) Reset() {
	for i := range f.stages {
		f.stages[i].z1 = 0
		f.stages[i].z2 = 0
	}
}

func clampQ(q float64) float64 {
	if q <= 0 {
		return 0.01
	}
	return q
}

// designBiquad computes RBJ-cookbook coefficients for one 2-pole section
// (or the 1-pole LPF1P/HPF1P/BPF1P variants, which bypass the cookbook
// entirely since they have no resonance term).
func designBiquad(t Type, cutoff, q, gainDB, sampleRate float64) coeffs {
	if cutoff <= 0 {
		cutoff = 1
	}
	if cutoff > sampleRate/2-1 {
		cutoff = sampleRate/2 - 1
	}
	q = clampQ(q)

	switch t {
	case TypeLPF1P:
		return onePole(cutoff, sampleRate, false)
	case TypeHPF1P:
		return onePole(cutoff, sampleRate, true)
	case TypeBPF1P:
		// Approximate a gentle 1-pole bandpass as a lowpass minus a more
		// heavily smoothed lowpass; implemented directly via the 2-pole
		// bandpass cookbook at a fixed low Q instead, since a true 1-pole
		// bandpass has no meaningful center-frequency peak.
		return cookbook(TypeBPF2P, cutoff, 0.7, 0, sampleRate)
	default:
		return cookbook(t, cutoff, q, gainDB, sampleRate)
	}
}

func onePole(cutoff, sampleRate float64, highpass bool) coeffs {
	x := math.Exp(-2 * math.Pi * cutoff / sampleRate)
	if !highpass {
		return coeffs{b0: 1 - x, b1: 0, b2: 0, a1: -x, a2: 0}
	}
	return coeffs{b0: (1 + x) / 2, b1: -(1 + x) / 2, b2: 0, a1: -x, a2: 0}
}

// cookbook implements Robert Bristow-Johnson's standard biquad formulas for
// the 2-pole filter family.
func cookbook(t Type, cutoff, q, gainDB, sampleRate float64) coeffs {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * q)
	a := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch t {
	case TypeLPF2P, TypeLPF4P, TypeLPF6P:
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case TypeHPF2P:
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case TypeBPF2P:
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case TypeBRF:
		b0 = 1
		b1 = -2 * cosW0
		b2 = 1
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case TypeAPF:
		b0 = 1 - alpha
		b1 = -2 * cosW0
		b2 = 1 + alpha
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case TypePeak:
		b0 = 1 + alpha*a
		b1 = -2 * cosW0
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cosW0
		a2 = 1 - alpha/a
	case TypeLowShelf:
		sq := math.Sqrt(a) * 2 * alpha
		b0 = a * ((a + 1) - (a-1)*cosW0 + sq)
		b1 = 2 * a * ((a - 1) - (a+1)*cosW0)
		b2 = a * ((a + 1) - (a-1)*cosW0 - sq)
		a0 = (a + 1) + (a-1)*cosW0 + sq
		a1 = -2 * ((a - 1) + (a+1)*cosW0)
		a2 = (a + 1) + (a-1)*cosW0 - sq
	case TypeHighShelf:
		sq := math.Sqrt(a) * 2 * alpha
		b0 = a * ((a + 1) + (a-1)*cosW0 + sq)
		b1 = -2 * a * ((a - 1) + (a+1)*cosW0)
		b2 = a * ((a + 1) + (a-1)*cosW0 - sq)
		a0 = (a + 1) - (a-1)*cosW0 + sq
		a1 = 2 * ((a - 1) - (a+1)*cosW0)
		a2 = (a + 1) - (a-1)*cosW0 - sq
	default:
		b0, a0 = 1, 1
	}

	return coeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}
