package modgen

import "math"

// LFOWaveform selects one sub-oscillator's shape.
type LFOWaveform int

const (
	LFOSine LFOWaveform = iota
	LFOTriangle
	LFOPulse
	LFOSawUp
	LFOSawDown
	LFONoise
)

// subOsc is one of an LFO's (up to 4) stacked sub-oscillators, each with its
// own waveform, frequency in Hz, and mix depth. This generalizes the
// teacher's single PWM sub-LFO (audio_chip.go's pwmPhase) into an arbitrary
// stack, since SFZ's lfoN_wave/lfoN_freq opcodes allow several per LFO.
type subOsc struct {
	wave  LFOWaveform
	freq  float64 // Hz; SyncToTempo overwrites it with a tempo-derived rate
	depth float64
	phase float64
	rng   uint32 // xorshift state for LFONoise
}

func (s *subOsc) next(dt float64) float64 {
	s.phase += s.freq * dt
	wrapped := s.phase >= 1
	s.phase -= math.Floor(s.phase)
	var v float64
	switch s.wave {
	case LFOSine:
		v = math.Sin(2 * math.Pi * s.phase)
	case LFOTriangle:
		v = 4*math.Abs(s.phase-0.5) - 1
	case LFOPulse:
		if s.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	case LFOSawUp:
		v = 2*s.phase - 1
	case LFOSawDown:
		v = 1 - 2*s.phase
	case LFONoise:
		if wrapped || s.rng == 0 {
			s.nextNoise()
		}
		v = float64(s.rng)/float64(math.MaxUint32)*2 - 1
	}
	return v * s.depth
}

// nextNoise steps a small xorshift PRNG once per cycle boundary rather than
// per sample, giving the classic "sample and hold" LFO noise character
// instead of white noise.
func (s *subOsc) nextNoise() float64 {
	if s.rng == 0 {
		s.rng = 0x9e3779b9
	}
	s.rng ^= s.rng << 13
	s.rng ^= s.rng >> 17
	s.rng ^= s.rng << 5
	return float64(s.rng)/float64(math.MaxUint32)*2 - 1
}

// LFO is a multi-sub-oscillator generator with an optional fade-in and
// tempo-sync.
type LFO struct {
	subs     []subOsc
	fadeTime float64
	fadeT    float64
	sampleDt float64
}

// LFOParams configures an LFO at (re)trigger.
type LFOParams struct {
	FadeIn float64
}

// NewLFO builds an LFO at the given sample rate with no sub-oscillators
// configured; call AddSub to add up to 4.
func NewLFO(sampleRate float64) *LFO {
	return &LFO{sampleDt: 1 / sampleRate}
}

// AddSub appends a sub-oscillator. Freq is in Hz; use SyncToTempo instead if
// the sub should track host tempo in beats.
func (l *LFO) AddSub(wave LFOWaveform, freqHz, depth float64) {
	if len(l.subs) >= 4 {
		return
	}
	l.subs = append(l.subs, subOsc{wave: wave, freq: freqHz, depth: depth})
}

// SyncToTempo rescales every configured sub-oscillator's frequency so one
// cycle spans `beats` quarter notes at the given tempo (seconds per quarter
// note). The voice calls it once when it builds its LFOs at trigger, with a
// fixed 0.5 s per beat; a later tempo change does not reach an LFO that is
// already running.
func (l *LFO) SyncToTempo(beats, secPerBeat float64) {
	if beats <= 0 || secPerBeat <= 0 {
		return
	}
	hz := 1 / (beats * secPerBeat)
	for i := range l.subs {
		l.subs[i].freq = hz
	}
}

// Trigger resets phase and starts the fade-in ramp.
func (l *LFO) Trigger(fadeIn float64) {
	for i := range l.subs {
		l.subs[i].phase = 0
	}
	l.fadeTime = fadeIn
	l.fadeT = 0
}

// Advance steps the LFO by one sample and returns the summed, fade-scaled
// output.
func (l *LFO) Advance() float64 {
	var sum float64
	for i := range l.subs {
		sum += l.subs[i].next(l.sampleDt)
	}
	fade := 1.0
	if l.fadeTime > 0 {
		l.fadeT += l.sampleDt
		if l.fadeT < l.fadeTime {
			fade = l.fadeT / l.fadeTime
		}
	}
	return sum * fade
}

// IsInvariantOverBlock reports whether this LFO can be evaluated once and
// held constant for the whole upcoming block: true only when every
// sub-oscillator has zero depth (a fully silenced LFO), since any nonzero
// frequency otherwise varies sample to sample.
func (l *LFO) IsInvariantOverBlock() bool {
	for i := range l.subs {
		if l.subs[i].depth != 0 {
			return false
		}
	}
	return true
}
