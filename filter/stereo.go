package filter

// Stereo pairs two independent Filter instances (left/right) sharing one
// Params target, since a region's filter/EQ opcodes configure one filter
// that processes both channels of a (possibly stereo) sample independently.
type Stereo struct {
	L, R *Filter
}

// NewStereo builds a Stereo filter pair at the given sample rate.
func NewStereo(sampleRate float64, p Params) *Stereo {
	return &Stereo{L: New(sampleRate, p), R: New(sampleRate, p)}
}

// SetParams updates both channels' target params.
func (s *Stereo) SetParams(p Params) {
	s.L.SetParams(p)
	s.R.SetParams(p)
}

// SetModulated marks both channels as per-sample modulated or not.
func (s *Stereo) SetModulated(v bool) {
	s.L.SetModulated(v)
	s.R.SetModulated(v)
}

// BeginBlock recomputes both channels' coefficients once for the block.
func (s *Stereo) BeginBlock() {
	s.L.BeginBlock()
	s.R.BeginBlock()
}

// Reset clears both channels' filter state.
func (s *Stereo) Reset() {
	s.L.Reset()
	s.R.Reset()
}

// ProcessFrame filters one stereo frame in place.
func (s *Stereo) ProcessFrame(l, r float64) (float64, float64) {
	return s.L.ProcessSample(l), s.R.ProcessSample(r)
}
