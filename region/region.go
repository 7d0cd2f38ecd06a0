package region

import "github.com/rtsampler/sfzcore/filter"

// TriggerMode selects when a region becomes eligible to sound.
type TriggerMode int

const (
	TriggerAttack TriggerMode = iota
	TriggerRelease
	TriggerFirst
	TriggerLegato
)

// LoopMode selects how a region's playhead behaves at the sample's loop
// points.
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopOneShot
	LoopContinuous
	LoopSustain
)

// OffMode selects how a group's `off_by` silences other regions.
type OffMode int

const (
	OffFast OffMode = iota
	OffNormal
)

// IntRange is an inclusive [Lo, Hi] integer range, used for key/velocity/
// channel/keyswitch matching. Deliberately not collapsed to a single
// canonical value even for a degenerate one-channel range — see DESIGN.md's
// open-question decision on channel_range.
type IntRange struct {
	Lo, Hi int
}

// Contains reports whether v falls within [Lo, Hi] inclusive.
func (r IntRange) Contains(v int) bool { return v >= r.Lo && v <= r.Hi }

// Normalize swaps Lo/Hi if they arrived reversed, enforcing the spec's
// lo<=hi invariant without rejecting the region.
func (r IntRange) Normalize() IntRange {
	if r.Lo > r.Hi {
		return IntRange{Lo: r.Hi, Hi: r.Lo}
	}
	return r
}

// FullRange spans every possible value for the given inclusive upper bound,
// used as the default for ranges a region doesn't explicitly restrict.
func FullRange(max int) IntRange { return IntRange{Lo: 0, Hi: max} }

// CCCondition gates region eligibility on a controller's current value
// falling in Range.
type CCCondition struct {
	CC    int
	Range IntRange
}

// VelocityPoint is one knot of a region's piecewise-linear velocity curve.
type VelocityPoint struct {
	Velocity int
	Gain     float64
}

// CCModulator routes a controller's curve-mapped value to a modulation
// target with a given depth.
type CCModulator struct {
	CC    int
	Depth float64
	Curve int // index into the curve package's predefined/user table
}

// EnvelopeSpec is one ADSR generator's configuration, shared by the
// dedicated amp EG and any number of named pitch/filter EGs.
type EnvelopeSpec struct {
	Delay, Attack, Hold, Decay, Sustain, Release, Start float64
	Shape                                               int // modgen.EnvelopeShape, kept as int to avoid an import cycle with modgen
	CCMod                                               []CCModulator

	// Depth scales a pitch/filter EG's [0,1] level before it's added to
	// pitch (cents) or cutoff (Hz); unused by the amp EG, which applies its
	// own level directly as a gain multiplier. Zero by default, matching
	// sfz's convention that an EG with no depth opcode doesn't modulate
	// anything, the same way an LFO with no Targets entry doesn't.
	Depth float64
}

// Normalize clamps EnvelopeSpec fields to the invariants spec.md requires.
func (e EnvelopeSpec) Normalize() EnvelopeSpec {
	if e.Delay < 0 {
		e.Delay = 0
	}
	if e.Attack < 0 {
		e.Attack = 0
	}
	if e.Hold < 0 {
		e.Hold = 0
	}
	if e.Decay < 0 {
		e.Decay = 0
	}
	if e.Release < 0 {
		e.Release = 0
	}
	if e.Sustain < 0 {
		e.Sustain = 0
	}
	if e.Sustain > 1 {
		e.Sustain = 1
	}
	return e
}

// SubwaveSpec is one sub-oscillator stacked into an LFOSpec.
type SubwaveSpec struct {
	Ratio  float64
	Wave   int // modgen.LFOWaveform
	Smooth float64
}

// ModTarget routes an LFO to a named modulation destination at a given
// depth (e.g. "pitch", "volume", "filter1_cutoff").
type ModTarget struct {
	Destination string
	Depth       float64
}

// LFOSpec is one LFO's configuration.
type LFOSpec struct {
	Freq, Delay, Fade, Phase float64
	Waveform                 int // modgen.LFOWaveform
	Beats                    float64
	Subwaves                 []SubwaveSpec
	Targets                  []ModTarget
}

// FilterSpec is one filter or EQ band's configuration.
type FilterSpec struct {
	Type           filter.Type
	Cutoff         float64
	Resonance      float64
	GainDB         float64
	KeyTrack       float64
	VelTrack       float64
	CCMod          []CCModulator
	ResonanceCCMod []CCModulator
}

// Region is one triggerable SFZ unit: one sample reference plus all of its
// matching predicates and modulation. Immutable after LoadSFZFile publishes
// it, per spec's ownership rule; Voice only ever reads through a pointer a
// Synth hands it.
type Region struct {
	// Trigger predicates.
	KeyRange       IntRange
	VelRange       IntRange
	ChannelRange   IntRange
	CCConditions   []CCCondition
	KeyswitchRange IntRange
	HasKeyswitch   bool
	TriggerMode    TriggerMode
	RandomRange    [2]float64
	Group          uint32
	OffBy          uint32
	HasOffBy       bool
	OffMode        OffMode

	// Sample reference.
	SamplePath    string
	Offset        uint64
	OffsetRandom  uint64
	End           uint64
	HasEnd        bool
	LoopBegin     uint64
	LoopEnd       uint64
	LoopMode      LoopMode
	Count         uint32
	HasCount      bool
	Delay         float64
	DelayRandom   float64

	// Amplitude.
	VolumeDB       float64
	AmplitudePct   float64
	VelocityPoints []VelocityPoint
	AmpVeltrack    float64
	Pan            float64
	Width          float64
	Position       float64
	AmpCCMod       []CCModulator
	PanCCMod       []CCModulator

	// Pitch.
	PitchKeycenter int
	PitchKeytrack  float64
	PitchVeltrack  float64
	Transpose      int
	TuneCents      float64
	BendUp         float64
	BendDown       float64
	BendStep       float64
	PitchCCMod     []CCModulator

	Filters []FilterSpec
	EQs     []FilterSpec

	AmpEG     EnvelopeSpec
	PitchEGs  map[string]EnvelopeSpec
	FilterEGs map[string]EnvelopeSpec

	LFOs []LFOSpec
}

// NewRegion returns a Region with spec.md's documented defaults: full key/
// velocity/channel ranges, unity amplitude, centered pan/pitch, one-shot
// attack trigger.
func NewRegion() *Region {
	return &Region{
		KeyRange:      FullRange(127),
		VelRange:      FullRange(127),
		ChannelRange:  FullRange(15),
		TriggerMode:   TriggerAttack,
		RandomRange:   [2]float64{0, 1},
		AmplitudePct:  100,
		AmpVeltrack:   100,
		PitchKeycenter: 60,
		PitchKeytrack:  100,
		PitchEGs:      map[string]EnvelopeSpec{},
		FilterEGs:     map[string]EnvelopeSpec{},
	}
}

// Normalize enforces spec.md's range and timing invariants in place: every
// IntRange gets Lo<=Hi, every duration is clamped non-negative, and the amp
// EG's sustain is clamped to [0,1].
func (r *Region) Normalize() {
	r.KeyRange = r.KeyRange.Normalize()
	r.VelRange = r.VelRange.Normalize()
	r.ChannelRange = r.ChannelRange.Normalize()
	r.KeyswitchRange = r.KeyswitchRange.Normalize()
	for i := range r.CCConditions {
		r.CCConditions[i].Range = r.CCConditions[i].Range.Normalize()
	}
	if r.Delay < 0 {
		r.Delay = 0
	}
	if r.DelayRandom < 0 {
		r.DelayRandom = 0
	}
	if r.LoopEnd < r.LoopBegin {
		r.LoopBegin, r.LoopEnd = r.LoopEnd, r.LoopBegin
	}
	r.AmpEG = r.AmpEG.Normalize()
	for k, v := range r.PitchEGs {
		r.PitchEGs[k] = v.Normalize()
	}
	for k, v := range r.FilterEGs {
		r.FilterEGs[k] = v.Normalize()
	}
}

// MatchesNote reports whether this region is eligible to sound for a note-on
// at the given key/velocity/channel, independent of CC/keyswitch/random
// state (those are evaluated separately since they need live MidiState).
func (r *Region) MatchesNote(key, velocity, channel int) bool {
	return r.KeyRange.Contains(key) && r.VelRange.Contains(velocity) && r.ChannelRange.Contains(channel)
}
