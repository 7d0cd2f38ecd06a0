// Package voice implements the per-voice rendering pipeline: playhead
// advance with linear-interpolation resampling, the four SFZ loop modes,
// modulation generation, filter chain application, and amplitude/pan/width
// mixdown into a voice-owned scratch buffer. A Voice never allocates once
// triggered; every scratch slice it touches is sized up front by Configure.
package voice

import (
	"math"

	"github.com/rtsampler/sfzcore/buffer"
	"github.com/rtsampler/sfzcore/curve"
	"github.com/rtsampler/sfzcore/filepool"
	"github.com/rtsampler/sfzcore/filter"
	"github.com/rtsampler/sfzcore/modgen"
	"github.com/rtsampler/sfzcore/oversample"
	"github.com/rtsampler/sfzcore/region"
	"github.com/rtsampler/sfzcore/tuning"
)

// State is the voice lifecycle state machine: idle -> playing -> releasing
// -> idle, or any non-idle state -> stealing -> idle.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StateReleasing
	StateStealing
)

// StealFloorLinear is the -80dBFS mean-square floor below which a voice is
// always eligible for stealing regardless of its age, and below which the
// pool's find-free-voice algorithm will actually commit to a steal rather
// than dropping the incoming note (see synth.Synth.findFreeVoice).
const StealFloorLinear = 1e-8 // 10^(-80/10)

// minAgeBeforeSteal protects a just-triggered voice from being stolen
// before its attack transient has had a chance to speak, avoiding an
// audible click from killing a note the instant it starts.
const minAgeBeforeSteal = 64

// forcedReleaseCapSeconds bounds the ramp used when a voice is force-killed
// by stealing or by a group's off_by: never longer than 10ms even if the
// region's own release time is longer.
const forcedReleaseCapSeconds = 0.010

// Voice is one polyphonic playback slot. All fields are owned by the audio
// thread during RenderBlock; Trigger/Release/Steal are also called
// from the audio thread (in response to a note-on/note-off processed at a
// sample-accurate offset within the current block), never from the loader
// or control thread directly.
type Voice struct {
	state  State
	region *region.Region

	sampleRate float64
	tuning     *tuning.Table

	preload *filepool.FileInformation
	stream  *filepool.Ring
	ticket  filepool.Ticket

	sourcePos   float64 // fractional frame position into the logical (preload+stream) sample, absolute file-frame space
	preloadBase uint64  // absolute file frame that preload.PreloadedHead[0] corresponds to
	pitchRatio  float64
	baseRatio   float64
	loopBegin   uint64
	loopEnd     uint64
	hasLoop     bool
	totalFrames uint64
	endFrame    uint64
	hasEnd      bool

	ampEnv        *modgen.Envelope
	pitchEGs      map[string]*modgen.Envelope
	pitchEGDepth  map[string]float64
	filterEGs     map[string]*modgen.Envelope
	filterEGDepth map[string]float64
	lfos          []*modgen.LFO
	power         *modgen.PowerFollower

	filters []*filter.Stereo
	eqs     []*filter.Stereo

	oversampler *oversample.Cascade

	triggerChannel  int
	triggerKey      int
	triggerVelocity float64
	triggerRandom   float64

	ageSamples uint64

	forcedRelease bool
	atNaturalEnd  bool

	// Streaming-tail read cursor. The audio thread only ever consumes the
	// ring sequentially, so a one-frame-behind/current pair is enough to
	// linearly interpolate without needing arbitrary lookback.
	streamPrimed        bool
	streamIdx           uint64
	streamPrevL, streamPrevR float64
	streamCurL, streamCurR   float64
	streamReadBuf       [2]float32
}

// New returns an idle Voice configured for sampleRate. callers reuse Voices
// from a fixed-size Pool rather than allocating per note.
func New(sampleRate float64, t *tuning.Table, oversampleFactor int) *Voice {
	v := &Voice{
		sampleRate:    sampleRate,
		tuning:        t,
		ampEnv:        modgen.NewEnvelope(sampleRate, true),
		pitchEGs:      map[string]*modgen.Envelope{},
		pitchEGDepth:  map[string]float64{},
		filterEGs:     map[string]*modgen.Envelope{},
		filterEGDepth: map[string]float64{},
		power:         modgen.NewPowerFollower(sampleRate, 10),
		oversampler:   oversample.NewCascade(oversampleFactor),
	}
	return v
}

// State reports the voice's current lifecycle state.
func (v *Voice) State() State { return v.state }

// IsIdle reports whether the voice is free for allocation.
func (v *Voice) IsIdle() bool { return v.state == StateIdle }

// IsActive reports whether the voice is currently producing sound.
func (v *Voice) IsActive() bool { return v.state != StateIdle }

// Region returns the region this voice is currently playing, or nil if
// idle.
func (v *Voice) Region() *region.Region { return v.region }

// MeanSquare reports the voice's current short-term mean-square power,
// used by the pool's steal-priority comparison.
func (v *Voice) MeanSquare() float64 { return v.power.MeanSquare() }

// SourcePosition reports the voice's current fractional source-frame
// position, the steal-priority tiebreaker (prefer stealing whichever voice
// is furthest through its sample).
func (v *Voice) SourcePosition() float64 { return v.sourcePos }

// CanBeStolen reports whether this voice is eligible to be chosen as a
// steal victim: either it has aged past its attack transient, or it has
// rendered at least one sample and its level is below the -80dBFS steal
// floor regardless of age. A voice that has not rendered yet is never
// eligible.
func (v *Voice) CanBeStolen() bool {
	if v.state == StateIdle {
		return false
	}
	if v.ageSamples > 0 && v.power.MeanSquare() <= StealFloorLinear {
		return true
	}
	return v.ageSamples >= minAgeBeforeSteal
}

// TriggerChannel, TriggerKey, TriggerVelocity, TriggerRandom report the
// note-on parameters this voice was triggered with, used by off_by group
// matching and diagnostics.
func (v *Voice) TriggerChannel() int        { return v.triggerChannel }
func (v *Voice) TriggerKey() int            { return v.triggerKey }
func (v *Voice) TriggerVelocity() float64   { return v.triggerVelocity }
func (v *Voice) Group() uint32 {
	if v.region == nil {
		return 0
	}
	return v.region.Group
}

// Trigger starts the voice playing r, sourced from preload (always
// non-nil: the preloaded head) and stream (nil if the whole sample fit in
// the preload). randomDraw is the [0,1) draw spec.md's random trigger
// predicate consumes; it does not re-decide matching here (the caller
// already matched), only opcodes that vary per-trigger (amp/pitch random
// spread) read it.
func (v *Voice) Trigger(r *region.Region, preload *filepool.FileInformation, stream *filepool.Ring, ticket filepool.Ticket, channel, key int, velocity float64, randomDraw float64) {
	v.state = StatePlaying
	v.region = r
	v.preload = preload
	v.stream = stream
	v.ticket = ticket
	v.triggerChannel = channel
	v.triggerKey = key
	v.triggerVelocity = velocity
	v.triggerRandom = randomDraw
	v.ageSamples = 0
	v.forcedRelease = false
	v.atNaturalEnd = false
	v.streamPrimed = false
	v.streamIdx = 0
	v.streamPrevL, v.streamPrevR = 0, 0
	v.streamCurL, v.streamCurR = 0, 0

	offset := r.Offset
	if r.OffsetRandom > 0 {
		offset += uint64(randomDraw * float64(r.OffsetRandom))
	}
	v.sourcePos = float64(offset)
	v.preloadBase = offset

	v.loopBegin = r.LoopBegin
	v.loopEnd = r.LoopEnd
	v.hasLoop = r.LoopMode == region.LoopContinuous || r.LoopMode == region.LoopSustain
	v.totalFrames = preload.TotalFrames
	v.endFrame = r.End
	v.hasEnd = r.HasEnd

	v.baseRatio = v.computePitchRatio(r, key, velocity)
	v.pitchRatio = v.baseRatio

	v.ampEnv.Configure(modgen.EnvelopeParams{
		Delay: r.AmpEG.Delay, Attack: r.AmpEG.Attack, Hold: r.AmpEG.Hold,
		Decay: r.AmpEG.Decay, Sustain: r.AmpEG.Sustain, Release: r.AmpEG.Release,
		Start: r.AmpEG.Start, Shape: modgen.EnvelopeShape(r.AmpEG.Shape),
	})
	v.ampEnv.Trigger()

	v.configureAuxEnvelopes(r.PitchEGs, v.pitchEGs, v.pitchEGDepth)
	v.configureAuxEnvelopes(r.FilterEGs, v.filterEGs, v.filterEGDepth)

	v.rebuildLFOs(r)
	v.rebuildFilters(r)
	v.power.Reset()
	v.oversampler.Reset()
}

// Configure (re)sizes oversampling scratch for blocks of up to maxFrames
// frames. Called from the control thread whenever the host's block size
// changes; RenderBlock itself never grows anything.
func (v *Voice) Configure(maxFrames int) {
	v.oversampler.Prepare(maxFrames)
}

// SetOversampling rebuilds the voice's oversampling cascade for a new
// factor, called from the control thread under the reconfiguration guard.
func (v *Voice) SetOversampling(factor int) {
	v.oversampler = oversample.NewCascade(factor)
}

func (v *Voice) configureAuxEnvelopes(specs map[string]region.EnvelopeSpec, dst map[string]*modgen.Envelope, depth map[string]float64) {
	for k := range dst {
		if _, ok := specs[k]; !ok {
			delete(dst, k)
			delete(depth, k)
		}
	}
	for k, s := range specs {
		e, ok := dst[k]
		if !ok {
			e = modgen.NewEnvelope(v.sampleRate, false)
			dst[k] = e
		}
		e.Configure(modgen.EnvelopeParams{
			Delay: s.Delay, Attack: s.Attack, Hold: s.Hold, Decay: s.Decay,
			Sustain: s.Sustain, Release: s.Release, Start: s.Start,
			Shape: modgen.EnvelopeShape(s.Shape),
		})
		e.Trigger()
		depth[k] = s.Depth
	}
}

func (v *Voice) rebuildLFOs(r *region.Region) {
	if cap(v.lfos) < len(r.LFOs) {
		v.lfos = make([]*modgen.LFO, len(r.LFOs))
	} else {
		v.lfos = v.lfos[:len(r.LFOs)]
	}
	for i, spec := range r.LFOs {
		l := modgen.NewLFO(v.sampleRate)
		if len(spec.Subwaves) == 0 {
			l.AddSub(modgen.LFOWaveform(spec.Waveform), spec.Freq, 1.0)
		} else {
			for _, sw := range spec.Subwaves {
				l.AddSub(modgen.LFOWaveform(sw.Wave), spec.Freq*sw.Ratio, 1.0)
			}
		}
		if spec.Beats > 0 {
			l.SyncToTempo(spec.Beats, 0.5)
		}
		l.Trigger(spec.Fade)
		v.lfos[i] = l
	}
}

func (v *Voice) rebuildFilters(r *region.Region) {
	v.filters = rebuildFilterBank(v.filters, r.Filters, v.sampleRate)
	v.eqs = rebuildFilterBank(v.eqs, r.EQs, v.sampleRate)
}

func rebuildFilterBank(bank []*filter.Stereo, specs []region.FilterSpec, sampleRate float64) []*filter.Stereo {
	if cap(bank) < len(specs) {
		bank = make([]*filter.Stereo, len(specs))
	} else {
		bank = bank[:len(specs)]
	}
	for i, s := range specs {
		p := filter.Params{Type: s.Type, Cutoff: s.Cutoff, Q: s.Resonance, GainDB: s.GainDB}
		if bank[i] == nil {
			bank[i] = filter.NewStereo(sampleRate, p)
		} else {
			bank[i].SetParams(p)
		}
	}
	return bank
}

// computePitchRatio resolves the playback speed for this trigger: keycenter
// offset via the tuning table, key/velocity tracking, transpose, and coarse
// + fine tune, all in ratio space so pitch EG/LFO modulation later is a
// simple multiply.
func (v *Voice) computePitchRatio(r *region.Region, key int, velocity float64) float64 {
	keycenterHz := v.tuning.Frequency(r.PitchKeycenter)
	playedKey := key + r.Transpose
	keyHz := v.tuning.Frequency(playedKey)
	ratio := keyHz / keycenterHz

	if r.PitchKeytrack != 100 {
		semis := float64(playedKey-r.PitchKeycenter) * (r.PitchKeytrack/100 - 1)
		ratio *= math.Pow(2, semis/12)
	}
	if r.PitchVeltrack != 0 {
		ratio *= math.Pow(2, (r.PitchVeltrack/100)*velocity/12)
	}
	ratio *= math.Pow(2, r.TuneCents/1200)
	return ratio
}

// Release begins the amp EG's release stage; playback continues until the
// envelope idles (StatePlaying -> StateReleasing -> idle on the next
// RenderBlock after the envelope reaches silence).
func (v *Voice) Release() {
	if v.state != StatePlaying {
		return
	}
	v.state = StateReleasing
	v.ampEnv.Release()
	for _, e := range v.pitchEGs {
		e.Release()
	}
	for _, e := range v.filterEGs {
		e.Release()
	}
}

// Steal force-releases the voice with a capped ramp (min(release, 10ms))
// regardless of the region's own release time, so the pool can reuse the
// slot promptly without an audible cut.
func (v *Voice) Steal() {
	if v.state == StateIdle {
		return
	}
	v.state = StateStealing
	v.forcedRelease = true
	cap := forcedReleaseCapSeconds
	v.ampEnv.Configure(modgen.EnvelopeParams{Release: math.Min(v.ampEnv.ReleaseTime(), cap), Sustain: 1, Start: 1})
	v.ampEnv.Release()
}

// reclaim returns the voice to the idle state and releases its file
// references. Called once RenderBlock observes the amp envelope has
// idled.
func (v *Voice) reclaim(pool *filepool.Pool) {
	v.ReleaseSampleRefs(pool)
	v.state = StateIdle
	v.region = nil
	v.preload = nil
	v.stream = nil
	v.streamPrimed = false
}

// ReleaseSampleRefs drops this voice's preload reference and resets its
// streaming ring without otherwise touching lifecycle state. Exported for
// the voice pool: a voice chosen as a steal victim is about to be
// overwritten by Trigger on the very same RenderBlock's note-on, never
// reaching reclaim's own idle transition, so the pool calls this first to
// avoid leaking the outgoing sample's reference count.
func (v *Voice) ReleaseSampleRefs(pool *filepool.Pool) {
	if v.preload != nil {
		v.preload.Release()
		pool.NotifyReleased(v.preload.Path, v.region.Offset)
	}
	if v.stream != nil {
		v.stream.Reset()
	}
}
