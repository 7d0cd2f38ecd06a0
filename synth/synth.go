// Package synth ties the region index, voice pool, and per-voice rendering
// pipeline into the orchestration layer a host actually calls: load an SFZ
// file, dispatch MIDI events, render blocks. It owns the concurrency
// discipline described by spec.md §5 — the audio thread drives event
// dispatch and RenderBlock, the control thread reconfigures through the
// guard.Pair handshake, the loader thread's work happens inside filepool.
package synth

import (
	"context"
	"math/rand"
	"os"

	"github.com/charmbracelet/log"

	"github.com/rtsampler/sfzcore/buffer"
	"github.com/rtsampler/sfzcore/filepool"
	"github.com/rtsampler/sfzcore/guard"
	"github.com/rtsampler/sfzcore/midi"
	"github.com/rtsampler/sfzcore/region"
	"github.com/rtsampler/sfzcore/sfzerr"
	"github.com/rtsampler/sfzcore/tuning"
	"github.com/rtsampler/sfzcore/voice"
)

// Config bounds the reconfigurable quantities in §4.12.
const (
	DefaultNumVoices    = 64
	MinNumVoices        = 1
	MaxNumVoices        = 512
	DefaultOversampling = 1
	MaxOversampling     = 128
	streamRingFrames    = 16384
)

// Synth is the orchestration root: region index, voice pool, MIDI state,
// and the sample cache/streamer, reconfigurable from the control thread and
// driven from the audio thread.
type Synth struct {
	guard *guard.Pair

	logger *log.Logger

	sampleRate      float64
	samplesPerBlock int
	numVoices       int
	oversampling    int
	masterVolume    float64

	tuningTable *tuning.Table
	pool        *filepool.Pool
	midiState   *midi.State
	rng         *rand.Rand

	voices    []*voice.Voice
	voiceJobs []*filepool.StreamJob

	regions        []*region.Region
	noteActivation [128][]*region.Region
	ccActivation   [128][]*region.Region
	offByIndex     map[uint32][]*region.Region
	unknownOpcodes map[string]struct{}

	lastHeldKey int
	prevCCRaw   [128]float32

	mixScratchL, mixScratchR []float32
}

// New returns a Synth at default configuration: 44.1kHz, 512-frame blocks,
// 64 voices, no oversampling, unity master volume.
func New() *Synth {
	s := &Synth{
		guard:           guard.NewPair(),
		logger:          log.New(os.Stderr),
		sampleRate:      44100,
		samplesPerBlock: 512,
		numVoices:       DefaultNumVoices,
		oversampling:    DefaultOversampling,
		masterVolume:    1.0,
		tuningTable:     tuning.NewTable(),
		pool:            filepool.NewPool(128),
		midiState:       midi.NewState(),
		rng:             rand.New(rand.NewSource(1)),
		offByIndex:      map[uint32][]*region.Region{},
		unknownOpcodes:  map[string]struct{}{},
	}
	s.logger.SetLevel(log.WarnLevel)
	s.rebuildVoicePool()
	s.resizeScratch()
	return s
}

// SetLogger installs a diagnostic logger (load warnings, dropped notes);
// callers that don't care can leave the default in place.
func (s *Synth) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

func (s *Synth) rebuildVoicePool() {
	s.voices = make([]*voice.Voice, s.numVoices)
	s.voiceJobs = make([]*filepool.StreamJob, s.numVoices)
	for i := range s.voices {
		v := voice.New(s.sampleRate, s.tuningTable, s.oversampling)
		v.Configure(s.samplesPerBlock)
		s.voices[i] = v
	}
}

func (s *Synth) resizeScratch() {
	s.mixScratchL = make([]float32, s.samplesPerBlock)
	s.mixScratchR = make([]float32, s.samplesPerBlock)
}

// LoadSFZFile clears existing state, parses path, and rebuilds the region
// index, serialized against the audio thread via the guard handshake. The
// returned LoadResult follows §7's taxonomy exactly.
func (s *Synth) LoadSFZFile(path string) sfzerr.LoadResult {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("sfz load failed", "path", path, "err", err)
		return sfzerr.LoadNotFound
	}

	doc, perr := parseSFZText(string(data))
	if perr != nil {
		s.logger.Warn("sfz parse failed", "path", path, "err", perr)
		return sfzerr.LoadParseError
	}
	if len(doc.Regions) == 0 {
		s.logger.Warn("sfz file has no regions", "path", path)
		return sfzerr.LoadEmptyInstrument
	}

	release, result := s.guard.Disable()
	defer release()
	if result.Waited > guard.SpinWaitWarnThreshold {
		s.logger.Warn("control thread waited unusually long to reconfigure", "waited", result.Waited)
	}

	s.cancelAllStreamJobs()
	s.regions = doc.Regions
	s.unknownOpcodes = doc.UnknownOpcodes
	s.buildIndex()
	s.rebuildVoicePool()
	return sfzerr.LoadOK
}

// SetSampleRate reconfigures every voice and the tuning-derived playback
// ratios for a new output sample rate. Invalid rates are rejected with no
// state change, per the ConfigError taxonomy.
func (s *Synth) SetSampleRate(rate float64) error {
	if rate <= 0 {
		return sfzerr.New(sfzerr.KindConfig, "sample rate must be positive")
	}
	release, _ := s.guard.Disable()
	defer release()
	s.sampleRate = rate
	s.rebuildVoicePool()
	return nil
}

// SetSamplesPerBlock resizes every voice's oversampling scratch and the
// synth's own mixdown scratch for the host's new block size.
func (s *Synth) SetSamplesPerBlock(n int) error {
	if n <= 0 {
		return sfzerr.New(sfzerr.KindConfig, "samples per block must be positive")
	}
	release, _ := s.guard.Disable()
	defer release()
	s.samplesPerBlock = n
	for _, v := range s.voices {
		v.Configure(n)
	}
	s.resizeScratch()
	return nil
}

// SetNumVoices resizes the voice pool. A count outside [MinNumVoices,
// MaxNumVoices] is rejected with a KindConfig error and no state change.
// Any voice currently playing is cut; this is a hard reconfiguration, not a
// graceful resize.
func (s *Synth) SetNumVoices(n int) error {
	if n < MinNumVoices || n > MaxNumVoices {
		return sfzerr.New(sfzerr.KindConfig, "voice count out of range")
	}
	release, _ := s.guard.Disable()
	defer release()
	s.numVoices = n
	s.cancelAllStreamJobs()
	s.rebuildVoicePool()
	return nil
}

// SetOversampling rebuilds every voice's oversampling cascade for a new
// factor. A factor outside [1, MaxOversampling] is rejected with a
// KindConfig error and no state change.
func (s *Synth) SetOversampling(factor int) error {
	if factor < 1 || factor > MaxOversampling {
		return sfzerr.New(sfzerr.KindConfig, "oversampling factor out of range")
	}
	release, _ := s.guard.Disable()
	defer release()
	s.oversampling = factor
	for _, v := range s.voices {
		v.SetOversampling(factor)
		v.Configure(s.samplesPerBlock)
	}
	return nil
}

// SetPreloadSize changes the frame count decoded into new preload cache
// entries; already-cached entries are unaffected until reloaded.
func (s *Synth) SetPreloadSize(n int) error {
	release, _ := s.guard.Disable()
	defer release()
	s.pool.SetPreloadSize(n)
	return nil
}

// SetMasterVolume sets the linear gain applied to the mixed output in
// RenderBlock.
func (s *Synth) SetMasterVolume(gain float64) { s.masterVolume = gain }

func (s *Synth) cancelAllStreamJobs() {
	for i, j := range s.voiceJobs {
		if j != nil {
			j.Cancel()
			s.voiceJobs[i] = nil
		}
	}
}

func (s *Synth) buildIndex() {
	for i := range s.noteActivation {
		s.noteActivation[i] = nil
	}
	for i := range s.ccActivation {
		s.ccActivation[i] = nil
	}
	s.offByIndex = map[uint32][]*region.Region{}

	for _, r := range s.regions {
		for k := r.KeyRange.Lo; k <= r.KeyRange.Hi; k++ {
			if k >= 0 && k < 128 {
				s.noteActivation[k] = append(s.noteActivation[k], r)
			}
		}
		if r.HasKeyswitch {
			for k := r.KeyswitchRange.Lo; k <= r.KeyswitchRange.Hi; k++ {
				if k >= 0 && k < 128 {
					s.noteActivation[k] = append(s.noteActivation[k], r)
				}
			}
		}
		for _, cond := range r.CCConditions {
			if cond.CC >= 0 && cond.CC < 128 {
				s.ccActivation[cond.CC] = append(s.ccActivation[cond.CC], r)
			}
		}
		if r.HasOffBy {
			s.offByIndex[r.OffBy] = append(s.offByIndex[r.OffBy], r)
		}
	}
}

// GetUnknownOpcodes reports the opcode names the last load recognized as
// syntactically valid but semantically unhandled.
func (s *Synth) GetUnknownOpcodes() []string {
	out := make([]string, 0, len(s.unknownOpcodes))
	for k := range s.unknownOpcodes {
		out = append(out, k)
	}
	return out
}

// GetNumRegions reports how many regions the loaded instrument defines.
func (s *Synth) GetNumRegions() int { return len(s.regions) }

// GetNumActiveVoices reports how many voice slots are currently non-idle.
func (s *Synth) GetNumActiveVoices() int {
	n := 0
	for _, v := range s.voices {
		if v.IsActive() {
			n++
		}
	}
	return n
}

// GetNumPreloadedSamples reports how many distinct (path, offset) entries
// are currently cached.
func (s *Synth) GetNumPreloadedSamples() int { return s.pool.CacheSize() }

// GetNumBuffers and GetNumBytes surface buffer.LiveBuffers/LiveBytes, the
// allocation leak-detection counters the rendering path is built on.
func (s *Synth) GetNumBuffers() int64 { return buffer.LiveBuffers() }
func (s *Synth) GetNumBytes() int64   { return buffer.LiveBytes() }

// regionMatches evaluates every predicate beyond the coarse index lookup:
// key/velocity/channel range, keyswitch, random draw, and live CC
// conditions.
func (s *Synth) regionMatches(r *region.Region, channel, key, velocity127 int, randomDraw float64) bool {
	if !r.MatchesNote(key, velocity127, channel) {
		return false
	}
	if r.HasKeyswitch && !r.KeyswitchRange.Contains(s.lastHeldKey) {
		return false
	}
	if randomDraw < r.RandomRange[0] || randomDraw >= r.RandomRange[1] {
		return false
	}
	for _, cond := range r.CCConditions {
		v := int(s.midiState.CCValue(cond.CC)*127 + 0.5)
		if !cond.Range.Contains(v) {
			return false
		}
	}
	return true
}

// NoteOn dispatches a note-on: updates MidiState, matches the region
// index's attack/first/legato-triggered regions, and starts a voice for
// each survivor via the pool's find-free-voice algorithm.
func (s *Synth) NoteOn(channel, key int, velocity float32, sampleOffset int) {
	if velocity == 0 {
		// Running-status MIDI keyboards send note-off as note-on vel 0;
		// treat it as one rather than spawning a silent voice that never
		// releases the key it's shadowing.
		s.NoteOff(channel, key, sampleOffset)
		return
	}
	if key < 0 || key >= 128 {
		return
	}
	anyHeld := s.anyKeyHeld()
	s.midiState.NoteOn(key, velocity, sampleOffset)
	s.lastHeldKey = key

	randomDraw := s.rng.Float64()
	velocity127 := int(velocity*127 + 0.5)
	for _, r := range s.noteActivation[key] {
		switch r.TriggerMode {
		case region.TriggerRelease:
			continue
		case region.TriggerFirst:
			if anyHeld {
				continue
			}
		case region.TriggerLegato:
			if !anyHeld {
				continue
			}
		}
		if !s.regionMatches(r, channel, key, velocity127, randomDraw) {
			continue
		}
		s.triggerRegion(r, channel, key, float64(velocity), randomDraw)
	}
}

// NoteOff dispatches a note-off: releases every voice started by this
// (channel, key) pair — except one_shot voices, which spec.md's loop-mode
// rules say must ignore note-off entirely — then triggers any
// release-triggered regions using the preserved on-velocity.
func (s *Synth) NoteOff(channel, key int, sampleOffset int) {
	if key < 0 || key >= 128 {
		return
	}
	releaseVelocity := s.midiState.Velocity(key)
	s.midiState.NoteOff(key, sampleOffset)

	for _, v := range s.voices {
		if v.IsIdle() || v.TriggerChannel() != channel || v.TriggerKey() != key {
			continue
		}
		if v.Region() != nil && v.Region().LoopMode == region.LoopOneShot {
			continue
		}
		v.Release()
	}

	randomDraw := s.rng.Float64()
	velocity127 := int(releaseVelocity*127 + 0.5)
	for _, r := range s.noteActivation[key] {
		if r.TriggerMode != region.TriggerRelease {
			continue
		}
		if !s.regionMatches(r, channel, key, velocity127, randomDraw) {
			continue
		}
		s.triggerRegion(r, channel, key, float64(releaseVelocity), randomDraw)
	}
}

// CC dispatches a controller change: updates MidiState (consulted by every
// active voice's per-block modulation) and, for any region whose
// cc_conditions range the value just crossed into, triggers it the same way
// a note-on would (a simplification of "on_cc"-style CC-activated regions,
// using the most recently held key as the trigger key; recorded in
// DESIGN.md).
func (s *Synth) CC(channel, num int, value float32, sampleOffset int) {
	if num < 0 || num >= 128 {
		return
	}
	prev := s.prevCCRaw[num]
	s.midiState.CCAt(num, value, sampleOffset)
	cur := s.midiState.CCValue(num)
	s.prevCCRaw[num] = cur

	randomDraw := s.rng.Float64()
	for _, r := range s.ccActivation[num] {
		for _, cond := range r.CCConditions {
			if cond.CC != num {
				continue
			}
			prevIn := cond.Range.Contains(int(prev*127 + 0.5))
			curIn := cond.Range.Contains(int(cur*127 + 0.5))
			if !curIn || prevIn {
				continue
			}
			if !s.regionMatches(r, channel, s.lastHeldKey, 127, randomDraw) {
				continue
			}
			s.triggerRegion(r, channel, s.lastHeldKey, 1.0, randomDraw)
		}
	}
}

// PitchWheel, Aftertouch, and Tempo forward directly to MidiState; they
// carry no trigger semantics of their own.
func (s *Synth) PitchWheel(v float32)                { s.midiState.PitchWheel(v) }
func (s *Synth) ChannelAftertouch(v float32)          { s.midiState.ChannelAftertouch(v) }
func (s *Synth) PolyAftertouch(key int, v float32)    { s.midiState.PolyAftertouch(key, v) }
func (s *Synth) Tempo(secondsPerBeat float64)         { s.midiState.Tempo(secondsPerBeat) }

// anyKeyHeld reports whether any key is currently down, the predicate
// trigger=first/legato regions gate on.
func (s *Synth) anyKeyHeld() bool {
	for k := 0; k < 128; k++ {
		if s.midiState.IsNoteOn(k) {
			return true
		}
	}
	return false
}

// triggerRegion finds a free (or stealable) voice for r and starts it,
// choking any region listening for r's group via off_by.
func (s *Synth) triggerRegion(r *region.Region, channel, key int, velocity, randomDraw float64) {
	idx := s.findFreeVoice()
	if idx < 0 {
		s.logger.Debug("note dropped: no stealable voice", "sample", r.SamplePath, "key", key)
		return
	}
	s.triggerVoice(idx, r, channel, key, velocity, randomDraw)
	s.chokeGroup(r.Group, s.voices[idx])
}

// findFreeVoice implements spec.md §4.8's find_free_voice exactly: an idle
// voice first, else the two-key steal-priority candidate (lowest mean
// square, ties broken by furthest source position) among voices that
// CanBeStolen, committed only if that candidate's level is already below
// the steal floor. Returns -1 if no voice qualifies.
func (s *Synth) findFreeVoice() int {
	for i, v := range s.voices {
		if v.IsIdle() {
			return i
		}
	}
	best := -1
	for i, v := range s.voices {
		if !v.CanBeStolen() {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		bv := s.voices[best]
		switch {
		case v.MeanSquare() < bv.MeanSquare():
			best = i
		case v.MeanSquare() == bv.MeanSquare() && v.SourcePosition() > bv.SourcePosition():
			best = i
		}
	}
	if best < 0 || s.voices[best].MeanSquare() > voice.StealFloorLinear {
		return -1
	}
	return best
}

// triggerVoice starts voice index idx on region r, first releasing
// whatever sample the voice previously held (a stolen voice is reused
// immediately, never passing through reclaim's own idle transition).
func (s *Synth) triggerVoice(idx int, r *region.Region, channel, key int, velocity, randomDraw float64) {
	v := s.voices[idx]
	if v.Region() != nil {
		v.ReleaseSampleRefs(s.pool)
	}
	if s.voiceJobs[idx] != nil {
		s.voiceJobs[idx].Cancel()
		s.voiceJobs[idx] = nil
	}

	preload, stream, ticket, job := s.acquireSample(r)
	if preload == nil {
		v.Steal() // already released; force the now-unmoored voice toward idle
		return
	}
	v.Trigger(r, preload, stream, ticket, channel, key, velocity, randomDraw)
	s.voiceJobs[idx] = job
}

// acquireSample preloads r's sample and, if the whole file didn't fit in
// the preloaded head, submits a background streaming job for the tail
// starting exactly where the preload left off.
func (s *Synth) acquireSample(r *region.Region) (*filepool.FileInformation, *filepool.Ring, filepool.Ticket, *filepool.StreamJob) {
	preload, err := s.pool.Preload(r.SamplePath, r.Offset)
	if err != nil {
		s.logger.Warn("sample preload failed", "path", r.SamplePath, "err", err)
		return nil, nil, 0, nil
	}

	preloadFrames := uint64(0)
	if preload.Channels > 0 {
		preloadFrames = uint64(len(preload.PreloadedHead)) / uint64(preload.Channels)
	}
	coveredToFrame := r.Offset + preloadFrames
	if preload.TotalFrames == 0 || coveredToFrame >= preload.TotalFrames {
		return preload, nil, 0, nil
	}

	ring := filepool.NewRing(streamRingFrames, preload.Channels)
	ticket := s.pool.NewTicket()
	job := &filepool.StreamJob{
		Ticket:     ticket,
		Path:       r.SamplePath,
		StartFrame: coveredToFrame,
		Ring:       ring,
	}
	s.pool.Submit(context.Background(), job)
	return preload, ring, ticket, job
}

// chokeGroup force-releases every currently active voice whose region
// listens for group via off_by, per spec.md's group/off_by choke semantics
// (e.g. a closed hi-hat cutting off the open hi-hat's tail).
func (s *Synth) chokeGroup(group uint32, except *voice.Voice) {
	victims := s.offByIndex[group]
	if len(victims) == 0 {
		return
	}
	for _, v := range s.voices {
		if v == except || v.IsIdle() {
			continue
		}
		reg := v.Region()
		if reg == nil {
			continue
		}
		for _, vr := range victims {
			if vr != reg {
				continue
			}
			if reg.OffMode == region.OffFast {
				v.Steal()
			} else {
				v.Release()
			}
			break
		}
	}
}

// RenderBlock is the audio-thread entry point: mixes every active voice's
// contribution into out and applies master volume. On re-entry while a
// control-thread reconfiguration holds the guard, it fills out with silence
// and returns without touching any voice state.
func (s *Synth) RenderBlock(out buffer.AudioSpan) {
	out.Fill(0)
	if !s.guard.Enter() {
		return
	}
	defer s.guard.Leave()

	frames := out.FrameCount()
	if frames > len(s.mixScratchL) {
		frames = len(s.mixScratchL)
	}
	voiceSpan := buffer.NewAudioSpan(s.mixScratchL[:frames], s.mixScratchR[:frames])

	for i, v := range s.voices {
		if v.IsIdle() {
			s.cancelVoiceJob(i)
			continue
		}
		v.RenderBlock(voiceSpan, s.midiState, s.pool)
		out.Subspan(0, frames).Add(voiceSpan)
		if v.IsIdle() {
			s.cancelVoiceJob(i)
		}
	}

	gain := float32(s.masterVolume)
	if gain != 1 {
		out.ApplyGain(gain)
	}
}

func (s *Synth) cancelVoiceJob(idx int) {
	if s.voiceJobs[idx] != nil {
		s.voiceJobs[idx].Cancel()
		s.voiceJobs[idx] = nil
	}
}
