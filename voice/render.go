package voice

import (
	"math"
	"strings"

	"github.com/rtsampler/sfzcore/buffer"
	"github.com/rtsampler/sfzcore/curve"
	"github.com/rtsampler/sfzcore/filepool"
	"github.com/rtsampler/sfzcore/filter"
	"github.com/rtsampler/sfzcore/midi"
	"github.com/rtsampler/sfzcore/region"
	"github.com/rtsampler/sfzcore/simd"
)

// RenderBlock fills out (a 2-channel AudioSpan owned by this voice, never
// retained past this call) with this voice's contribution to the block,
// advancing every piece of per-voice state: playhead, envelopes, LFOs,
// filters, and the amp/pan/width/position mixdown. It never allocates. A
// voice that reaches silence during the block (amp EG idles after release,
// or the sample's natural end is reached) reclaims itself back to the pool
// before returning.
func (v *Voice) RenderBlock(out buffer.AudioSpan, state *midi.State, pool *filepool.Pool) {
	l, r := out.Channel(0), out.Channel(1)
	frames := out.FrameCount()

	if v.state == StateIdle || v.region == nil {
		simd.Fill(l[:frames], 0)
		simd.Fill(r[:frames], 0)
		return
	}

	reg := v.region
	v.beginBlockFilters(state)

	staticGain := dbToLinear(reg.VolumeDB) * (reg.AmplitudePct / 100) * velocityGain(reg, v.triggerVelocity) * ccGain(reg.AmpCCMod, state)
	panBase := reg.Pan/100 + ccGain(reg.PanCCMod, state) - 1 // ccGain centers on 1; fold back to an additive offset
	widthFrac := reg.Width / 100
	panModulated := regionHasPanLFO(reg)

	for i := 0; i < frames; i++ {
		v.ageSamples++

		pitchCents, ampLFO, panLFO := v.advanceLFOs()
		for k, e := range v.pitchEGs {
			pitchCents += e.Advance() * v.pitchEGDepth[k]
		}
		pitchCents += bendCents(state.PitchBend(), reg)
		ratio := v.baseRatio * math.Pow(2, pitchCents/1200)
		v.pitchRatio = ratio

		sL, sR, ok := v.readInterpolated(v.sourcePos)
		if !ok {
			sL, sR = 0, 0
		}
		v.advancePlayhead(ratio)

		for _, f := range v.filters {
			sL, sR = f.ProcessFrame(sL, sR)
		}
		for _, f := range v.eqs {
			sL, sR = f.ProcessFrame(sL, sR)
		}

		v.ampEnv.Advance()
		gain := staticGain * v.ampEnv.Value() * (1 + ampLFO)
		dryL, dryR := sL*gain, sR*gain
		v.power.Push((dryL + dryR) / 2)

		// Pan only varies sample-to-sample when an LFO routes to it; that's
		// the uncommon case, so the per-sample path stays exact here and the
		// common case is hoisted to a block-level simd pass below instead of
		// paying the pan/width math on every sample for nothing.
		if panModulated {
			mL, mR := applyPanWidth(dryL, dryR, panBase+panLFO, widthFrac)
			l[i] = float32(mL)
			r[i] = float32(mR)
		} else {
			l[i] = float32(dryL)
			r[i] = float32(dryR)
		}

		if v.needsRelease() {
			v.Release()
		}
	}

	if !panModulated {
		applyPanWidthBlock(l[:frames], r[:frames], panBase, widthFrac)
	}

	if v.state != StateIdle && v.state != StatePlaying && v.ampEnv.IsIdle() {
		v.reclaim(pool)
	}
}

// regionHasPanLFO reports whether any of the region's LFOs route to the pan
// destination; if none do, panLFO is always zero and the pan/width mixdown
// can run once per block instead of once per sample.
func regionHasPanLFO(reg *region.Region) bool {
	for _, spec := range reg.LFOs {
		for _, t := range spec.Targets {
			if t.Destination == "pan" {
				return true
			}
		}
	}
	return false
}

// needsRelease reports whether the playhead has just reached the sample's
// natural end while the voice is still in a state where reaching the end
// means "stop", triggering the amp EG's release stage exactly once so the
// tail fades per the region's own release time instead of clicking off.
func (v *Voice) needsRelease() bool {
	if v.atNaturalEnd && v.state == StatePlaying {
		return true
	}
	return false
}

// advanceLFOs steps every configured LFO once and routes its output to the
// targets the region named, returning the summed pitch (cents), amplitude
// (linear fractional offset), and pan (fractional offset) contributions.
// Filter-cutoff-targeted LFOs only mark filter 0 as modulated (per-sample
// coefficient recompute); their value is not added to the cutoff, so they
// do not move it.
func (v *Voice) advanceLFOs() (pitchCents, ampFrac, panFrac float64) {
	specs := v.region.LFOs
	for i, l := range v.lfos {
		val := l.Advance()
		if i >= len(specs) {
			continue
		}
		for _, t := range specs[i].Targets {
			switch {
			case t.Destination == "pitch":
				pitchCents += val * t.Depth
			case t.Destination == "volume" || t.Destination == "amplitude":
				ampFrac += val * t.Depth
			case t.Destination == "pan":
				panFrac += val * t.Depth
			case strings.Contains(t.Destination, "cutoff") || strings.Contains(t.Destination, "filter"):
				// A cutoff-targeted LFO only marks filter 0 as modulated, so
				// its coefficients are recomputed every sample; val itself is
				// not applied to the cutoff.
				if len(v.filters) > 0 {
					v.filters[0].SetModulated(true)
				}
			}
		}
	}
	return
}

// beginBlockFilters recomputes each filter/EQ's coefficients once for the
// upcoming block from its region-configured CC modulation, per spec.md's
// "once per block unless sample-rate modulated" rule for cutoff/Q.
func (v *Voice) beginBlockFilters(state *midi.State) {
	// Filter EGs land on filter slot 0's cutoff only, at block granularity —
	// the same approximation applied to LFO cutoff targets above, since an
	// SFZ filter_eg destination doesn't carry a filter index of its own.
	var filterEGHz float64
	for k, e := range v.filterEGs {
		filterEGHz += e.Advance() * v.filterEGDepth[k]
	}

	specs := v.region.Filters
	for i, f := range v.filters {
		if i >= len(specs) {
			break
		}
		s := specs[i]
		cutoff := s.Cutoff + ccSum(s.CCMod, state)
		if i == 0 {
			cutoff += filterEGHz
		}
		q := s.Resonance + ccSum(s.ResonanceCCMod, state)
		f.SetParams(filterParamsFor(s, cutoff, q))
		f.BeginBlock()
	}
	for i, f := range v.eqs {
		if i >= len(v.region.EQs) {
			break
		}
		f.BeginBlock()
	}
}

// readInterpolated resolves the logical sample frame at the fractional
// position pos via linear interpolation between its floor and ceiling
// frames, pulling from the preloaded head or the streaming tail as
// appropriate.
func (v *Voice) readInterpolated(pos float64) (l, r float64, ok bool) {
	idx := uint64(math.Floor(pos))
	frac := pos - float64(idx)
	l0, r0, ok0 := v.frameAt(idx)
	if !ok0 {
		return 0, 0, false
	}
	l1, r1, ok1 := v.frameAt(idx + 1)
	if !ok1 {
		l1, r1 = l0, r0
	}
	return l0 + (l1-l0)*frac, r0 + (r1-r0)*frac, true
}

// frameAt resolves one integer-indexed frame of the logical (preload +
// streamed tail) sample, addressed in absolute file-frame space. Indices
// within the preloaded head are randomly addressable once translated back
// to an offset into PreloadedHead (which starts at preloadBase, not frame
// 0); indices past it are only ever visited in increasing order (the audio
// thread never seeks backward into the streaming ring), so the streaming
// side is a two-frame forward cursor rather than a general random-access
// reader.
func (v *Voice) frameAt(idx uint64) (l, r float64, ok bool) {
	ch := 2
	if v.preload != nil && v.preload.Channels > 0 {
		ch = v.preload.Channels
	}
	if idx < v.preloadBase {
		return 0, 0, false
	}
	rel := idx - v.preloadBase
	preloadFrames := uint64(0)
	if v.preload != nil {
		preloadFrames = uint64(len(v.preload.PreloadedHead)) / uint64(ch)
	}
	if rel < preloadFrames {
		base := rel * uint64(ch)
		if ch == 1 {
			x := float64(v.preload.PreloadedHead[base])
			return x, x, true
		}
		return float64(v.preload.PreloadedHead[base]), float64(v.preload.PreloadedHead[base+1]), true
	}
	return v.streamFrameAt(idx, ch)
}

func (v *Voice) streamFrameAt(idx uint64, channels int) (l, r float64, ok bool) {
	if v.stream == nil {
		return 0, 0, false
	}
	if !v.streamPrimed {
		if !v.readOneStreamFrame(channels) {
			return 0, 0, false
		}
		v.streamIdx = idx
		v.streamPrevL, v.streamPrevR = v.streamCurL, v.streamCurR
		v.streamPrimed = true
	}
	for v.streamIdx < idx {
		v.streamPrevL, v.streamPrevR = v.streamCurL, v.streamCurR
		if !v.readOneStreamFrame(channels) {
			return 0, 0, false
		}
		v.streamIdx++
	}
	if idx == v.streamIdx {
		return v.streamCurL, v.streamCurR, true
	}
	if idx+1 == v.streamIdx {
		return v.streamPrevL, v.streamPrevR, true
	}
	return 0, 0, false
}

// readOneStreamFrame pulls the next frame from the SPSC ring into the
// current cursor slot; an empty ring (loader hasn't caught up, or the
// stream is genuinely exhausted) is a buffer underrun, reported to the
// caller as a failed read so the voice falls silent for the deficit rather
// than blocking.
func (v *Voice) readOneStreamFrame(channels int) bool {
	n := v.stream.Read(v.streamReadBuf[:channels])
	if n == 0 {
		return false
	}
	if channels == 1 {
		v.streamCurL = float64(v.streamReadBuf[0])
		v.streamCurR = v.streamCurL
		return true
	}
	v.streamCurL = float64(v.streamReadBuf[0])
	v.streamCurR = float64(v.streamReadBuf[1])
	return true
}

// advancePlayhead steps sourcePos by ratio and applies this region's loop
// mode: loop_continuous always wraps at loop_end, loop_sustain wraps only
// until release, no_loop/one_shot never wrap and instead mark the voice at
// its natural end once the playhead passes sample_end.
func (v *Voice) advancePlayhead(ratio float64) {
	v.sourcePos += ratio
	if v.hasLoop && v.loopEnd > v.loopBegin {
		wrapping := v.region.LoopMode == region.LoopContinuous ||
			(v.region.LoopMode == region.LoopSustain && v.state == StatePlaying)
		if wrapping && v.sourcePos >= float64(v.loopEnd) {
			length := float64(v.loopEnd - v.loopBegin)
			for v.sourcePos >= float64(v.loopEnd) {
				v.sourcePos -= length
			}
			return
		}
	}
	if v.sourcePos >= float64(v.effectiveEnd()) {
		v.atNaturalEnd = true
	}
}

// effectiveEnd resolves the logical sample_end frame: the region's explicit
// `end` opcode if set, otherwise the decoder-reported total frame count.
func (v *Voice) effectiveEnd() uint64 {
	if v.hasEnd {
		return v.endFrame
	}
	if v.totalFrames > 0 {
		return v.totalFrames
	}
	if v.preload != nil && v.preload.Channels > 0 {
		return uint64(len(v.preload.PreloadedHead)) / uint64(v.preload.Channels)
	}
	return 0
}

func dbToLinear(db float64) float64 { return math.Pow(10, db/20) }

// velocityGain resolves the region's amplitude response to trigger
// velocity: the piecewise-linear velocity_points table if the region
// defines one, otherwise the standard SFZ amp_veltrack law (full tracking
// is a velocity^2 response, zero tracking is unity gain at every velocity).
func velocityGain(r *region.Region, vel float64) float64 {
	if len(r.VelocityPoints) >= 2 {
		v := vel * 127
		pts := r.VelocityPoints
		if v <= float64(pts[0].Velocity) {
			return pts[0].Gain
		}
		for i := 1; i < len(pts); i++ {
			if v <= float64(pts[i].Velocity) {
				lo, hi := pts[i-1], pts[i]
				span := float64(hi.Velocity - lo.Velocity)
				if span <= 0 {
					return hi.Gain
				}
				t := (v - float64(lo.Velocity)) / span
				return lo.Gain + t*(hi.Gain-lo.Gain)
			}
		}
		return pts[len(pts)-1].Gain
	}
	track := r.AmpVeltrack / 100
	return (1 - track) + track*vel*vel
}

// bendCents resolves the current pitch-wheel position to a cents offset
// using the region's asymmetric bend_up/bend_down range.
func bendCents(bend float32, r *region.Region) float64 {
	if bend >= 0 {
		return float64(bend) * r.BendUp
	}
	return float64(bend) * r.BendDown
}

// ccGain evaluates a list of amp/pan CC modulators against live MIDI state
// and folds them into a single multiplicative gain centered at 1 (e.g. two
// CCs each contributing +0.1 yield 1.2, matching spec's "CC_modulations"
// multiplicative amp term).
func ccGain(mods []region.CCModulator, state *midi.State) float64 {
	gain := 1.0
	for _, m := range mods {
		c := curve.Predefined(m.Curve)
		val := float64(c.EvalNormalized(state.CCValue(m.CC)))
		gain += val * m.Depth
	}
	return gain
}

// ccSum evaluates a list of filter CC modulators and returns their summed
// additive contribution (to cutoff Hz or Q), unlike ccGain's multiplicative
// amp convention.
func ccSum(mods []region.CCModulator, state *midi.State) float64 {
	sum := 0.0
	for _, m := range mods {
		c := curve.Predefined(m.Curve)
		val := float64(c.EvalNormalized(state.CCValue(m.CC)))
		sum += val * m.Depth
	}
	return sum
}

func filterParamsFor(s region.FilterSpec, cutoff, q float64) filter.Params {
	return filter.Params{Type: s.Type, Cutoff: cutoff, Q: q, GainDB: s.GainDB}
}

// applyPanWidth applies equal-power panning followed by a mid/side width
// rotation to one stereo frame.
func applyPanWidth(l, r, pan, width float64) (float64, float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) / 2 * (math.Pi / 2)
	gL, gR := math.Cos(angle), math.Sin(angle)
	l, r = l*gL*math.Sqrt2, r*gR*math.Sqrt2

	mid := (l + r) / 2
	side := (l - r) / 2 * width
	return mid + side, mid - side
}

// applyPanWidthBlock applies the same equal-power balance + mid/side width
// transform as applyPanWidth, but as a single block-level pass through the
// simd kernels instead of per-sample — valid whenever pan has no per-sample
// LFO contribution this block (the common case: most regions don't route an
// LFO to pan), since panBase and widthFrac are already constant across a
// block on their own.
func applyPanWidthBlock(l, r []float32, pan, width float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) / 2 * (math.Pi / 2)
	gL := float32(math.Cos(angle) * math.Sqrt2)
	gR := float32(math.Sin(angle) * math.Sqrt2)
	simd.ApplyGain(l, gL)
	simd.ApplyGain(r, gR)
	simd.Width(l, r, float32(width))
}
