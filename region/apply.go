package region

import (
	"strconv"

	"github.com/rtsampler/sfzcore/filter"
)

// applyRegionOpcode mutates region in place for one opcode, returning false
// if the opcode name (after family-splitting) isn't recognized — the caller
// records those in UnknownOpcodes rather than failing the load, per
// spec.md's ParseWarning taxonomy.
func applyRegionOpcode(region *Region, o Opcode) bool {
	family, param, indexed := o.Family()
	switch family {
	case "sample":
		region.SamplePath = o.Value
	case "lokey":
		if v, ok := parseInt(o.Value); ok {
			region.KeyRange.Lo = v
		}
	case "hikey":
		if v, ok := parseInt(o.Value); ok {
			region.KeyRange.Hi = v
		}
	case "key":
		if v, ok := parseInt(o.Value); ok {
			region.KeyRange = IntRange{Lo: v, Hi: v}
			region.PitchKeycenter = v
		}
	case "lovel":
		if v, ok := parseInt(o.Value); ok {
			region.VelRange.Lo = v
		}
	case "hivel":
		if v, ok := parseInt(o.Value); ok {
			region.VelRange.Hi = v
		}
	case "lochan":
		if v, ok := parseInt(o.Value); ok {
			region.ChannelRange.Lo = v
		}
	case "hichan":
		if v, ok := parseInt(o.Value); ok {
			region.ChannelRange.Hi = v
		}
	case "sw_lokey":
		region.HasKeyswitch = true
		if v, ok := parseInt(o.Value); ok {
			region.KeyswitchRange.Lo = v
		}
	case "sw_hikey":
		region.HasKeyswitch = true
		if v, ok := parseInt(o.Value); ok {
			region.KeyswitchRange.Hi = v
		}
	case "on_locc":
		if indexed {
			setCCRangeLo(region, param, o.Value)
		}
	case "on_hicc":
		if indexed {
			setCCRangeHi(region, param, o.Value)
		}
	case "trigger":
		region.TriggerMode = parseTriggerMode(o.Value)
	case "lorand":
		if v, ok := parseFloat(o.Value); ok {
			region.RandomRange[0] = v
		}
	case "hirand":
		if v, ok := parseFloat(o.Value); ok {
			region.RandomRange[1] = v
		}
	case "group":
		if v, ok := parseUint(o.Value); ok {
			region.Group = uint32(v)
		}
	case "off_by":
		region.HasOffBy = true
		if v, ok := parseUint(o.Value); ok {
			region.OffBy = uint32(v)
		}
	case "off_mode":
		if o.Value == "fast" {
			region.OffMode = OffFast
		} else {
			region.OffMode = OffNormal
		}
	case "offset":
		if v, ok := parseUint(o.Value); ok {
			region.Offset = v
		}
	case "offset_random":
		if v, ok := parseUint(o.Value); ok {
			region.OffsetRandom = v
		}
	case "end":
		region.HasEnd = true
		if v, ok := parseUint(o.Value); ok {
			region.End = v
		}
	case "loop_start":
		if v, ok := parseUint(o.Value); ok {
			region.LoopBegin = v
		}
	case "loop_end":
		if v, ok := parseUint(o.Value); ok {
			region.LoopEnd = v
		}
	case "loop_mode":
		region.LoopMode = parseLoopMode(o.Value)
	case "count":
		region.HasCount = true
		if v, ok := parseUint(o.Value); ok {
			region.Count = uint32(v)
		}
	case "delay":
		if v, ok := parseFloat(o.Value); ok {
			region.Delay = v
		}
	case "delay_random":
		if v, ok := parseFloat(o.Value); ok {
			region.DelayRandom = v
		}
	case "volume":
		if v, ok := parseFloat(o.Value); ok {
			region.VolumeDB = v
		}
	case "amplitude":
		if v, ok := parseFloat(o.Value); ok {
			region.AmplitudePct = v
		}
	case "amp_veltrack":
		if v, ok := parseFloat(o.Value); ok {
			region.AmpVeltrack = v
		}
	case "pan":
		if v, ok := parseFloat(o.Value); ok {
			region.Pan = v
		}
	case "width":
		if v, ok := parseFloat(o.Value); ok {
			region.Width = v
		}
	case "position":
		if v, ok := parseFloat(o.Value); ok {
			region.Position = v
		}
	case "pitch_keycenter":
		if v, ok := parseInt(o.Value); ok {
			region.PitchKeycenter = v
		}
	case "pitch_keytrack":
		if v, ok := parseFloat(o.Value); ok {
			region.PitchKeytrack = v
		}
	case "pitch_veltrack":
		if v, ok := parseFloat(o.Value); ok {
			region.PitchVeltrack = v
		}
	case "transpose":
		if v, ok := parseInt(o.Value); ok {
			region.Transpose = v
		}
	case "tune":
		if v, ok := parseFloat(o.Value); ok {
			region.TuneCents = v
		}
	case "bend_up":
		if v, ok := parseFloat(o.Value); ok {
			region.BendUp = v
		}
	case "bend_down":
		if v, ok := parseFloat(o.Value); ok {
			region.BendDown = v
		}
	case "bend_step":
		if v, ok := parseFloat(o.Value); ok {
			region.BendStep = v
		}
	case "ampeg_delay":
		if v, ok := parseFloat(o.Value); ok {
			region.AmpEG.Delay = v
		}
	case "ampeg_attack":
		if v, ok := parseFloat(o.Value); ok {
			region.AmpEG.Attack = v
		}
	case "ampeg_hold":
		if v, ok := parseFloat(o.Value); ok {
			region.AmpEG.Hold = v
		}
	case "ampeg_decay":
		if v, ok := parseFloat(o.Value); ok {
			region.AmpEG.Decay = v
		}
	case "ampeg_sustain":
		if v, ok := parseFloat(o.Value); ok {
			region.AmpEG.Sustain = v / 100
		}
	case "ampeg_release":
		if v, ok := parseFloat(o.Value); ok {
			region.AmpEG.Release = v
		}
	case "ampeg_start":
		if v, ok := parseFloat(o.Value); ok {
			region.AmpEG.Start = v / 100
		}
	case "pitcheg_delay":
		applyAuxEGField(region.PitchEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Delay = v
			}
		})
	case "pitcheg_attack":
		applyAuxEGField(region.PitchEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Attack = v
			}
		})
	case "pitcheg_hold":
		applyAuxEGField(region.PitchEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Hold = v
			}
		})
	case "pitcheg_decay":
		applyAuxEGField(region.PitchEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Decay = v
			}
		})
	case "pitcheg_sustain":
		applyAuxEGField(region.PitchEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Sustain = v / 100
			}
		})
	case "pitcheg_release":
		applyAuxEGField(region.PitchEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Release = v
			}
		})
	case "pitcheg_start":
		applyAuxEGField(region.PitchEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Start = v / 100
			}
		})
	case "pitcheg_depth":
		applyAuxEGField(region.PitchEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Depth = v
			}
		})
	case "fileg_delay":
		applyAuxEGField(region.FilterEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Delay = v
			}
		})
	case "fileg_attack":
		applyAuxEGField(region.FilterEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Attack = v
			}
		})
	case "fileg_hold":
		applyAuxEGField(region.FilterEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Hold = v
			}
		})
	case "fileg_decay":
		applyAuxEGField(region.FilterEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Decay = v
			}
		})
	case "fileg_sustain":
		applyAuxEGField(region.FilterEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Sustain = v / 100
			}
		})
	case "fileg_release":
		applyAuxEGField(region.FilterEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Release = v
			}
		})
	case "fileg_start":
		applyAuxEGField(region.FilterEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Start = v / 100
			}
		})
	case "fileg_depth":
		applyAuxEGField(region.FilterEGs, param, func(e *EnvelopeSpec) {
			if v, ok := parseFloat(o.Value); ok {
				e.Depth = v
			}
		})
	case "fil_type", "eq_type":
		applyFilterField(region, family, indexed, param, func(f *FilterSpec) { f.Type = parseFilterType(o.Value) })
	case "cutoff", "eq_freq":
		applyFilterField(region, family, indexed, param, func(f *FilterSpec) {
			if v, ok := parseFloat(o.Value); ok {
				f.Cutoff = v
			}
		})
	case "resonance", "eq_bw":
		applyFilterField(region, family, indexed, param, func(f *FilterSpec) {
			if v, ok := parseFloat(o.Value); ok {
				f.Resonance = v
			}
		})
	case "eq_gain":
		applyFilterField(region, family, indexed, param, func(f *FilterSpec) {
			if v, ok := parseFloat(o.Value); ok {
				f.GainDB = v
			}
		})
	case "lfo_freq":
		ensureLFO(region, param).Freq = mustFloat(o.Value)
	case "lfo_delay":
		ensureLFO(region, param).Delay = mustFloat(o.Value)
	case "lfo_fade":
		ensureLFO(region, param).Fade = mustFloat(o.Value)
	case "lfo_wave":
		ensureLFO(region, param).Waveform = parseLFOWave(o.Value)
	case "lfo_beats":
		ensureLFO(region, param).Beats = mustFloat(o.Value)
	case "amp_cc":
		if indexed {
			if v, ok := parseFloat(o.Value); ok {
				setCCModDepth(&region.AmpCCMod, param, v/100)
			}
		}
	case "amp_curvecc":
		if indexed {
			if v, ok := parseInt(o.Value); ok {
				setCCModCurve(&region.AmpCCMod, param, v)
			}
		}
	case "cutoff_cc":
		if indexed {
			if v, ok := parseFloat(o.Value); ok {
				ensureFilterCCMod(region, false, param, v, false)
			}
		}
	case "resonance_cc":
		if indexed {
			if v, ok := parseFloat(o.Value); ok {
				ensureFilterCCMod(region, false, param, v, true)
			}
		}
	case "pitch_cc":
		if indexed {
			if v, ok := parseFloat(o.Value); ok {
				setCCModDepth(&region.PitchCCMod, param, v)
			}
		}
	case "pan_cc":
		if indexed {
			if v, ok := parseFloat(o.Value); ok {
				setCCModDepth(&region.PanCCMod, param, v/100)
			}
		}
	default:
		return false
	}
	return true
}

// setCCModDepth finds or appends the CCModulator routing cc into dst,
// updating its depth. Curve defaults to the Linear predefined curve (index
// 0) until a matching *_curvecc opcode overrides it.
func setCCModDepth(dst *[]CCModulator, cc int, depth float64) {
	for i := range *dst {
		if (*dst)[i].CC == cc {
			(*dst)[i].Depth = depth
			return
		}
	}
	*dst = append(*dst, CCModulator{CC: cc, Depth: depth})
}

func setCCModCurve(dst *[]CCModulator, cc int, curveIdx int) {
	for i := range *dst {
		if (*dst)[i].CC == cc {
			(*dst)[i].Curve = curveIdx
			return
		}
	}
	*dst = append(*dst, CCModulator{CC: cc, Curve: curveIdx})
}

// ensureFilterCCMod routes a cutoff_ccN/resonance_ccN opcode to filter slot
// 0's cutoff or resonance CC modulation list. Multi-filter-index CC routing
// like "fil2_cutoff_ccN" does not reach here: digit-stripping turns it into
// the family "fil_cutoff_ccN", which is recorded as an unknown opcode.
func ensureFilterCCMod(region *Region, isEQ bool, cc int, value float64, resonance bool) {
	slice := &region.Filters
	if isEQ {
		slice = &region.EQs
	}
	if len(*slice) == 0 {
		*slice = append(*slice, FilterSpec{})
	}
	f := &(*slice)[0]
	if resonance {
		setCCModDepth(&f.ResonanceCCMod, cc, value)
		return
	}
	setCCModDepth(&f.CCMod, cc, value)
}

func mustFloat(s string) float64 {
	v, _ := parseFloat(s)
	return v
}

func setCCRangeLo(r *Region, cc int, value string) {
	v, ok := parseFloat(value)
	if !ok {
		return
	}
	for i := range r.CCConditions {
		if r.CCConditions[i].CC == cc {
			r.CCConditions[i].Range.Lo = int(v)
			return
		}
	}
	r.CCConditions = append(r.CCConditions, CCCondition{CC: cc, Range: IntRange{Lo: int(v), Hi: 127}})
}

func setCCRangeHi(r *Region, cc int, value string) {
	v, ok := parseFloat(value)
	if !ok {
		return
	}
	for i := range r.CCConditions {
		if r.CCConditions[i].CC == cc {
			r.CCConditions[i].Range.Hi = int(v)
			return
		}
	}
	r.CCConditions = append(r.CCConditions, CCCondition{CC: cc, Range: IntRange{Lo: 0, Hi: int(v)}})
}

// applyFilterField resolves which of Filters/EQs a family belongs to and ensures
// index param has a backing FilterSpec, growing the slice as needed.
func applyFilterField(region *Region, family string, indexed bool, param int, set func(*FilterSpec)) {
	isEQ := family == "eq_type" || family == "eq_freq" || family == "eq_bw" || family == "eq_gain"
	idx := 0
	if indexed {
		idx = param - 1
		if idx < 0 {
			idx = 0
		}
	}
	var slice *[]FilterSpec
	if isEQ {
		slice = &region.EQs
	} else {
		slice = &region.Filters
	}
	for len(*slice) <= idx {
		*slice = append(*slice, FilterSpec{})
	}
	set(&(*slice)[idx])
}

// applyAuxEGField get-or-creates the EnvelopeSpec keyed by param (sfz has no
// natural name for an unindexed pitch/filter EG, so it's keyed "0") in specs,
// mutates it, and writes it back — map values aren't addressable in Go, so
// this can't just return a pointer the way ensureLFO does for a slice.
func applyAuxEGField(specs map[string]EnvelopeSpec, param int, set func(*EnvelopeSpec)) {
	key := strconv.Itoa(param)
	e := specs[key]
	set(&e)
	specs[key] = e
}

func ensureLFO(region *Region, param int) *LFOSpec {
	idx := param - 1
	if idx < 0 {
		idx = 0
	}
	for len(region.LFOs) <= idx {
		region.LFOs = append(region.LFOs, LFOSpec{})
	}
	return &region.LFOs[idx]
}

func parseTriggerMode(s string) TriggerMode {
	switch s {
	case "release":
		return TriggerRelease
	case "first":
		return TriggerFirst
	case "legato":
		return TriggerLegato
	default:
		return TriggerAttack
	}
}

func parseLoopMode(s string) LoopMode {
	switch s {
	case "one_shot":
		return LoopOneShot
	case "loop_continuous":
		return LoopContinuous
	case "loop_sustain":
		return LoopSustain
	default:
		return LoopNone
	}
}

func parseFilterType(s string) filter.Type {
	switch s {
	case "lpf_1p":
		return filter.TypeLPF1P
	case "lpf_2p":
		return filter.TypeLPF2P
	case "lpf_4p":
		return filter.TypeLPF4P
	case "lpf_6p":
		return filter.TypeLPF6P
	case "hpf_1p":
		return filter.TypeHPF1P
	case "hpf_2p":
		return filter.TypeHPF2P
	case "bpf_1p":
		return filter.TypeBPF1P
	case "bpf_2p":
		return filter.TypeBPF2P
	case "brf_2p", "brf_1p":
		return filter.TypeBRF
	case "apf_1p":
		return filter.TypeAPF
	case "pkf_2p":
		return filter.TypePeak
	case "lsh":
		return filter.TypeLowShelf
	case "hsh":
		return filter.TypeHighShelf
	default:
		return filter.TypeLPF2P
	}
}

func parseLFOWave(s string) int {
	switch s {
	case "triangle":
		return 1
	case "pulse":
		return 2
	case "saw_up":
		return 3
	case "saw_down":
		return 4
	case "noise":
		return 5
	default:
		return 0 // sine
	}
}
