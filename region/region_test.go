package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestOpcodeFamilySplitsNumericInfix(t *testing.T) {
	fam, n, ok := Opcode{Name: "eq3_freq"}.Family()
	require.True(t, ok)
	assert.Equal(t, "eq_freq", fam)
	assert.Equal(t, 3, n)
}

func TestOpcodeFamilyNoDigitsReturnsNameUnchanged(t *testing.T) {
	fam, _, ok := Opcode{Name: "ampeg_attack"}.Family()
	assert.False(t, ok)
	assert.Equal(t, "ampeg_attack", fam)
}

func TestOpcodeFamilyLeadingIndex(t *testing.T) {
	fam, n, ok := Opcode{Name: "lfo02_freq"}.Family()
	require.True(t, ok)
	assert.Equal(t, "lfo_freq", fam)
	assert.Equal(t, 2, n)
}

// TestChannelRangeMultiChannelMatchesWholeRange pins the open-question
// decision on channel_range: a region's channel range is matched as a real
// [lo,hi] interval, not collapsed to a single canonical channel.
func TestChannelRangeMultiChannelMatchesWholeRange(t *testing.T) {
	r := NewRegion()
	r.ChannelRange = IntRange{Lo: 2, Hi: 5}
	assert.False(t, r.MatchesNote(60, 100, 1))
	assert.True(t, r.MatchesNote(60, 100, 2))
	assert.True(t, r.MatchesNote(60, 100, 4))
	assert.True(t, r.MatchesNote(60, 100, 5))
	assert.False(t, r.MatchesNote(60, 100, 6))
}

func TestRegionNormalizeSwapsReversedRanges(t *testing.T) {
	r := NewRegion()
	r.KeyRange = IntRange{Lo: 80, Hi: 40}
	r.Normalize()
	assert.Equal(t, IntRange{Lo: 40, Hi: 80}, r.KeyRange)
}

func TestRegionNormalizeClampsEnvelopeSustain(t *testing.T) {
	r := NewRegion()
	r.AmpEG.Sustain = 5
	r.Normalize()
	assert.Equal(t, 1.0, r.AmpEG.Sustain)
}

func TestLoaderAppliesRegionOpcodesAndGroupInheritance(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderGroup)
	l.OnOpcode("ampeg_release", nil, "0.5")

	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "kick.wav")
	l.OnOpcode("lokey", nil, "36")
	l.OnOpcode("hikey", nil, "36")

	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "snare.wav")
	l.OnOpcode("key", nil, "38")
	l.OnOpcode("ampeg_release", nil, "0.1") // region overrides group

	doc := l.Finish()
	require.Len(t, doc.Regions, 2)
	assert.Equal(t, "kick.wav", doc.Regions[0].SamplePath)
	assert.InDelta(t, 0.5, doc.Regions[0].AmpEG.Release, 1e-9)
	assert.Equal(t, "snare.wav", doc.Regions[1].SamplePath)
	assert.Equal(t, IntRange{Lo: 38, Hi: 38}, doc.Regions[1].KeyRange)
	assert.InDelta(t, 0.1, doc.Regions[1].AmpEG.Release, 1e-9)
}

func TestLoaderRecordsUnknownOpcodes(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "a.wav")
	l.OnOpcode("totally_made_up_opcode", nil, "1")
	doc := l.Finish()
	_, seen := doc.UnknownOpcodes["totally_made_up_opcode"]
	assert.True(t, seen)
}

func TestLoaderPitchAndFilterEGOpcodesRouteToAuxEnvelopes(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "a.wav")
	l.OnOpcode("pitcheg_attack", nil, "0.2")
	l.OnOpcode("pitcheg_depth", nil, "1200")
	l.OnOpcode("fileg_decay", nil, "0.3")
	l.OnOpcode("fileg_depth", nil, "4000")
	doc := l.Finish()
	require.Len(t, doc.Regions, 1)
	r := doc.Regions[0]
	require.Contains(t, r.PitchEGs, "0")
	assert.InDelta(t, 0.2, r.PitchEGs["0"].Attack, 1e-9)
	assert.InDelta(t, 1200, r.PitchEGs["0"].Depth, 1e-9)
	require.Contains(t, r.FilterEGs, "0")
	assert.InDelta(t, 0.3, r.FilterEGs["0"].Decay, 1e-9)
	assert.InDelta(t, 4000, r.FilterEGs["0"].Depth, 1e-9)
}

func TestLoaderIndexedFilterOpcodesGrowSlice(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "a.wav")
	l.OnOpcode("eq3_freq", intp(3), "1200")
	doc := l.Finish()
	require.Len(t, doc.Regions, 1)
	require.Len(t, doc.Regions[0].EQs, 3)
	assert.InDelta(t, 1200, doc.Regions[0].EQs[2].Cutoff, 1e-9)
}

func TestLoaderOnCCRangeBuildsCCCondition(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "a.wav")
	l.OnOpcode("on_locc64", nil, "100")
	l.OnOpcode("on_hicc64", nil, "127")
	doc := l.Finish()
	require.Len(t, doc.Regions[0].CCConditions, 1)
	assert.Equal(t, 64, doc.Regions[0].CCConditions[0].CC)
	assert.Equal(t, IntRange{Lo: 100, Hi: 127}, doc.Regions[0].CCConditions[0].Range)
}

func TestLoaderAmpCCBuildsModulatorWithDefaultCurve(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "a.wav")
	l.OnOpcode("amp_cc7", nil, "50")
	doc := l.Finish()

	require.Len(t, doc.Regions[0].AmpCCMod, 1)
	assert.Equal(t, 7, doc.Regions[0].AmpCCMod[0].CC)
	assert.InDelta(t, 0.5, doc.Regions[0].AmpCCMod[0].Depth, 1e-9)
	assert.Equal(t, 0, doc.Regions[0].AmpCCMod[0].Curve)
}

func TestLoaderAmpCurveCCOverridesExistingModulatorCurve(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "a.wav")
	l.OnOpcode("amp_cc7", nil, "50")
	l.OnOpcode("amp_curvecc7", nil, "3")
	doc := l.Finish()

	require.Len(t, doc.Regions[0].AmpCCMod, 1)
	assert.Equal(t, 3, doc.Regions[0].AmpCCMod[0].Curve)
}

func TestLoaderCutoffCCAndResonanceCCRouteToSeparateFields(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "a.wav")
	l.OnOpcode("cutoff", nil, "1000")
	l.OnOpcode("cutoff_cc1", nil, "500")
	l.OnOpcode("resonance_cc1", nil, "2")
	doc := l.Finish()

	require.Len(t, doc.Regions[0].Filters, 1)
	require.Len(t, doc.Regions[0].Filters[0].CCMod, 1)
	require.Len(t, doc.Regions[0].Filters[0].ResonanceCCMod, 1)
	assert.Equal(t, 1, doc.Regions[0].Filters[0].CCMod[0].CC)
	assert.InDelta(t, 500, doc.Regions[0].Filters[0].CCMod[0].Depth, 1e-9)
	assert.InDelta(t, 2, doc.Regions[0].Filters[0].ResonanceCCMod[0].Depth, 1e-9)
}

func TestLoaderPitchCCAndPanCCBuildModulators(t *testing.T) {
	l := NewLoader()
	l.OnHeader(HeaderRegion)
	l.OnOpcode("sample", nil, "a.wav")
	l.OnOpcode("pitch_cc10", nil, "200")
	l.OnOpcode("pan_cc10", nil, "50")
	doc := l.Finish()

	require.Len(t, doc.Regions[0].PitchCCMod, 1)
	require.Len(t, doc.Regions[0].PanCCMod, 1)
	assert.InDelta(t, 200, doc.Regions[0].PitchCCMod[0].Depth, 1e-9)
	assert.InDelta(t, 0.5, doc.Regions[0].PanCCMod[0].Depth, 1e-9)
}
