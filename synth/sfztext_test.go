package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtsampler/sfzcore/region"
)

func TestParseSFZTextSingleRegion(t *testing.T) {
	doc, err := parseSFZText(`
<region>
sample=kick.wav
lokey=36 hikey=36
amp_veltrack=100
`)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 1)
	r := doc.Regions[0]
	assert.Equal(t, "kick.wav", r.SamplePath)
	assert.Equal(t, 36, r.KeyRange.Lo)
	assert.Equal(t, 36, r.KeyRange.Hi)
}

func TestParseSFZTextGlobalOpcodesInheritIntoRegions(t *testing.T) {
	doc, err := parseSFZText(`
<global>
ampeg_release=0.5
<region>
sample=a.wav
key=60
<region>
sample=b.wav
key=61
`)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 2)
	assert.Equal(t, 0.5, doc.Regions[0].AmpEG.Release)
	assert.Equal(t, 0.5, doc.Regions[1].AmpEG.Release)
	assert.Equal(t, "a.wav", doc.Regions[0].SamplePath)
	assert.Equal(t, "b.wav", doc.Regions[1].SamplePath)
}

func TestParseSFZTextLocalOpcodeOverridesGlobal(t *testing.T) {
	doc, err := parseSFZText(`
<global>
volume=-6
<region>
sample=a.wav
volume=-3
`)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 1)
	assert.Equal(t, -3.0, doc.Regions[0].VolumeDB)
}

func TestParseSFZTextSkipsLineAndBlockComments(t *testing.T) {
	doc, err := parseSFZText(`
// a leading comment
<region> // trailing header comment
sample=a.wav /* inline block comment */
key=60
/* a whole
   block comment */
lovel=10
`)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 1)
	r := doc.Regions[0]
	assert.Equal(t, "a.wav", r.SamplePath)
	assert.Equal(t, 60, r.KeyRange.Lo)
	assert.Equal(t, 10, r.VelRange.Lo)
}

func TestParseSFZTextUnquotedSamplePathWithSpacesTerminatesBeforeNextOpcode(t *testing.T) {
	doc, err := parseSFZText(`
<region>
sample=some folder/kick drum 1.wav
key=60
`)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 1)
	assert.Equal(t, "some folder/kick drum 1.wav", doc.Regions[0].SamplePath)
	assert.Equal(t, 60, doc.Regions[0].KeyRange.Lo)
}

func TestParseSFZTextSampleOnSameLineAsNextHeaderTerminatesAtHeader(t *testing.T) {
	doc, err := parseSFZText(`
<region>
sample=drum.wav<region>
sample=other.wav
`)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 2)
	assert.Equal(t, "drum.wav", doc.Regions[0].SamplePath)
	assert.Equal(t, "other.wav", doc.Regions[1].SamplePath)
}

func TestParseSFZTextUnterminatedHeaderErrors(t *testing.T) {
	_, err := parseSFZText("<region\nsample=a.wav\n")
	assert.Error(t, err)
}

func TestParseSFZTextIndexedOpcodeRoutesThroughFamily(t *testing.T) {
	doc, err := parseSFZText(`
<region>
sample=a.wav
on_locc64=64
on_hicc64=127
`)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 1)
	require.Len(t, doc.Regions[0].CCConditions, 1)
	assert.Equal(t, 64, doc.Regions[0].CCConditions[0].CC)
	assert.Equal(t, 64, doc.Regions[0].CCConditions[0].Range.Lo)
	assert.Equal(t, 127, doc.Regions[0].CCConditions[0].Range.Hi)
}

func TestHeaderKindForRecognizesAllHeaders(t *testing.T) {
	cases := map[string]region.HeaderKind{
		"global":  region.HeaderGlobal,
		"Master":  region.HeaderMaster,
		"GROUP":   region.HeaderGroup,
		"region":  region.HeaderRegion,
		"control": region.HeaderControl,
		"curve":   region.HeaderCurve,
		"effect":  region.HeaderEffect,
		"unknown": region.HeaderRegion,
	}
	for name, want := range cases {
		assert.Equal(t, want, headerKindFor(name), name)
	}
}

func TestSplitAtNextTokenFindsHeaderBoundary(t *testing.T) {
	value, rest := splitAtNextToken("kick.wav<region>")
	assert.Equal(t, "kick.wav", value)
	assert.Equal(t, "<region>", rest)
}

func TestSplitAtNextTokenFindsOpcodeBoundary(t *testing.T) {
	value, rest := splitAtNextToken("some path with spaces/kick.wav key=60")
	assert.Equal(t, "some path with spaces/kick.wav", value)
	assert.Equal(t, " key=60", rest)
}

func TestSplitAtNextTokenNoBoundaryReturnsWholeString(t *testing.T) {
	value, rest := splitAtNextToken("plain_value_no_more_tokens")
	assert.Equal(t, "plain_value_no_more_tokens", value)
	assert.Equal(t, "", rest)
}
