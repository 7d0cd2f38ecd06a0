package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoteOnOffLifecycle(t *testing.T) {
	s := NewState()
	assert.False(t, s.IsNoteOn(60))

	s.NoteOn(60, 1.0, 0)
	assert.True(t, s.IsNoteOn(60))
	assert.Equal(t, float32(1.0), s.Velocity(60))

	s.NoteOff(60, 10)
	assert.False(t, s.IsNoteOn(60))
	// Velocity from the last NoteOn is still queryable after release.
	assert.Equal(t, float32(1.0), s.Velocity(60))
}

func TestNoteOnClampsVelocity(t *testing.T) {
	s := NewState()
	s.NoteOn(60, 1.5, 0)
	assert.Equal(t, float32(1.0), s.Velocity(60))
	s.NoteOn(61, -0.5, 0)
	assert.Equal(t, float32(0.0), s.Velocity(61))
}

func TestOutOfRangeKeyIsIgnored(t *testing.T) {
	s := NewState()
	s.NoteOn(200, 1.0, 0)
	assert.False(t, s.IsNoteOn(200))
	assert.Equal(t, float32(0), s.Velocity(-1))
}

func TestCCHistoryRingCapsAndSlides(t *testing.T) {
	s := NewState()
	s.BeginBlock()
	for i := 0; i < ccHistoryDepth+2; i++ {
		s.CCAt(1, float32(i)/10, i*10)
	}
	assert.Equal(t, ccHistoryDepth, s.CCChangeCount(1))
	// Most recent write's value should be reflected in CCValue regardless
	// of ring eviction.
	assert.InDelta(t, float32(float64(ccHistoryDepth+1)/10), s.CCValue(1), 1e-6)
}

func TestBeginBlockResetsChangeCounts(t *testing.T) {
	s := NewState()
	s.BeginBlock()
	s.CCAt(7, 0.5, 0)
	assert.Equal(t, 1, s.CCChangeCount(7))
	s.BeginBlock()
	assert.Equal(t, 0, s.CCChangeCount(7))
	// Value itself persists across blocks; only the change counter resets.
	assert.Equal(t, float32(0.5), s.CCValue(7))
}

func TestPitchBendClampsToUnitRange(t *testing.T) {
	s := NewState()
	s.PitchWheel(5)
	assert.Equal(t, float32(1), s.PitchBend())
	s.PitchWheel(-5)
	assert.Equal(t, float32(-1), s.PitchBend())
}

func TestTempoRejectsNonPositive(t *testing.T) {
	s := NewState()
	assert.Equal(t, 0.5, s.TempoSecPerBeat())
	s.Tempo(0.25)
	assert.Equal(t, 0.25, s.TempoSecPerBeat())
	s.Tempo(0)
	assert.Equal(t, 0.25, s.TempoSecPerBeat())
	s.Tempo(-1)
	assert.Equal(t, 0.25, s.TempoSecPerBeat())
}

func TestAftertouchChannelsAndPoly(t *testing.T) {
	s := NewState()
	s.ChannelAftertouch(2)
	assert.Equal(t, float32(1), s.ChannelAftertouchValue())

	s.PolyAftertouch(64, 0.3)
	assert.InDelta(t, float32(0.3), s.PolyAftertouchValue(64), 1e-6)
	assert.Equal(t, float32(0), s.PolyAftertouchValue(999))
}
