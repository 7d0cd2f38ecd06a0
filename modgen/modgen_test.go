package modgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeReachesSustainAndIdlesAfterRelease(t *testing.T) {
	e := NewEnvelope(1000, true)
	e.Configure(EnvelopeParams{Attack: 0.01, Decay: 0.01, Sustain: 0.5, Release: 0.01})
	e.Trigger()

	for i := 0; i < 30; i++ {
		e.Advance()
	}
	assert.InDelta(t, 0.5, e.Value(), 0.05)
	assert.Equal(t, StageSustain, e.Stage())

	e.Release()
	for i := 0; i < 20; i++ {
		e.Advance()
	}
	assert.True(t, e.IsIdle())
	assert.InDelta(t, 0, e.Value(), 1e-6)
}

func TestEnvelopeHoldDelaysDecay(t *testing.T) {
	e := NewEnvelope(1000, true)
	e.Configure(EnvelopeParams{Attack: 0.001, Hold: 0.01, Decay: 0.001, Sustain: 0.2})
	e.Trigger()
	e.Advance() // completes the one-sample attack and enters hold
	for i := 0; i < 2; i++ {
		e.Advance()
	}
	assert.Equal(t, StageHold, e.Stage())
}

func TestEnvelopeUnipolarClampsValue(t *testing.T) {
	e := NewEnvelope(1000, true)
	e.Configure(EnvelopeParams{Start: 2})
	e.Trigger()
	assert.LessOrEqual(t, e.Value(), 1.0)
}

func TestEnvelopeLoopShapeReturnsToAttack(t *testing.T) {
	e := NewEnvelope(1000, true)
	e.Configure(EnvelopeParams{Attack: 0.001, Decay: 0.001, Sustain: 0.5, Shape: ShapeLoop})
	e.Trigger()
	var sawSustainThenAttackAgain bool
	prevStage := StageIdle
	for i := 0; i < 20; i++ {
		e.Advance()
		if prevStage == StageSustain && e.Stage() == StageAttack {
			sawSustainThenAttackAgain = true
		}
		prevStage = e.Stage()
	}
	assert.True(t, sawSustainThenAttackAgain)
}

func TestLFOSineStaysWithinDepth(t *testing.T) {
	l := NewLFO(1000)
	l.AddSub(LFOSine, 5, 0.8)
	l.Trigger(0)
	for i := 0; i < 1000; i++ {
		v := l.Advance()
		assert.True(t, v >= -0.81 && v <= 0.81)
	}
}

func TestLFOFadeInRampsFromZero(t *testing.T) {
	l := NewLFO(1000)
	l.AddSub(LFOPulse, 2, 1)
	l.Trigger(0.1) // 100 sample fade at 1kHz
	first := l.Advance()
	assert.InDelta(t, 0, first, 0.02)
}

func TestLFOSyncToTempoSetsFrequency(t *testing.T) {
	l := NewLFO(1000)
	l.AddSub(LFOSine, 1, 1)
	l.SyncToTempo(2, 0.5) // 2 beats at 120bpm = 1 second period = 1Hz
	require.Len(t, l.subs, 1)
	assert.InDelta(t, 1.0, l.subs[0].freq, 1e-9)
}

func TestLFOInvariantWhenAllDepthsZero(t *testing.T) {
	l := NewLFO(1000)
	l.AddSub(LFOSine, 5, 0)
	assert.True(t, l.IsInvariantOverBlock())
	l.AddSub(LFOTriangle, 3, 0.1)
	assert.False(t, l.IsInvariantOverBlock())
}

func TestPowerFollowerTracksConstantLevel(t *testing.T) {
	p := NewPowerFollower(1000, 5)
	for i := 0; i < 5000; i++ {
		p.Push(0.5)
	}
	assert.InDelta(t, 0.25, p.MeanSquare(), 0.01)
}

func TestPowerFollowerResetZeroes(t *testing.T) {
	p := NewPowerFollower(1000, 5)
	p.Push(1)
	p.Reset()
	assert.Equal(t, 0.0, p.MeanSquare())
}

func TestModulationSpanAtHandlesBothModes(t *testing.T) {
	inv := InvariantSpan(0.5)
	assert.Equal(t, 0.5, inv.At(0))
	assert.Equal(t, 0.5, inv.At(100))

	varying := VaryingSpan([]float64{1, 2, 3})
	assert.Equal(t, 2.0, varying.At(1))
}
