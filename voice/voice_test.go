package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtsampler/sfzcore/filepool"
	"github.com/rtsampler/sfzcore/region"
	"github.com/rtsampler/sfzcore/tuning"
)

func newTestPreload(frames int) *filepool.FileInformation {
	head := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		head[i*2] = float32(i) / float32(frames)
		head[i*2+1] = -float32(i) / float32(frames)
	}
	return &filepool.FileInformation{
		Path:          "test.wav",
		Channels:      2,
		SampleRate:    44100,
		TotalFrames:   uint64(frames),
		PreloadedHead: head,
	}
}

func newTestRegion() *region.Region {
	r := region.NewRegion()
	r.SamplePath = "test.wav"
	r.AmpEG = region.EnvelopeSpec{Attack: 0.001, Decay: 0.01, Sustain: 1, Release: 0.01}
	return r
}

func TestVoiceStartsIdle(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	assert.True(t, v.IsIdle())
	assert.False(t, v.IsActive())
	assert.Equal(t, StateIdle, v.State())
}

func TestTriggerMakesVoiceActive(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	r := newTestRegion()
	preload := newTestPreload(100)

	v.Trigger(r, preload, nil, 0, 0, 60, 1.0, 0)

	assert.True(t, v.IsActive())
	assert.Equal(t, StatePlaying, v.State())
	assert.Equal(t, r, v.Region())
	assert.Equal(t, 60, v.TriggerKey())
	assert.InDelta(t, 1.0, v.TriggerVelocity(), 1e-9)
}

func TestReleaseMovesPlayingToReleasing(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	r := newTestRegion()
	v.Trigger(r, newTestPreload(100), nil, 0, 0, 60, 1.0, 0)

	v.Release()
	assert.Equal(t, StateReleasing, v.State())

	// Release on an idle or already-releasing voice is a no-op, not a panic.
	v.Release()
	assert.Equal(t, StateReleasing, v.State())
}

func TestStealForcesFastRelease(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	r := newTestRegion()
	r.AmpEG.Release = 5.0 // much longer than the steal cap
	v.Trigger(r, newTestPreload(100), nil, 0, 0, 60, 1.0, 0)

	v.Steal()
	assert.Equal(t, StateStealing, v.State())
	assert.LessOrEqual(t, v.ampEnv.ReleaseTime(), forcedReleaseCapSeconds)
}

func TestCanBeStolenGatesOnAge(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	r := newTestRegion()
	v.Trigger(r, newTestPreload(100), nil, 0, 0, 60, 1.0, 0)

	assert.False(t, v.CanBeStolen(), "just-triggered voice should be protected from stealing")

	v.ageSamples = minAgeBeforeSteal
	assert.True(t, v.CanBeStolen())
}

func TestCanBeStolenAlwaysTrueBelowStealFloor(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	r := newTestRegion()
	v.Trigger(r, newTestPreload(100), nil, 0, 0, 60, 1.0, 0)
	v.ageSamples = 1
	v.power.Reset()

	assert.True(t, v.CanBeStolen(), "a silent voice that has rendered should be stealable regardless of age")
}

func TestGroupReportsZeroWhenIdle(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	assert.Equal(t, uint32(0), v.Group())
}

func TestReclaimReturnsVoiceToPoolAndIdle(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	r := newTestRegion()
	preload := newTestPreload(100)
	preload.Acquire()
	v.Trigger(r, preload, nil, 0, 0, 60, 1.0, 0)

	pool := filepool.NewPool(filepool.DefaultPreloadSize)
	v.reclaim(pool)

	assert.True(t, v.IsIdle())
	assert.Nil(t, v.Region())
	require.Equal(t, int64(0), preload.RefCount())
}

func TestComputePitchRatioUnityAtKeycenter(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	r := newTestRegion()
	r.PitchKeycenter = 60

	ratio := v.computePitchRatio(r, 60, 1.0)
	assert.InDelta(t, 1.0, ratio, 1e-9)
}

func TestComputePitchRatioOctaveUpAtKeycenterPlus12(t *testing.T) {
	v := New(44100, tuning.NewTable(), 1)
	r := newTestRegion()
	r.PitchKeycenter = 60

	ratio := v.computePitchRatio(r, 72, 1.0)
	assert.InDelta(t, 2.0, ratio, 1e-6)
}
