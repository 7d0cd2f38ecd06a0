package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineAt(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func rms(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func TestLPF2PAttenuatesAboveCutoff(t *testing.T) {
	const sr = 48000
	f := New(sr, Params{Type: TypeLPF2P, Cutoff: 500, Q: 0.707})
	in := sineAt(8000, sr, 4096)
	out := make([]float64, len(in))
	for i, x := range in {
		f.BeginBlock()
		out[i] = f.ProcessSample(x)
	}
	tail := out[2048:]
	assert.Less(t, rms(tail), rms(in[2048:])*0.3)
}

func TestHPF2PAttenuatesBelowCutoff(t *testing.T) {
	const sr = 48000
	f := New(sr, Params{Type: TypeHPF2P, Cutoff: 5000, Q: 0.707})
	in := sineAt(100, sr, 4096)
	out := make([]float64, len(in))
	for i, x := range in {
		f.BeginBlock()
		out[i] = f.ProcessSample(x)
	}
	tail := out[2048:]
	assert.Less(t, rms(tail), rms(in[2048:])*0.3)
}

func TestLPF4PRollsOffFasterThanLPF2P(t *testing.T) {
	const sr = 48000
	f2 := New(sr, Params{Type: TypeLPF2P, Cutoff: 1000, Q: 0.707})
	f4 := New(sr, Params{Type: TypeLPF4P, Cutoff: 1000, Q: 0.707})
	in := sineAt(4000, sr, 4096)

	out2 := make([]float64, len(in))
	out4 := make([]float64, len(in))
	for i, x := range in {
		f2.BeginBlock()
		f4.BeginBlock()
		out2[i] = f2.ProcessSample(x)
		out4[i] = f4.ProcessSample(x)
	}
	assert.Less(t, rms(out4[2048:]), rms(out2[2048:]))
}

func TestAPFPreservesEnergyRoughly(t *testing.T) {
	const sr = 48000
	f := New(sr, Params{Type: TypeAPF, Cutoff: 1000, Q: 0.707})
	in := sineAt(1000, sr, 4096)
	out := make([]float64, len(in))
	for i, x := range in {
		f.BeginBlock()
		out[i] = f.ProcessSample(x)
	}
	assert.InDelta(t, rms(in[2048:]), rms(out[2048:]), 0.1)
}

func TestFilterResetClearsState(t *testing.T) {
	f := New(48000, Params{Type: TypeLPF2P, Cutoff: 1000, Q: 0.707})
	for i := 0; i < 100; i++ {
		f.BeginBlock()
		f.ProcessSample(1)
	}
	f.Reset()
	assert.Equal(t, 0.0, f.stages[0].z1)
	assert.Equal(t, 0.0, f.stages[0].z2)
}

func TestSetParamsChangingTypeRebuildsStageCount(t *testing.T) {
	f := New(48000, Params{Type: TypeLPF2P, Cutoff: 1000, Q: 0.707})
	require.Len(t, f.stages, 1)
	f.SetParams(Params{Type: TypeLPF4P, Cutoff: 1000, Q: 0.707})
	assert.Len(t, f.stages, 2)
}

func TestStereoProcessesChannelsIndependently(t *testing.T) {
	s := NewStereo(48000, Params{Type: TypeLPF2P, Cutoff: 1000, Q: 0.707})
	s.BeginBlock()
	l, r := s.ProcessFrame(1, -1)
	assert.NotEqual(t, 0.0, l)
	assert.NotEqual(t, 0.0, r)
}
