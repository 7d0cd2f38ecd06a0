package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferResizePreservesPrefix(t *testing.T) {
	b := NewBuffer[float32](4)
	for i := range b.Slice() {
		b.Slice()[i] = float32(i + 1)
	}
	b.Resize(8)
	require.Equal(t, 8, b.Len())
	assert.Equal(t, []float32{1, 2, 3, 4}, b.Slice()[:4])

	b.Resize(2)
	assert.Equal(t, []float32{1, 2}, b.Slice())
}

func TestBufferAlignedSliceZeroPadded(t *testing.T) {
	b := NewBuffer[float32](5)
	copy(b.Slice(), []float32{1, 2, 3, 4, 5})
	al := b.AlignedSlice()
	require.GreaterOrEqual(t, len(al), 5)
	for i := 5; i < len(al); i++ {
		assert.Equal(t, float32(0), al[i])
	}
}

func TestBufferLeakCounters(t *testing.T) {
	before := LiveBuffers()
	b := NewBuffer[float32](16)
	assert.Equal(t, before+1, LiveBuffers())
	b.Clear()
	assert.Equal(t, before, LiveBuffers())
}

func TestAudioSpanFillAddGain(t *testing.T) {
	l := make([]float32, 4)
	r := make([]float32, 4)
	s := NewAudioSpan(l, r)
	s.Fill(1)
	s.ApplyGain(0.5)
	for _, v := range l {
		assert.InDelta(t, 0.5, v, 1e-6)
	}

	l2 := []float32{1, 1, 1, 1}
	r2 := []float32{1, 1, 1, 1}
	other := NewAudioSpan(l2, r2)
	s.Add(other)
	for _, v := range l {
		assert.InDelta(t, 1.5, v, 1e-6)
	}
}

func TestAudioSpanSubspanNoAlloc(t *testing.T) {
	l := make([]float32, 16)
	r := make([]float32, 16)
	s := NewAudioSpan(l, r)
	sub := s.Subspan(4, 8)
	assert.Equal(t, 8, sub.FrameCount())
	sub.Channel(0)[0] = 42
	assert.Equal(t, float32(42), l[4])
}
