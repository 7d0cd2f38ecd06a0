package buffer

import "github.com/rtsampler/sfzcore/simd"

// MaxChannels bounds the channel count AudioSpan can hold without heap
// allocation. The engine only ever renders stereo, but the pipeline keeps a
// little headroom for mid/side and multi-output-bus experiments.
const MaxChannels = 4

// AudioSpan is a non-owning view over N equally-sized float32 channels. It
// never allocates; every method operates in place on the slices it was
// constructed from, and the span value itself is a small fixed-size array so
// constructing one (including via Subspan) never touches the heap. Spans
// must not be retained across block boundaries — the backing storage is
// typically a per-voice or per-block scratch buffer reused on the next
// render call.
type AudioSpan struct {
	channels [MaxChannels][]float32
	n        int
}

// NewAudioSpan wraps the given per-channel slices (at most MaxChannels).
func NewAudioSpan(channels ...[]float32) AudioSpan {
	var s AudioSpan
	s.n = len(channels)
	copy(s.channels[:], channels)
	return s
}

// NumChannels returns the channel count (typically 2, for stereo).
func (s AudioSpan) NumChannels() int { return s.n }

// FrameCount returns the per-channel length, or 0 for a span with no
// channels.
func (s AudioSpan) FrameCount() int {
	if s.n == 0 {
		return 0
	}
	return len(s.channels[0])
}

// Channel returns the i'th channel slice directly; mutations through it are
// visible to the span's owner.
func (s AudioSpan) Channel(i int) []float32 { return s.channels[i] }

// Subspan returns a view over [start, start+length) of every channel.
func (s AudioSpan) Subspan(start, length int) AudioSpan {
	var out AudioSpan
	out.n = s.n
	for i := 0; i < s.n; i++ {
		out.channels[i] = s.channels[i][start : start+length]
	}
	return out
}

// Fill sets every sample in every channel to x.
func (s AudioSpan) Fill(x float32) {
	for i := 0; i < s.n; i++ {
		simd.Fill(s.channels[i], x)
	}
}

// Add sums other into s in place, channel by channel. Channel counts must
// match; frame counts use the shorter of the two per channel.
func (s AudioSpan) Add(other AudioSpan) {
	n := s.n
	if other.n < n {
		n = other.n
	}
	for c := 0; c < n; c++ {
		dst, src := s.channels[c], other.channels[c]
		m := len(dst)
		if len(src) < m {
			m = len(src)
		}
		simd.Add(dst[:m], dst[:m], src[:m])
	}
}

// ApplyGain scales every sample in every channel by x.
func (s AudioSpan) ApplyGain(x float32) {
	for i := 0; i < s.n; i++ {
		simd.ApplyGain(s.channels[i], x)
	}
}
