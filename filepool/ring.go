package filepool

import "sync/atomic"

// Ring is a single-producer-single-consumer ring buffer of interleaved
// float32 frames. The loader thread is the sole producer; the audio thread
// is the sole consumer. Capacity is fixed at construction and rounded up to
// a power of two so index wraparound is a mask instead of a modulo.
type Ring struct {
	buf      []float32
	mask     uint64
	channels int

	writeIdx atomic.Uint64 // frames written, monotonically increasing
	readIdx  atomic.Uint64 // frames read, monotonically increasing
}

// NewRing returns a Ring sized to hold at least capacityFrames frames of
// channels-channel interleaved audio.
func NewRing(capacityFrames, channels int) *Ring {
	n := nextPow2(capacityFrames)
	return &Ring{
		buf:      make([]float32, n*channels),
		mask:     uint64(n - 1),
		channels: channels,
	}
}

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Capacity reports the ring's frame capacity.
func (r *Ring) Capacity() int { return len(r.buf) / r.channels }

// Available reports how many frames are currently readable.
func (r *Ring) Available() int {
	return int(r.writeIdx.Load() - r.readIdx.Load())
}

// FreeSpace reports how many frames can currently be written without
// overwriting unread data.
func (r *Ring) FreeSpace() int {
	return r.Capacity() - r.Available()
}

// Write copies frames into the ring, starting at the current write index,
// and returns how many frames were actually written (fewer than len(frames)
// if the ring is full). Loader thread only.
func (r *Ring) Write(frames []float32) int {
	n := len(frames) / r.channels
	if free := r.FreeSpace(); n > free {
		n = free
	}
	w := r.writeIdx.Load()
	for i := 0; i < n; i++ {
		slot := (w + uint64(i)) & r.mask
		copy(r.buf[int(slot)*r.channels:(int(slot)+1)*r.channels], frames[i*r.channels:(i+1)*r.channels])
	}
	r.writeIdx.Store(w + uint64(n))
	return n
}

// Read copies up to len(dst)/channels frames out of the ring into dst and
// advances the read index, returning the number of frames read. Audio
// thread only; never allocates, never blocks.
func (r *Ring) Read(dst []float32) int {
	n := len(dst) / r.channels
	if avail := r.Available(); n > avail {
		n = avail
	}
	rd := r.readIdx.Load()
	for i := 0; i < n; i++ {
		slot := (rd + uint64(i)) & r.mask
		copy(dst[i*r.channels:(i+1)*r.channels], r.buf[int(slot)*r.channels:(int(slot)+1)*r.channels])
	}
	r.readIdx.Store(rd + uint64(n))
	return n
}

// Reset clears the ring for reuse by a new ticket. Must only be called when
// no reader or writer is concurrently active on it (e.g. after a voice is
// fully idle and its old ticket was discarded).
func (r *Ring) Reset() {
	r.writeIdx.Store(0)
	r.readIdx.Store(0)
}
