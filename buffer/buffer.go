// Package buffer provides the aligned scratch allocation and multi-channel
// view types the rendering path is built on. Nothing here allocates once a
// Buffer has reached its working size; Resize reuses the backing array
// whenever it already fits.
package buffer

import (
	"sync/atomic"
	"unsafe"
)

// simdWidth is the widest kernel stride simd.Kernels ever uses; Buffer pads
// its capacity up to a multiple of it so tail loops in that package never
// need a bounds check.
const simdWidth = 4

// cacheLine is the assumed CPU cache line size used for the (best-effort)
// alignment padding below.
const cacheLine = 64

var (
	liveBuffers atomic.Int64
	liveBytes   atomic.Int64
)

// LiveBuffers returns the number of Buffers currently allocated and not yet
// Closed. Tests use this to assert the audio path does not leak.
func LiveBuffers() int64 { return liveBuffers.Load() }

// LiveBytes returns the total backing-array bytes currently outstanding.
func LiveBytes() int64 { return liveBytes.Load() }

// Buffer owns a contiguous allocation of T, over-allocated by one cache
// line plus simdWidth elements of padding. Go gives no portable
// aligned-alloc, and no alignment offset is applied: the usable region
// starts at element 0 of the allocation, wherever the Go allocator placed
// it, so it is not guaranteed to start on a cache-line boundary.
type Buffer[T any] struct {
	raw   []T
	data  []T
	elem  int // sizeof(T) estimate in bytes, fixed at construction
	bytes int64
}

// NewBuffer allocates a Buffer capable of holding at least n elements of T,
// rounded up to a multiple of simdWidth so the aligned tail is always valid.
func NewBuffer[T any](n int) *Buffer[T] {
	b := &Buffer[T]{}
	b.Resize(n)
	return b
}

// elemSize estimates sizeof(T) via unsafe.Sizeof of a zero value; it is only used
// for the leak-detection byte counter, never for pointer arithmetic.
func elemSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// Resize grows or shrinks the buffer to hold n elements, preserving the
// first min(old_len, n) elements. It reallocates only when the requested
// capacity exceeds what is already backing the buffer.
func (b *Buffer[T]) Resize(n int) {
	aligned := alignedLen(n)
	if cap(b.raw) >= aligned+cacheLine/elemSizeOrOne[T]() {
		b.data = b.raw[:n]
		clear(b.raw[n:aligned])
		return
	}
	pad := cacheLine/elemSizeOrOne[T]() + simdWidth
	newRaw := make([]T, aligned+pad)
	copy(newRaw, b.data)
	if b.raw != nil {
		b.bytes = 0
		liveBytes.Add(-int64(len(b.raw)) * int64(elemSize[T]()))
	} else {
		liveBuffers.Add(1)
	}
	b.raw = newRaw
	b.bytes = int64(len(newRaw)) * int64(elemSize[T]())
	liveBytes.Add(b.bytes)
	b.data = b.raw[:n]
}

// Clear drops the backing storage entirely; the next Resize reallocates.
func (b *Buffer[T]) Clear() {
	if b.raw != nil {
		liveBuffers.Add(-1)
		liveBytes.Add(-b.bytes)
	}
	b.raw = nil
	b.data = nil
	b.bytes = 0
}

// Len returns the current logical length.
func (b *Buffer[T]) Len() int { return len(b.data) }

// Slice returns the logical [0:Len) view.
func (b *Buffer[T]) Slice() []T { return b.data }

// AlignedSlice returns the logical region extended to the next multiple of
// simdWidth; trailing padding elements are always zero-valued, so a SIMD
// tail can run over them without reading uninitialized memory or needing a
// separate scalar remainder loop.
func (b *Buffer[T]) AlignedSlice() []T {
	al := alignedLen(len(b.data))
	return b.raw[:al]
}

func alignedLen(n int) int {
	if n%simdWidth == 0 {
		return n
	}
	return n + (simdWidth - n%simdWidth)
}

func elemSizeOrOne[T any]() int {
	s := elemSize[T]()
	if s == 0 {
		return 1
	}
	return s
}
