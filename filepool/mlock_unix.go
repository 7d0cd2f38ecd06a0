//go:build unix

package filepool

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// lockPreloadedHead best-effort pins a preload buffer's backing memory so it
// can't be paged out from under the audio thread. Failure is silently
// ignored: mlock commonly fails under an unprivileged RLIMIT_MEMLOCK, and a
// preload cache that isn't resident is a latency risk, not a correctness
// one.
func lockPreloadedHead(frames []float32) {
	if len(frames) == 0 {
		return
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&frames[0])), len(frames)*4)
	_ = unix.Mlock(b)
}
