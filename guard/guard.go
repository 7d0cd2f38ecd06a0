// Package guard implements the cooperative handshake the control thread
// uses to reconfigure engine state (load a file, change sample rate, resize
// the voice pool) without ever blocking the audio thread. The audio thread
// only ever does two wait-free operations per callback: set in_callback,
// check allow_enter. The control thread does the spinning.
package guard

import (
	"sync/atomic"
	"time"
)

// Pair is the two-flag handshake: AllowEnter gates whether the audio thread
// is permitted to start a new callback, InCallback reports whether one is
// currently executing. A writer that wants exclusive access clears
// AllowEnter, then spins until InCallback goes false, performs its change,
// then sets AllowEnter again. If the audio thread isn't called for a while
// (host paused, stream stopped) the writer proceeds once InCallback reads
// false; there's no heartbeat requirement.
type Pair struct {
	allowEnter atomic.Bool
	inCallback atomic.Bool
}

// NewPair returns a Pair with entry allowed.
func NewPair() *Pair {
	p := &Pair{}
	p.allowEnter.Store(true)
	return p
}

// Enter is called once at the top of each audio callback. It reports
// whether the callback may proceed; if false, the callback must render
// silence and return immediately without touching any guarded state.
func (p *Pair) Enter() bool {
	if !p.allowEnter.Load() {
		return false
	}
	p.inCallback.Store(true)
	// Re-check after publishing in_callback: if a writer raced us and
	// cleared allow_enter between our first load and this store, back out
	// rather than let it believe the callback is idle while we're not.
	if !p.allowEnter.Load() {
		p.inCallback.Store(false)
		return false
	}
	return true
}

// Leave is called once at the end of each audio callback that Enter let
// through.
func (p *Pair) Leave() {
	p.inCallback.Store(false)
}

// DisableResult reports how long a Disable call had to wait for the audio
// thread to leave its callback.
type DisableResult struct {
	Waited time.Duration
}

// SpinWaitWarnThreshold is the wait duration past which a caller of Disable
// should log a diagnostic (Disable itself only reports Waited); the control
// thread blocking this long against a live audio thread usually means the
// callback is itself stuck.
const SpinWaitWarnThreshold = 100 * time.Millisecond

// Disable blocks the calling (control) goroutine until the audio thread is
// guaranteed not to be mid-callback and not permitted to start a new one,
// then returns a func that re-enables entry. Callers must always call the
// returned func, even on an early return from the guarded section.
func (p *Pair) Disable() (release func(), result DisableResult) {
	p.allowEnter.Store(false)
	start := time.Now()
	for p.inCallback.Load() {
		time.Sleep(time.Microsecond * 50)
	}
	result.Waited = time.Since(start)
	return func() { p.allowEnter.Store(true) }, result
}
