//go:build headless

package main

import (
	"sync"

	"github.com/rtsampler/sfzcore/synth"
)

// headlessBackend substitutes for real audio output in CI and benchmarking,
// matching the teacher's build-tagged headless stand-in: it still pulls
// blocks through renderSource (so the render path is exercised end-to-end)
// but discards the bytes instead of opening a device.
type headlessBackend struct {
	src     *renderSource
	mutex   sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

func newBackend(s *synth.Synth, src *renderSource, sampleRate int) (backend, error) {
	return &headlessBackend{src: src}, nil
}

func (b *headlessBackend) Start() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.pump()
}

func (b *headlessBackend) pump() {
	defer close(b.done)
	buf := make([]byte, 4096)
	for {
		select {
		case <-b.stop:
			return
		default:
			b.src.Read(buf)
		}
	}
}

func (b *headlessBackend) Stop() {
	b.mutex.Lock()
	started := b.started
	b.started = false
	b.mutex.Unlock()
	if started {
		close(b.stop)
		<-b.done
	}
}

func (b *headlessBackend) Close() {
	b.Stop()
}

func (b *headlessBackend) IsStarted() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.started
}
