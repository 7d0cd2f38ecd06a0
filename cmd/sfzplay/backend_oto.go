//go:build !headless && !jack

package main

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/rtsampler/sfzcore/synth"
)

// otoBackend drives the host's default audio output via oto, adapted from
// the teacher's OtoPlayer: a context plus a single player reading from
// whatever io.Reader it was handed. The teacher's version stored the sound
// source behind an atomic.Pointer so its Read callback never blocked on a
// lock; renderSource has no mutable setup step after construction, so it is
// handed straight to ctx.NewPlayer and the backend keeps no field for it.
type otoBackend struct {
	ctx     *oto.Context
	player  *oto.Player
	mutex   sync.Mutex
	started bool
}

// newBackend ignores s: oto has no live MIDI input of its own, so the
// portable default backend is driven entirely by the CLI-specified note in
// cmd/sfzplay's main, same as the headless backend.
func newBackend(s *synth.Synth, src *renderSource, sampleRate int) (backend, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("sfzplay: open audio output: %w", err)
	}
	<-ready

	return &otoBackend{
		ctx:    ctx,
		player: ctx.NewPlayer(src),
	}, nil
}

func (b *otoBackend) Start() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !b.started {
		b.player.Play()
		b.started = true
	}
}

func (b *otoBackend) Stop() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.started {
		b.player.Pause()
		b.started = false
	}
}

func (b *otoBackend) Close() {
	b.Stop()
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.player.Close()
}

func (b *otoBackend) IsStarted() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.started
}
