package main

import (
	"math"
	"time"

	"github.com/rtsampler/sfzcore/buffer"
	"github.com/rtsampler/sfzcore/simd"
	"github.com/rtsampler/sfzcore/synth"
	"github.com/rtsampler/sfzcore/telemetry"
)

// renderSource turns Synth.RenderBlock into an io.Reader of interleaved
// 32-bit float PCM, the shape every backend (oto, headless) wants. It
// renders one fixed-size block at a time and keeps whatever bytes a caller's
// undersized Read didn't consume, so backend buffer sizes never have to line
// up with the engine's block size.
type renderSource struct {
	s               *synth.Synth
	framesPerBlock  int
	scratchL        []float32
	scratchR        []float32
	interleaved     []float32
	leftover        []byte
	sidecar         *telemetry.Sidecar
	samplesRendered int64
}

func newRenderSource(s *synth.Synth, framesPerBlock int, sidecar *telemetry.Sidecar) *renderSource {
	return &renderSource{
		s:              s,
		framesPerBlock: framesPerBlock,
		scratchL:       make([]float32, framesPerBlock),
		scratchR:       make([]float32, framesPerBlock),
		interleaved:    make([]float32, framesPerBlock*2),
		sidecar:        sidecar,
	}
}

// Read satisfies io.Reader, filling p with interleaved little-endian
// float32 stereo samples.
func (r *renderSource) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.leftover) > 0 {
			c := copy(p[n:], r.leftover)
			n += c
			r.leftover = r.leftover[c:]
			continue
		}
		r.renderBlock()
		r.leftover = float32BytesLE(r.interleaved)
	}
	return n, nil
}

func (r *renderSource) renderBlock() {
	start := time.Now()
	span := buffer.NewAudioSpan(r.scratchL, r.scratchR)
	r.s.RenderBlock(span)
	simd.WriteInterleaved(r.interleaved, r.scratchL, r.scratchR)
	blockStart := r.samplesRendered
	r.samplesRendered += int64(r.framesPerBlock)

	if r.sidecar != nil {
		elapsedUs := time.Since(start).Microseconds()
		r.sidecar.WriteRow(blockStart, r.s.GetNumActiveVoices(), elapsedUs, 0)
	}
}

// float32BytesLE reinterprets a float32 slice as little-endian bytes without
// assuming the host is little-endian (unlike the teacher's unsafe-pointer
// cast, which only works on a little-endian machine — this demo host trades
// a copy for portability since it is not on the audio-rendering hot path
// spec.md forbids allocating on).
func float32BytesLE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, f := range samples {
		bits := math.Float32bits(f)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}
