// Package telemetry is the ambient observability stack a host binds to a
// running Synth: structured diagnostic logging (load warnings, dropped
// notes) and the optional per-block CSV sidecar spec.md §6
// names. Neither is on the audio-rendering path's hot path by construction —
// Sidecar.WriteRow is meant to be called once per RenderBlock from the
// control/host side of the callback, not from inside Synth itself, so a slow
// disk write never delays the next block.
package telemetry

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	lumberjack "gopkg.in/lumberjack.v2"
)

// NewLogger builds a charmbracelet/log logger at the given level, writing to
// w. This is the same logger type Synth.SetLogger accepts; cmd/sfzplay
// constructs one here instead of reaching into synth directly so the demo
// host's load diagnostics and the Synth's own warnings share one formatting.
// Errors that end the run (backend, config load) are printed by main with
// fmt, not through this logger.
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.New(w)
	l.SetLevel(level)
	l.SetReportTimestamp(true)
	return l
}

// csvHeader is the exact column set spec.md §6 specifies for the logging
// sidecar.
const csvHeader = "time_samples,num_active_voices,callback_duration_us,file_wait_time_us\n"

// Sidecar writes one CSV row per rendered block to a lumberjack-rotated file,
// so a long-running host session doesn't grow one file unboundedly. It is
// safe for concurrent use, though in practice only the control/host thread
// that drives the audio callback writes to it.
type Sidecar struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewSidecar opens (creating if needed) a rotating CSV sidecar at path. The
// rotation policy mirrors a conservative long-session default: 50MB per
// segment, keep 5 rotated segments, no compression (CSV compresses well
// enough under gzip at the shell level if a host wants it, and skipping it
// here keeps the write path simple).
func NewSidecar(path string) (*Sidecar, error) {
	s := &Sidecar{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 5,
			Compress:   false,
		},
	}
	if _, err := s.out.Write([]byte(csvHeader)); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteRow appends one block's metrics. timeSamples is the running sample
// clock at block start; callbackDurationUs and fileWaitTimeUs are measured
// by the caller around RenderBlock and any blocking file-wait it is aware
// of (the core itself never blocks on file I/O, but a host embedding a
// synchronous preload call outside RenderBlock can attribute that wait here).
func (s *Sidecar) WriteRow(timeSamples int64, numActiveVoices int, callbackDurationUs, fileWaitTimeUs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "%d,%d,%d,%d\n", timeSamples, numActiveVoices, callbackDurationUs, fileWaitTimeUs)
	return err
}

// Close flushes and closes the underlying rotated file.
func (s *Sidecar) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
