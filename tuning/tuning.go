// Package tuning maps MIDI key numbers to playback frequencies, supporting
// equal temperament, an optional Scala-derived per-key cents map, and the
// Railsback stretch curve pianos are tuned to. Reading a .scl file is the
// parser's job (out of scope, per spec.md); this package only applies an
// already-parsed map.
package tuning

import "math"

// A4Frequency is the standard reference pitch in Hz.
const A4Frequency = 440.0

// a4MidiKey is MIDI note 69, A4 in the standard SFZ/MIDI convention.
const a4MidiKey = 69

// Table resolves a MIDI key to a frequency in Hz. An empty Table behaves as
// standard 12-TET.
type Table struct {
	centsOffset  map[int]float64 // key -> cents deviation from 12-TET, from a Scala map
	railsback    bool
}

// NewTable returns a 12-TET table with no stretch and no Scala offsets.
func NewTable() *Table {
	return &Table{centsOffset: map[int]float64{}}
}

// SetScalaOffsets installs per-key cents deviations from 12-TET, as derived
// from a parsed Scala (.scl) file mapped onto MIDI keys by the host.
func (t *Table) SetScalaOffsets(offsets map[int]float64) {
	t.centsOffset = offsets
}

// SetRailsbackStretch enables or disables the Railsback stretch curve, which
// sharpens high notes and flattens low ones to match how physical pianos are
// tuned.
func (t *Table) SetRailsbackStretch(enabled bool) { t.railsback = enabled }

// Frequency returns the Hz for the given MIDI key, including any Scala
// offset and Railsback stretch.
func (t *Table) Frequency(key int) float64 {
	cents := 100.0 * float64(key-a4MidiKey)
	if t.centsOffset != nil {
		if c, ok := t.centsOffset[key]; ok {
			cents += c
		}
	}
	if t.railsback {
		cents += railsbackCents(key)
	}
	return A4Frequency * math.Pow(2, cents/1200)
}

// railsbackCents approximates the classic Railsback curve with a cubic in
// the key's distance from A4: bass notes flatten, treble notes sharpen, both
// tapering toward zero near the middle of the keyboard.
func railsbackCents(key int) float64 {
	d := float64(key-a4MidiKey) / 44 // normalize roughly to [-1, 1] over an 88-key span
	return 12 * d * d * d
}
