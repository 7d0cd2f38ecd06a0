// Package region holds the parsed SFZ region descriptor: the immutable,
// per-note matching and modulation data a Voice renders from. The text
// parser itself is out of scope (spec's external collaborator); this
// package's Loader is the core's consuming side of the parser's
// on_header/on_opcode event stream.
package region

import "strconv"

// Opcode is one `name=value` (or `nameN=value`) pair from an SFZ region,
// header, or control block. Parameter is nil when the opcode name carries
// no numeric infix (e.g. `pitch_keycenter`); when present it's the parsed
// integer (e.g. `eq3_freq` → Parameter=3).
type Opcode struct {
	Name      string
	Parameter *int
	Value     string
}

// Family splits an opcode name carrying a numeric infix into its
// de-numbered family name and the parameter value, e.g. "eq3_freq" →
// ("eq_freq", 3, true). Names with no digit run return (name, 0, false).
// This is how a raw token like "lfo02_freq" becomes the family
// "lfo_freq" with parameter 2, the same family every lfoN_freq opcode maps
// to regardless of N.
func (o Opcode) Family() (string, int, bool) {
	name := o.Name
	start := -1
	end := -1
	for i := 0; i < len(name); i++ {
		if name[i] >= '0' && name[i] <= '9' {
			if start < 0 {
				start = i
			}
			end = i + 1
		} else if start >= 0 {
			break
		}
	}
	if start < 0 {
		return name, 0, false
	}
	n, err := strconv.Atoi(name[start:end])
	if err != nil {
		return name, 0, false
	}
	return name[:start] + name[end:], n, true
}
