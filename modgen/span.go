package modgen

// ModulationSpan is the lazy per-block output a modulation generator hands
// to its consumer. Generators whose output doesn't change over a block
// (silenced LFO, idle envelope, a CC-driven modulation with no CC change
// this block) set IsInvariant so the consumer can read Constant once and
// skip the per-sample loop entirely, instead of writing (and the consumer
// re-reading) a full block of identical values.
type ModulationSpan struct {
	Values     []float64 // valid only when !IsInvariant; len == block size
	Constant   float64   // valid only when IsInvariant
	IsInvariant bool
}

// InvariantSpan builds a ModulationSpan reporting a single constant value
// for the whole block.
func InvariantSpan(v float64) ModulationSpan {
	return ModulationSpan{Constant: v, IsInvariant: true}
}

// VaryingSpan builds a ModulationSpan carrying one value per sample.
func VaryingSpan(values []float64) ModulationSpan {
	return ModulationSpan{Values: values}
}

// At returns the value at sample index i, whether the span is invariant or
// not, so a consumer that doesn't want to special-case IsInvariant can just
// call At in a loop (at the cost of the branch IsInvariant exists to let
// callers skip).
func (s ModulationSpan) At(i int) float64 {
	if s.IsInvariant {
		return s.Constant
	}
	return s.Values[i]
}
