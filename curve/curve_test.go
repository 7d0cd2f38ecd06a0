package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredefinedLinearEndpoints(t *testing.T) {
	c := Predefined(Linear)
	assert.InDelta(t, 0, c.Eval(0), 1e-6)
	assert.InDelta(t, 1, c.Eval(127), 1e-6)
}

func TestPredefinedBipolarEndpoints(t *testing.T) {
	c := Predefined(Bipolar)
	assert.InDelta(t, -1, c.Eval(0), 1e-6)
	assert.InDelta(t, 1, c.Eval(127), 1e-6)
}

func TestPredefinedInverseIsMirroredLinear(t *testing.T) {
	c := Predefined(Inverse)
	assert.InDelta(t, 1, c.Eval(0), 1e-6)
	assert.InDelta(t, 0, c.Eval(127), 1e-6)
}

func TestPredefinedSquaredMonotonic(t *testing.T) {
	c := Predefined(Squared)
	prev := float32(-1)
	for i := 0; i <= 127; i++ {
		v := c.Eval(i)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestPredefinedOutOfRangeIndexFallsBackToLinear(t *testing.T) {
	c := Predefined(999)
	assert.InDelta(t, 0, c.Eval(0), 1e-6)
	assert.InDelta(t, 1, c.Eval(127), 1e-6)
}

func TestBuilderEndAnchorsUnsetBoundaryPoints(t *testing.T) {
	b := NewBuilder()
	b.Set(32, 0.25)
	b.Set(96, 0.75)
	c := b.Build()

	// Below the first defined point, value holds flat at that point's value.
	assert.InDelta(t, 0.25, c.Eval(0), 1e-6)
	assert.InDelta(t, 0.25, c.Eval(32), 1e-6)
	// Above the last defined point, value holds flat too.
	assert.InDelta(t, 0.75, c.Eval(127), 1e-6)
	assert.InDelta(t, 0.75, c.Eval(96), 1e-6)
	// Midpoint between the two defined points interpolates linearly.
	assert.InDelta(t, 0.5, c.Eval(64), 0.02)
}

func TestBuilderNoPointsFallsBackToLinear(t *testing.T) {
	b := NewBuilder()
	c := b.Build()
	assert.InDelta(t, 0, c.Eval(0), 1e-6)
	assert.InDelta(t, 1, c.Eval(127), 1e-6)
}

func TestBuilderSinglePointIsFlatEverywhere(t *testing.T) {
	b := NewBuilder()
	b.Set(64, 0.5)
	c := b.Build()
	assert.InDelta(t, 0.5, c.Eval(0), 1e-6)
	assert.InDelta(t, 0.5, c.Eval(127), 1e-6)
}

func TestEvalClampsOutOfRangeCC(t *testing.T) {
	c := Predefined(Linear)
	assert.Equal(t, c.Eval(0), c.Eval(-5))
	assert.Equal(t, c.Eval(127), c.Eval(500))
}

func TestEvalNormalizedMatchesEval(t *testing.T) {
	c := Predefined(Linear)
	assert.InDelta(t, c.Eval(0), c.EvalNormalized(0), 1e-6)
	assert.InDelta(t, c.Eval(127), c.EvalNormalized(1), 1e-6)
}
