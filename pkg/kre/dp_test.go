package kre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleFixedLevels(t *testing.T) {
	assert.Equal(t, 0.0, ScaleFixed(NoiseNone, 5, 10))
	assert.Equal(t, 0.2, ScaleFixed(NoiseLow, 5, 10))
	assert.Equal(t, 0.5, ScaleFixed(NoiseMedium, 5, 10))
	assert.Equal(t, 2.0, ScaleFixed(NoiseHigh, 5, 10))
}

func TestScaleSigmoidNoneIsZero(t *testing.T) {
	assert.Equal(t, 0.0, ScaleSigmoid(NoiseNone, 5, 10))
}

func TestScaleSigmoidGrowsWithRatio(t *testing.T) {
	small := ScaleSigmoid(NoiseHigh, 1, 100)
	large := ScaleSigmoid(NoiseHigh, 90, 100)
	assert.Less(t, small, large)
}

// TestClampToDBSizePreservesInvariant covers P3: less'+greater' <= |D_i|
// after clamping, regardless of how far DP noise pushed the raw counts.
func TestClampToDBSizePreservesInvariant(t *testing.T) {
	cases := []struct{ less, greater, size int }{
		{10, 10, 15},
		{0, 0, 0},
		{5, 0, 3},
		{100, 100, 1},
	}
	for _, c := range cases {
		less, greater := clampToDBSize(c.less, c.greater, c.size)
		assert.LessOrEqual(t, less+greater, c.size)
		assert.GreaterOrEqual(t, less, 0)
		assert.GreaterOrEqual(t, greater, 0)
	}
}

func TestClampToDBSizeNoopWhenUnderBudget(t *testing.T) {
	less, greater := clampToDBSize(2, 3, 10)
	assert.Equal(t, 2, less)
	assert.Equal(t, 3, greater)
}

func TestLaplaceSampleZeroSigmaIsZero(t *testing.T) {
	d := &dpParty{}
	eta, err := d.laplaceSample(0)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, eta)
}
