package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegressionMetrics(t *testing.T) {
	yTrue := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.0, MeanAbsoluteError(yTrue, yTrue))
	assert.Equal(t, 1.0, R2Score(yTrue, yTrue))
	assert.Equal(t, 0.5, MeanAbsoluteError(yTrue, []float64{1.5, 2.5, 2.5, 3.5}))
	assert.Equal(t, 0.0, R2Score(yTrue, []float64{2.5, 2.5, 2.5, 2.5}))
}

func TestConfusion(t *testing.T) {
	c := ConfusionAt([]int{1, 1, 0, 0, 1}, []float64{0.9, 0.4, 0.6, 0.1, 0.5}, 0.5)
	assert.Equal(t, Confusion{TruePositive: 2, FalsePositive: 1, TrueNegative: 1, FalseNegative: 1}, c)
	assert.InDelta(t, 2.0/3.0, c.Precision(), 1e-12)
	assert.InDelta(t, 2.0/3.0, c.Recall(), 1e-12)
	assert.InDelta(t, 2.0/3.0, c.F1(), 1e-12)
	assert.InDelta(t, 0.6, c.Accuracy(), 1e-12)
}

func TestROCAUC(t *testing.T) {
	assert.Equal(t, 1.0, ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}))
	assert.Equal(t, 0.0, ROCAUC([]int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9}))
	assert.Equal(t, 0.5, ROCAUC([]int{0, 1}, []float64{0.5, 0.5}))
	assert.Equal(t, 0.75, ROCAUC([]int{0, 1, 0, 1}, []float64{0.1, 0.4, 0.5, 0.8}))
	assert.True(t, math.IsNaN(ROCAUC([]int{1, 1}, []float64{0.3, 0.4})))
}
