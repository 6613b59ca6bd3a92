package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRidgeSelectsLowestError(t *testing.T) {
	ds := insuranceDataset(50)

	result, err := SearchRidge(ds, []float64{0.1, 1, 10}, 5, 0)
	require.NoError(t, err)
	require.Len(t, result.Scores, 3)
	assert.Equal(t, 5, result.Folds)

	for c, score := range result.Scores {
		assert.Equal(t, []float64{0.1, 1, 10}[c], score.Alpha)
		assert.Len(t, score.FoldMAE, 5)
		assert.GreaterOrEqual(t, score.MeanMAE, result.BestMAE)
	}
	assert.Contains(t, []float64{0.1, 1, 10}, result.BestAlpha)
	require.NotNil(t, result.Pipeline)
	assert.Equal(t, Regression, result.Pipeline.Kind())
}

func TestSearchRidgeIndependentOfWorkers(t *testing.T) {
	ds := insuranceDataset(30)

	serial, err := SearchRidge(ds, []float64{0.1, 1, 10}, 5, 1)
	require.NoError(t, err)
	parallel, err := SearchRidge(ds, []float64{0.1, 1, 10}, 5, 3)
	require.NoError(t, err)

	assert.Equal(t, serial.Scores, parallel.Scores)
	assert.Equal(t, serial.BestAlpha, parallel.BestAlpha)
}

func TestSearchRidgeTieKeepsFirstAlpha(t *testing.T) {
	ds := insuranceDataset(10)

	result, err := SearchRidge(ds, []float64{1, 1}, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, result.Scores[0].MeanMAE, result.Scores[1].MeanMAE)
	assert.Equal(t, 1.0, result.BestAlpha)
	assert.Equal(t, result.Scores[0].MeanMAE, result.BestMAE)
}

func TestSearchRidgeSmallDatasets(t *testing.T) {
	ds := insuranceDataset(3)
	result, err := SearchRidge(ds, []float64{0.1, 1, 10}, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Folds)

	_, err = SearchRidge(insuranceDataset(1), []float64{1}, 5, 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
