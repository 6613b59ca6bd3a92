package db

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "runs.db")))
	t.Cleanup(func() { Close() })
}

func TestTrainingLogRoundTrip(t *testing.T) {
	openTestDB(t)

	trainedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	runID, err := SaveTrainingLog(TrainingLog{
		ModelName:  "diabetes",
		ModelType:  "logistic_regression",
		Params:     map[string]any{"seed": 42, "test_ratio": 0.2},
		Metrics:    map[string]float64{"f1": 0.71, "threshold": 0.35, "auc": math.NaN()},
		DataPoints: 768,
		Duration:   1500 * time.Millisecond,
		TrainedAt:  trainedAt,
	})
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	logs, err := LoadTrainingLog("diabetes", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	got := logs[0]
	assert.Equal(t, runID, got.RunID)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Equal(t, "logistic_regression", got.ModelType)
	assert.Equal(t, map[string]float64{"f1": 0.71, "threshold": 0.35}, got.Metrics)
	assert.Equal(t, 42.0, got.Params["seed"])
	assert.Equal(t, 768, got.DataPoints)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, trainedAt.Equal(got.TrainedAt))
}

func TestLoadTrainingLogFiltersAndOrders(t *testing.T) {
	openTestDB(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"insurance", "diabetes", "insurance", "insurance"} {
		_, err := SaveTrainingLog(TrainingLog{
			ModelName: name,
			TrainedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := SaveTrainingLog(TrainingLog{
		ModelName: "diabetes",
		Status:    StatusFailed,
		Error:     "insufficient data",
		TrainedAt: base.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	all, err := LoadTrainingLog("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, StatusFailed, all[0].Status)
	assert.Equal(t, "insufficient data", all[0].Error)

	insurance, err := LoadTrainingLog("insurance", 2)
	require.NoError(t, err)
	require.Len(t, insurance, 2)
	assert.True(t, insurance[0].TrainedAt.After(insurance[1].TrainedAt))
	assert.True(t, base.Add(3*time.Hour).Equal(insurance[0].TrainedAt))
}

func TestTrainingLogErrors(t *testing.T) {
	Close()
	_, err := SaveTrainingLog(TrainingLog{ModelName: "insurance"})
	assert.Error(t, err)
	_, err = LoadTrainingLog("", 1)
	assert.Error(t, err)
	assert.False(t, Initialized())

	openTestDB(t)
	_, err = SaveTrainingLog(TrainingLog{})
	assert.Error(t, err)

	id := NewRunID()
	_, err = SaveTrainingLog(TrainingLog{RunID: id, ModelName: "insurance"})
	require.NoError(t, err)
	_, err = SaveTrainingLog(TrainingLog{RunID: id, ModelName: "insurance"})
	assert.Error(t, err)
}
