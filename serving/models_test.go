package serving

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabpredict/ml"
)

func TestLoadAndPredict(t *testing.T) {
	store := committedStore(t, 0.4)
	models, err := Load(store, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.4, models.Threshold())
	assert.False(t, models.Info().InsuranceCreatedAt.IsZero())

	cheap := DefaultInsuranceInput()
	expensive := DefaultInsuranceInput()
	expensive.Smoker = "yes"
	expensive.Age = 60

	low, err := models.PredictInsurance(cheap)
	require.NoError(t, err)
	high, err := models.PredictInsurance(expensive)
	require.NoError(t, err)
	assert.Greater(t, high.Prediction, low.Prediction)
	assert.Equal(t, round(low.Prediction, 2), low.Prediction)

	positive := DiabetesInput{Pregnancies: 9, Glucose: 200, BloodPressure: 95, SkinThickness: 42, Insulin: 310, BMI: 42, DiabetesPedigreeFunction: 1.6, Age: 60}
	got, err := models.PredictDiabetes(positive)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Prediction)
	assert.Equal(t, 0.4, got.Threshold)
	assert.Equal(t, round(got.Probability, 4), got.Probability)

	negative := DiabetesInput{Pregnancies: 1, Glucose: 85, BloodPressure: 62, SkinThickness: 16, Insulin: 55, BMI: 22, DiabetesPedigreeFunction: 0.25, Age: 25}
	got, err = models.PredictDiabetes(negative)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Prediction)
}

func TestPredictionMatchesPipeline(t *testing.T) {
	store := committedStore(t, 0.5)
	models, err := Load(store, nil)
	require.NoError(t, err)
	direct, _, err := store.LoadPipeline(ml.TaskDiabetes)
	require.NoError(t, err)

	in := DefaultDiabetesInput()
	prob, err := direct.PredictProba([]ml.Row{in.Row()})
	require.NoError(t, err)

	got, err := models.PredictDiabetes(in)
	require.NoError(t, err)
	assert.Equal(t, round(prob[0], 4), got.Probability)
	assert.Equal(t, prob[0] >= 0.5, got.Prediction == 1)
}

func TestThresholdBoundaries(t *testing.T) {
	in := DefaultDiabetesInput()

	always, err := NewModels(insurancePipeline(t), diabetesPipeline(t), 0)
	require.NoError(t, err)
	got, err := always.PredictDiabetes(in)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Prediction)

	_, err = NewModels(insurancePipeline(t), diabetesPipeline(t), 1.2)
	assert.Error(t, err)
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	models, err := NewModels(insurancePipeline(t), diabetesPipeline(t), 0.5)
	require.NoError(t, err)

	bad := DefaultInsuranceInput()
	bad.Age = 150
	bad.Region = "midwest"
	_, err = models.PredictInsurance(bad)
	require.ErrorIs(t, err, ErrValidation)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
	assert.Equal(t, "age", verrs[0].Field)
	assert.Equal(t, "region", verrs[1].Field)

	dbad := DefaultDiabetesInput()
	dbad.DiabetesPedigreeFunction = 3.5
	_, err = models.PredictDiabetes(dbad)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewModelsChecksTasks(t *testing.T) {
	ins, dia := insurancePipeline(t), diabetesPipeline(t)
	_, err := NewModels(dia, ins, 0.5)
	assert.ErrorIs(t, err, ml.ErrSchemaMismatch)
	_, err = NewModels(nil, dia, 0.5)
	assert.Error(t, err)
}

func TestLoadFailsWithoutArtifacts(t *testing.T) {
	store := committedStore(t, 0.5)
	require.NoError(t, os.Remove(store.ThresholdPath(ml.TaskDiabetes)))
	_, err := Load(store, nil)
	assert.Error(t, err)
}
