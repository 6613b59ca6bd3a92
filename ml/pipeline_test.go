package ml

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, p *Pipeline) *Pipeline {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(p))
	var decoded Pipeline
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))
	return &decoded
}

func TestPipelineRoundTripRegression(t *testing.T) {
	ds := insuranceDataset(40)
	p, err := NewPipeline(Regression, ds.Schema, NewRidge(1))
	require.NoError(t, err)
	require.NoError(t, p.Fit(ds))

	inputs := []Row{
		insuranceRow(30, 25, 0, "male", "no", "southwest"),
		insuranceRow(61, 38.2, 3, "female", "yes", "northeast"),
		insuranceRow(45, 29, 1, "other", "no", "mars"),
	}
	want, err := p.Predict(inputs)
	require.NoError(t, err)

	decoded := roundTrip(t, p)
	got, err := decoded.Predict(inputs)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, Regression, decoded.Kind())
	assert.True(t, decoded.Schema().Equal(InsuranceSchema()))
	assert.Equal(t, p.FeatureNames(), decoded.FeatureNames())
}

func TestPipelineRoundTripClassification(t *testing.T) {
	ds := separableDiabetes(20, 10)
	for _, model := range []Estimator{NewLogisticRegression(), NewRandomForestClassifier(5, 3)} {
		p, err := NewPipeline(Classification, ds.Schema, model)
		require.NoError(t, err)
		require.NoError(t, p.Fit(ds))

		want, err := p.PredictProba(ds.Rows)
		require.NoError(t, err)
		got, err := roundTrip(t, p).PredictProba(ds.Rows)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestPipelineGuards(t *testing.T) {
	_, err := NewPipeline(Classification, DiabetesSchema(), NewRidge(1))
	assert.Error(t, err)

	p, err := NewPipeline(Regression, InsuranceSchema(), NewRidge(1))
	require.NoError(t, err)
	_, err = p.Predict([]Row{insuranceRow(30, 25, 0, "male", "no", "southwest")})
	assert.ErrorIs(t, err, ErrNotFitted)

	var buf bytes.Buffer
	assert.Error(t, gob.NewEncoder(&buf).Encode(p))

	assert.ErrorIs(t, p.Fit(separableDiabetes(3, 3)), ErrSchemaMismatch)

	require.NoError(t, p.Fit(insuranceDataset(10)))
	assert.Error(t, p.Fit(insuranceDataset(10)))
	_, err = p.PredictProba(insuranceDataset(2).Rows)
	assert.Error(t, err)
	_, err = p.FeatureImportances()
	assert.Error(t, err)
}
