package http

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tabpredict/ml"
	"tabpredict/serving"
)

func testModels(t *testing.T, threshold float64) *serving.Models {
	t.Helper()

	ins := &ml.Dataset{Schema: ml.InsuranceSchema(), Target: ml.InsuranceTarget}
	for i := 0; i < 24; i++ {
		in := serving.InsuranceInput{
			Age:      20 + i*2,
			BMI:      20 + float64(i%10),
			Children: i % 3,
			Sex:      []string{"male", "female"}[i%2],
			Smoker:   []string{"no", "yes", "no"}[i%3],
			Region:   []string{"southwest", "southeast", "northwest", "northeast"}[i%4],
		}
		y := 3000 + 240*float64(in.Age)
		if in.Smoker == "yes" {
			y += 18000
		}
		ins.Rows = append(ins.Rows, in.Row())
		ins.Y = append(ins.Y, y)
	}
	insurance, err := ml.NewPipeline(ml.Regression, ins.Schema, ml.NewRidge(1))
	require.NoError(t, err)
	require.NoError(t, insurance.Fit(ins))

	dia := &ml.Dataset{Schema: ml.DiabetesSchema(), Target: ml.DiabetesTarget}
	for i := 0; i < 20; i++ {
		in := serving.DefaultDiabetesInput()
		in.Glucose = 80 + i
		in.Age = 25 + i%10
		label := 0.0
		if i%2 == 1 {
			in.Glucose += 100
			in.BMI = 40
			label = 1
		}
		dia.Rows = append(dia.Rows, in.Row())
		dia.Y = append(dia.Y, label)
	}
	diabetes, err := ml.NewPipeline(ml.Classification, dia.Schema, ml.NewLogisticRegression())
	require.NoError(t, err)
	require.NoError(t, diabetes.Fit(dia))

	models, err := serving.NewModels(insurance, diabetes, threshold)
	require.NoError(t, err)
	return models
}
