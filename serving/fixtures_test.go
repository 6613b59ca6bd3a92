package serving

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tabpredict/artifact"
	"tabpredict/ml"
)

func insurancePipeline(t *testing.T) *ml.Pipeline {
	t.Helper()
	ds := &ml.Dataset{Schema: ml.InsuranceSchema(), Target: ml.InsuranceTarget}
	regions := []string{"southwest", "southeast", "northwest", "northeast"}
	for i := 0; i < 40; i++ {
		in := InsuranceInput{
			Age:      18 + (i*7)%47,
			BMI:      18 + float64((i*5)%25),
			Children: i % 4,
			Sex:      []string{"male", "female"}[i%2],
			Smoker:   []string{"no", "no", "no", "yes"}[i%4],
			Region:   regions[(i/2)%4],
		}
		charges := 2000 + 250*float64(in.Age) + 100*in.BMI
		if in.Smoker == "yes" {
			charges += 20000
		}
		ds.Rows = append(ds.Rows, in.Row())
		ds.Y = append(ds.Y, charges)
	}
	p, err := ml.NewPipeline(ml.Regression, ds.Schema, ml.NewRidge(1))
	require.NoError(t, err)
	require.NoError(t, p.Fit(ds))
	return p
}

func diabetesPipeline(t *testing.T) *ml.Pipeline {
	t.Helper()
	ds := &ml.Dataset{Schema: ml.DiabetesSchema(), Target: ml.DiabetesTarget}
	for i := 0; i < 30; i++ {
		neg := DiabetesInput{
			Pregnancies: i % 3, Glucose: 80 + i%15, BloodPressure: 60 + i%10, SkinThickness: 15 + i%5,
			Insulin: 50 + i%20, BMI: 21 + 0.5*float64(i%8), DiabetesPedigreeFunction: 0.2 + 0.05*float64(i%5), Age: 22 + i%10,
		}
		ds.Rows = append(ds.Rows, neg.Row())
		ds.Y = append(ds.Y, 0)
		if i%2 == 0 {
			pos := DiabetesInput{
				Pregnancies: 8 + i%3, Glucose: 190 + i%15, BloodPressure: 90 + i%10, SkinThickness: 40 + i%5,
				Insulin: 300 + i%20, BMI: 40 + 0.5*float64(i%8), DiabetesPedigreeFunction: 1.5 + 0.05*float64(i%5), Age: 55 + i%10,
			}
			ds.Rows = append(ds.Rows, pos.Row())
			ds.Y = append(ds.Y, 1)
		}
	}
	p, err := ml.NewPipeline(ml.Classification, ds.Schema, ml.NewLogisticRegression())
	require.NoError(t, err)
	require.NoError(t, p.Fit(ds))
	return p
}

// committedStore writes a full set of served artifacts into a temp store.
func committedStore(t *testing.T, threshold float64) *artifact.Store {
	t.Helper()
	root := t.TempDir()
	store := artifact.NewStore(filepath.Join(root, "models"), filepath.Join(root, "reports"), nil)
	_, err := store.Commit(ml.TaskInsurance, artifact.Bundle{Pipeline: insurancePipeline(t)})
	require.NoError(t, err)
	_, err = store.Commit(ml.TaskDiabetes, artifact.Bundle{Pipeline: diabetesPipeline(t), Threshold: &threshold})
	require.NoError(t, err)
	return store
}
