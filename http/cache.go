package http

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"tabpredict/ml"
	"tabpredict/monitoring"
	"tabpredict/serving"
)

// predictionCache memoizes responses by validated input. Models never change
// while the process runs, so entries never go stale.
type predictionCache struct {
	insurance *lru.Cache[serving.InsuranceInput, serving.InsurancePrediction]
	diabetes  *lru.Cache[serving.DiabetesInput, serving.DiabetesPrediction]
}

// newPredictionCache returns nil when size is not positive, which disables caching.
func newPredictionCache(size int) (*predictionCache, error) {
	if size <= 0 {
		return nil, nil
	}
	ins, err := lru.New[serving.InsuranceInput, serving.InsurancePrediction](size)
	if err != nil {
		return nil, err
	}
	dia, err := lru.New[serving.DiabetesInput, serving.DiabetesPrediction](size)
	if err != nil {
		return nil, err
	}
	return &predictionCache{insurance: ins, diabetes: dia}, nil
}

func (c *predictionCache) getInsurance(in serving.InsuranceInput) (serving.InsurancePrediction, bool) {
	if c == nil {
		return serving.InsurancePrediction{}, false
	}
	out, ok := c.insurance.Get(in)
	monitoring.RecordCacheLookup(ml.TaskInsurance, ok)
	return out, ok
}

func (c *predictionCache) addInsurance(in serving.InsuranceInput, out serving.InsurancePrediction) {
	if c != nil {
		c.insurance.Add(in, out)
	}
}

func (c *predictionCache) getDiabetes(in serving.DiabetesInput) (serving.DiabetesPrediction, bool) {
	if c == nil {
		return serving.DiabetesPrediction{}, false
	}
	out, ok := c.diabetes.Get(in)
	monitoring.RecordCacheLookup(ml.TaskDiabetes, ok)
	return out, ok
}

func (c *predictionCache) addDiabetes(in serving.DiabetesInput, out serving.DiabetesPrediction) {
	if c != nil {
		c.diabetes.Add(in, out)
	}
}

func (c *predictionCache) len() int {
	if c == nil {
		return 0
	}
	return c.insurance.Len() + c.diabetes.Len()
}
