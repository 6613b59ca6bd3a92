package ml

// Estimator is a supervised model over a preprocessed feature matrix.
type Estimator interface {
	Fit(features [][]float64, targets []float64) error
	Predict(features [][]float64) ([]float64, error)
}

// ProbabilisticEstimator is a binary classifier that also reports p(y=1).
type ProbabilisticEstimator interface {
	Estimator
	PredictProba(features [][]float64) ([]float64, error)
}

// ImportanceEstimator exposes per-feature importance scores after Fit.
type ImportanceEstimator interface {
	Estimator
	FeatureImportances() []float64
}
