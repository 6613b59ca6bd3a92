package ml

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TrainOptions controls both training procedures. Zero values fall back to
// DefaultTrainOptions, except Seed: zero is a valid seed and is used as given.
type TrainOptions struct {
	Seed      int64
	Folds     int
	Alphas    []float64
	Trees     int
	TestRatio float64
	Workers   int
	Logger    *zap.Logger
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Seed:      42,
		Folds:     5,
		Alphas:    []float64{0.1, 1, 10},
		Trees:     300,
		TestRatio: 0.2,
	}
}

func (o TrainOptions) withDefaults() TrainOptions {
	d := DefaultTrainOptions()
	if o.Folds <= 0 {
		o.Folds = d.Folds
	}
	if len(o.Alphas) == 0 {
		o.Alphas = d.Alphas
	}
	if o.Trees <= 0 {
		o.Trees = d.Trees
	}
	if o.TestRatio <= 0 || o.TestRatio >= 1 {
		o.TestRatio = d.TestRatio
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// RegressionResult is everything a regression run produces. Pipeline is the
// served model; Diagnostic only feeds the importance report.
type RegressionResult struct {
	Pipeline    *Pipeline
	Search      *SearchResult
	Diagnostic  *Pipeline
	Importances []Importance
	TrainMAE    float64
	TrainR2     float64
	Rows        int
	Duration    time.Duration
}

// ClassificationResult is everything a classification run produces.
type ClassificationResult struct {
	Pipeline    *Pipeline
	Calibration Calibration
	Diagnostic  *Pipeline
	Importances []Importance
	AUC         float64
	Accuracy    float64
	TrainRows   int
	TestRows    int
	Duration    time.Duration
}

func TrainInsurance(ds *Dataset, opts TrainOptions) (*RegressionResult, error) {
	if err := expectTask(ds, InsuranceSchema(), InsuranceTarget); err != nil {
		return nil, err
	}
	return TrainRegressor(ds, opts)
}

func TrainDiabetes(ds *Dataset, opts TrainOptions) (*ClassificationResult, error) {
	if err := expectTask(ds, DiabetesSchema(), DiabetesTarget); err != nil {
		return nil, err
	}
	return TrainClassifier(ds, opts)
}

// TrainRegressor selects a ridge model by cross-validated MAE and fits a
// random forest on the full dataset for feature importances.
func TrainRegressor(ds *Dataset, opts TrainOptions) (*RegressionResult, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With(zap.String("target", ds.Target), zap.Int("rows", ds.Len()))
	start := time.Now()

	search, err := SearchRidge(ds, opts.Alphas, opts.Folds, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("ridge search: %w", err)
	}
	for _, score := range search.Scores {
		logger.Debug("ridge candidate", zap.Float64("alpha", score.Alpha), zap.Float64("cv_mae", score.MeanMAE))
	}
	logger.Info("ridge selected",
		zap.Float64("alpha", search.BestAlpha),
		zap.Float64("cv_mae", search.BestMAE),
		zap.Int("folds", search.Folds),
	)

	fitted, err := search.Pipeline.Predict(ds.Rows)
	if err != nil {
		return nil, err
	}

	forest := NewRandomForestRegressor(opts.Trees, opts.Seed)
	forest.Workers = opts.Workers
	diagnostic, importances, err := fitDiagnostic(ds, Regression, forest)
	if err != nil {
		return nil, err
	}

	result := &RegressionResult{
		Pipeline:    search.Pipeline,
		Search:      search,
		Diagnostic:  diagnostic,
		Importances: importances,
		TrainMAE:    MeanAbsoluteError(ds.Y, fitted),
		TrainR2:     R2Score(ds.Y, fitted),
		Rows:        ds.Len(),
		Duration:    time.Since(start),
	}
	logger.Info("regression training finished",
		zap.Float64("train_mae", result.TrainMAE),
		zap.Float64("train_r2", result.TrainR2),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// TrainClassifier fits a class-balanced logistic regression on a stratified
// training partition, calibrates the decision threshold on the held-out
// partition and fits a random forest on the full dataset for importances.
func TrainClassifier(ds *Dataset, opts TrainOptions) (*ClassificationResult, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With(zap.String("target", ds.Target), zap.Int("rows", ds.Len()))
	start := time.Now()

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	labels, err := ds.Labels()
	if err != nil {
		return nil, err
	}
	trainIdx, testIdx, err := StratifiedSplit(labels, opts.TestRatio, opts.Seed)
	if err != nil {
		return nil, err
	}
	train, test := ds.Subset(trainIdx), ds.Subset(testIdx)

	pipeline, err := NewPipeline(Classification, ds.Schema, NewLogisticRegression())
	if err != nil {
		return nil, err
	}
	if err := pipeline.Fit(train); err != nil {
		return nil, fmt.Errorf("logistic regression: %w", err)
	}
	prob, err := pipeline.PredictProba(test.Rows)
	if err != nil {
		return nil, err
	}
	testLabels := make([]int, len(testIdx))
	for i, j := range testIdx {
		testLabels[i] = labels[j]
	}

	calibration, err := CalibrateThreshold(testLabels, prob)
	if err != nil {
		return nil, err
	}
	auc := ROCAUC(testLabels, prob)
	logger.Info("threshold calibrated",
		zap.Float64("threshold", calibration.Threshold),
		zap.Float64("f1", calibration.F1),
		zap.Float64("auc", auc),
		zap.Int("train_rows", len(trainIdx)),
		zap.Int("test_rows", len(testIdx)),
	)

	forest := NewRandomForestClassifier(opts.Trees, opts.Seed)
	forest.Workers = opts.Workers
	diagnostic, importances, err := fitDiagnostic(ds, Classification, forest)
	if err != nil {
		return nil, err
	}

	result := &ClassificationResult{
		Pipeline:    pipeline,
		Calibration: calibration,
		Diagnostic:  diagnostic,
		Importances: importances,
		AUC:         auc,
		Accuracy:    ConfusionAt(testLabels, prob, calibration.Threshold).Accuracy(),
		TrainRows:   len(trainIdx),
		TestRows:    len(testIdx),
		Duration:    time.Since(start),
	}
	logger.Info("classification training finished",
		zap.Float64("accuracy", result.Accuracy),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func fitDiagnostic(ds *Dataset, kind Kind, forest *RandomForest) (*Pipeline, []Importance, error) {
	diagnostic, err := NewPipeline(kind, ds.Schema, forest)
	if err != nil {
		return nil, nil, err
	}
	if err := diagnostic.Fit(ds); err != nil {
		return nil, nil, fmt.Errorf("random forest: %w", err)
	}
	importances, err := diagnostic.FeatureImportances()
	if err != nil {
		return nil, nil, err
	}
	return diagnostic, importances, nil
}

func expectTask(ds *Dataset, schema Schema, target string) error {
	if ds == nil {
		return fmt.Errorf("%w: no dataset", ErrSchemaMismatch)
	}
	if ds.Target != target {
		return fmt.Errorf("%w: target is %q, want %q", ErrSchemaMismatch, ds.Target, target)
	}
	if !ds.Schema.Equal(schema) {
		return fmt.Errorf("%w: feature columns %v, want %v", ErrSchemaMismatch, ds.Schema.Names(), schema.Names())
	}
	return nil
}
