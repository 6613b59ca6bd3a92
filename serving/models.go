package serving

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"tabpredict/artifact"
	"tabpredict/ml"
	"tabpredict/monitoring"
)

// Models is the process-wide serving state. It is built once before the HTTP
// server starts and never changes afterwards; new artifacts need a restart.
type Models struct {
	insurance     *ml.Pipeline
	diabetes      *ml.Pipeline
	threshold     float64
	insuranceMeta artifact.Meta
	diabetesMeta  artifact.Meta
	loadedAt      time.Time
}

// InsurancePrediction is the response of the insurance model.
type InsurancePrediction struct {
	Prediction float64 `json:"prediction"`
}

// DiabetesPrediction is the response of the diabetes model.
type DiabetesPrediction struct {
	Probability float64 `json:"probability"`
	Threshold   float64 `json:"threshold"`
	Prediction  int     `json:"prediction"`
}

// Info describes what was loaded.
type Info struct {
	InsuranceCreatedAt time.Time `json:"insurance_created_at"`
	DiabetesCreatedAt  time.Time `json:"diabetes_created_at"`
	Threshold          float64   `json:"threshold_diabetes"`
	LoadedAt           time.Time `json:"loaded_at"`
}

// Load reads both served pipelines and the diabetes threshold from store.
func Load(store *artifact.Store, logger *zap.Logger) (*Models, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	insurance, insMeta, err := store.LoadPipeline(ml.TaskInsurance)
	if err != nil {
		return nil, fmt.Errorf("load insurance model: %w", err)
	}
	diabetes, diaMeta, err := store.LoadPipeline(ml.TaskDiabetes)
	if err != nil {
		return nil, fmt.Errorf("load diabetes model: %w", err)
	}
	threshold, err := store.ReadThreshold(ml.TaskDiabetes)
	if err != nil {
		return nil, fmt.Errorf("load diabetes threshold: %w", err)
	}

	m, err := NewModels(insurance, diabetes, threshold)
	if err != nil {
		return nil, err
	}
	m.insuranceMeta, m.diabetesMeta = insMeta, diaMeta

	monitoring.SetModelInfo(ml.TaskInsurance, insMeta.CreatedAt, nil)
	monitoring.SetModelInfo(ml.TaskDiabetes, diaMeta.CreatedAt, &threshold)
	logger.Info("models loaded",
		zap.String("models_dir", store.ModelsDir()),
		zap.Time("insurance_created_at", insMeta.CreatedAt),
		zap.Time("diabetes_created_at", diaMeta.CreatedAt),
		zap.Float64("threshold", threshold),
	)
	return m, nil
}

// NewModels checks that each pipeline fits its task before wrapping them.
func NewModels(insurance, diabetes *ml.Pipeline, threshold float64) (*Models, error) {
	if insurance == nil || diabetes == nil {
		return nil, errors.New("both pipelines are required")
	}
	if insurance.Kind() != ml.Regression || !insurance.Schema().Equal(ml.InsuranceSchema()) {
		return nil, fmt.Errorf("%w: insurance pipeline is %v over %v", ml.ErrSchemaMismatch, insurance.Kind(), insurance.Schema().Names())
	}
	if diabetes.Kind() != ml.Classification || !diabetes.Schema().Equal(ml.DiabetesSchema()) {
		return nil, fmt.Errorf("%w: diabetes pipeline is %v over %v", ml.ErrSchemaMismatch, diabetes.Kind(), diabetes.Schema().Names())
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0, 1]", threshold)
	}
	return &Models{insurance: insurance, diabetes: diabetes, threshold: threshold, loadedAt: time.Now()}, nil
}

func (m *Models) Threshold() float64 {
	return m.threshold
}

func (m *Models) Info() Info {
	return Info{
		InsuranceCreatedAt: m.insuranceMeta.CreatedAt,
		DiabetesCreatedAt:  m.diabetesMeta.CreatedAt,
		Threshold:          m.threshold,
		LoadedAt:           m.loadedAt,
	}
}

// PredictInsurance returns the estimated charges rounded to cents.
func (m *Models) PredictInsurance(in InsuranceInput) (InsurancePrediction, error) {
	if err := Validate(in); err != nil {
		monitoring.RecordPrediction(ml.TaskInsurance, "invalid", 0)
		return InsurancePrediction{}, err
	}
	start := time.Now()
	out, err := m.insurance.Predict([]ml.Row{in.Row()})
	if err != nil {
		return InsurancePrediction{}, err
	}
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		return InsurancePrediction{}, fmt.Errorf("insurance model returned %v", out[0])
	}
	monitoring.RecordPrediction(ml.TaskInsurance, "ok", time.Since(start))
	return InsurancePrediction{Prediction: round(out[0], 2)}, nil
}

// PredictDiabetes returns the positive-class probability rounded to four
// places and the class decided at the calibrated threshold. The decision uses
// the unrounded probability.
func (m *Models) PredictDiabetes(in DiabetesInput) (DiabetesPrediction, error) {
	if err := Validate(in); err != nil {
		monitoring.RecordPrediction(ml.TaskDiabetes, "invalid", 0)
		return DiabetesPrediction{}, err
	}
	start := time.Now()
	prob, err := m.diabetes.PredictProba([]ml.Row{in.Row()})
	if err != nil {
		return DiabetesPrediction{}, err
	}
	p := prob[0]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return DiabetesPrediction{}, fmt.Errorf("diabetes model returned probability %v", p)
	}
	pred := 0
	if p >= m.threshold {
		pred = 1
	}
	monitoring.RecordPrediction(ml.TaskDiabetes, fmt.Sprint(pred), time.Since(start))
	return DiabetesPrediction{Probability: round(p, 4), Threshold: m.threshold, Prediction: pred}, nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
