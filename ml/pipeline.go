package ml

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
)

type Kind int

const (
	Regression Kind = iota + 1
	Classification
)

func (k Kind) String() string {
	switch k {
	case Regression:
		return "regression"
	case Classification:
		return "classification"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func init() {
	gob.Register(&Ridge{})
	gob.Register(&LogisticRegression{})
	gob.Register(&RandomForest{})
	gob.Register(&DecisionTree{})
}

// Pipeline fuses a preprocessor and an estimator into one unit. After Fit the
// pipeline is read-only: callers can only ask for predictions.
type Pipeline struct {
	kind   Kind
	pre    *Preprocessor
	model  Estimator
	fitted bool
}

func NewPipeline(kind Kind, schema Schema, model Estimator) (*Pipeline, error) {
	if kind != Regression && kind != Classification {
		return nil, fmt.Errorf("unknown pipeline kind %v", kind)
	}
	if model == nil {
		return nil, errors.New("pipeline needs an estimator")
	}
	if kind == Classification {
		if _, ok := model.(ProbabilisticEstimator); !ok {
			return nil, fmt.Errorf("classification pipeline needs a probabilistic estimator, got %T", model)
		}
	}
	return &Pipeline{kind: kind, pre: NewPreprocessor(schema), model: model}, nil
}

// Fit fits the preprocessor and then the estimator on the whole dataset.
func (p *Pipeline) Fit(ds *Dataset) error {
	if p.fitted {
		return errors.New("pipeline is already fitted")
	}
	if !p.pre.Schema().Equal(ds.Schema) {
		return fmt.Errorf("%w: dataset schema differs from pipeline schema", ErrSchemaMismatch)
	}
	if err := ds.Validate(); err != nil {
		return err
	}
	features, err := p.pre.FitTransform(ds.Rows)
	if err != nil {
		return err
	}
	if err := p.model.Fit(features, ds.Y); err != nil {
		return err
	}
	p.fitted = true
	return nil
}

func (p *Pipeline) Kind() Kind {
	return p.kind
}

func (p *Pipeline) Schema() Schema {
	return p.pre.Schema()
}

func (p *Pipeline) FeatureNames() []string {
	return p.pre.FeatureNames()
}

// Predict returns point estimates for regression pipelines and 0/1 labels at a
// 0.5 cutoff for classification pipelines.
func (p *Pipeline) Predict(rows []Row) ([]float64, error) {
	features, err := p.transform(rows)
	if err != nil {
		return nil, err
	}
	return p.model.Predict(features)
}

// PredictProba returns p(y=1) for each row of a classification pipeline.
func (p *Pipeline) PredictProba(rows []Row) ([]float64, error) {
	if p.kind != Classification {
		return nil, fmt.Errorf("%s pipeline has no probabilities", p.kind)
	}
	features, err := p.transform(rows)
	if err != nil {
		return nil, err
	}
	return p.model.(ProbabilisticEstimator).PredictProba(features)
}

// FeatureImportances ranks the estimator's importance scores by output
// feature name. Only tree ensembles provide them.
func (p *Pipeline) FeatureImportances() ([]Importance, error) {
	if !p.fitted {
		return nil, fmt.Errorf("pipeline: %w", ErrNotFitted)
	}
	estimator, ok := p.model.(ImportanceEstimator)
	if !ok {
		return nil, fmt.Errorf("%T does not report feature importances", p.model)
	}
	return RankImportances(p.pre.FeatureNames(), estimator.FeatureImportances())
}

func (p *Pipeline) transform(rows []Row) ([][]float64, error) {
	if !p.fitted {
		return nil, fmt.Errorf("pipeline: %w", ErrNotFitted)
	}
	return p.pre.Transform(rows)
}

type pipelineState struct {
	Kind  Kind
	Pre   *Preprocessor
	Model Estimator
}

func (p *Pipeline) GobEncode() ([]byte, error) {
	if !p.fitted {
		return nil, fmt.Errorf("pipeline: %w", ErrNotFitted)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pipelineState{Kind: p.kind, Pre: p.pre, Model: p.model}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Pipeline) GobDecode(data []byte) error {
	var state pipelineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	if state.Pre == nil || state.Model == nil {
		return errors.New("pipeline state is incomplete")
	}
	if state.Kind == Classification {
		if _, ok := state.Model.(ProbabilisticEstimator); !ok {
			return fmt.Errorf("classification pipeline holds %T", state.Model)
		}
	}
	p.kind = state.Kind
	p.pre = state.Pre
	p.model = state.Model
	p.fitted = true
	return nil
}
