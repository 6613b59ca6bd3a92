package ml

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// CandidateScore is the cross-validated error of one regularization strength.
type CandidateScore struct {
	Alpha   float64
	MeanMAE float64
	FoldMAE []float64
}

type SearchResult struct {
	BestAlpha float64
	BestMAE   float64
	Folds     int
	Scores    []CandidateScore
	Pipeline  *Pipeline
}

// SearchRidge runs k-fold cross-validation for every alpha, refitting the
// whole pipeline (preprocessor included) on each fold's training rows. The
// alpha with the lowest mean MAE wins; ties go to the earlier grid entry. The
// winner is refit on the full dataset. Datasets smaller than k use one fold
// per row. Candidates run concurrently, but scores are kept by grid position,
// so the outcome does not depend on scheduling.
func SearchRidge(ds *Dataset, alphas []float64, k, workers int) (*SearchResult, error) {
	if len(alphas) == 0 {
		return nil, fmt.Errorf("ridge search needs at least one alpha")
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if ds.Len() < 2 {
		return nil, fmt.Errorf("%w: cross-validation needs at least 2 rows, got %d", ErrInsufficientData, ds.Len())
	}
	if k > ds.Len() {
		k = ds.Len()
	}
	folds, err := KFold(ds.Len(), k)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	scores := make([]CandidateScore, len(alphas))
	var g errgroup.Group
	g.SetLimit(workers)
	for c, alpha := range alphas {
		g.Go(func() error {
			score, err := crossValidateRidge(ds, folds, alpha)
			if err != nil {
				return fmt.Errorf("alpha %v: %w", alpha, err)
			}
			scores[c] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for c := 1; c < len(scores); c++ {
		if scores[c].MeanMAE < scores[best].MeanMAE {
			best = c
		}
	}

	pipeline, err := NewPipeline(Regression, ds.Schema, NewRidge(scores[best].Alpha))
	if err != nil {
		return nil, err
	}
	if err := pipeline.Fit(ds); err != nil {
		return nil, err
	}
	return &SearchResult{
		BestAlpha: scores[best].Alpha,
		BestMAE:   scores[best].MeanMAE,
		Folds:     len(folds),
		Scores:    scores,
		Pipeline:  pipeline,
	}, nil
}

func crossValidateRidge(ds *Dataset, folds []Fold, alpha float64) (CandidateScore, error) {
	score := CandidateScore{Alpha: alpha, FoldMAE: make([]float64, len(folds))}
	total := 0.0
	for f, fold := range folds {
		pipeline, err := NewPipeline(Regression, ds.Schema, NewRidge(alpha))
		if err != nil {
			return score, err
		}
		if err := pipeline.Fit(ds.Subset(fold.Train)); err != nil {
			return score, fmt.Errorf("fold %d: %w", f+1, err)
		}
		validation := ds.Subset(fold.Validation)
		predicted, err := pipeline.Predict(validation.Rows)
		if err != nil {
			return score, fmt.Errorf("fold %d: %w", f+1, err)
		}
		score.FoldMAE[f] = MeanAbsoluteError(validation.Y, predicted)
		total += score.FoldMAE[f]
	}
	score.MeanMAE = total / float64(len(folds))
	return score, nil
}
