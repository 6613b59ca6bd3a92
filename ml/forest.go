package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest is a bagged ensemble of CART trees. Tree i draws its bootstrap
// sample and feature subsets from a source seeded with Seed+i, so the fitted
// forest does not depend on how many trees are built in parallel.
type RandomForest struct {
	Criterion   Criterion
	NTrees      int
	MaxDepth    int
	MaxFeatures int
	Seed        int64
	Workers     int

	Trees       []*DecisionTree
	Importances []float64
}

func NewRandomForestRegressor(nTrees int, seed int64) *RandomForest {
	return &RandomForest{Criterion: SquaredError, NTrees: nTrees, Seed: seed}
}

func NewRandomForestClassifier(nTrees int, seed int64) *RandomForest {
	return &RandomForest{Criterion: Gini, NTrees: nTrees, Seed: seed}
}

func (rf *RandomForest) Fit(features [][]float64, targets []float64) error {
	if len(features) == 0 {
		return errors.New("randomforest: empty features")
	}
	n := len(features)
	if len(targets) != n {
		return errors.New("randomforest: features and targets length mismatch")
	}
	if rf.NTrees <= 0 {
		return fmt.Errorf("randomforest: tree count must be positive, got %d", rf.NTrees)
	}
	nFeatures := len(features[0])

	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		// regression considers every feature, classification √p
		maxFeatures = nFeatures
		if rf.Criterion == Gini {
			maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(nFeatures)))))
		}
	}

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*DecisionTree, rf.NTrees)
	var g errgroup.Group
	g.SetLimit(workers)
	for t := 0; t < rf.NTrees; t++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(rf.Seed + int64(t)))
			samples := make([]int, n)
			for i := range samples {
				samples[i] = rng.Intn(n)
			}
			tree := &DecisionTree{
				Criterion:       rf.Criterion,
				MaxDepth:        rf.MaxDepth,
				MinSamplesSplit: 2,
				MaxFeatures:     maxFeatures,
			}
			if err := tree.fitSamples(features, targets, samples, rng); err != nil {
				return fmt.Errorf("tree %d: %w", t, err)
			}
			trees[t] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("randomforest: %w", err)
	}

	importances := make([]float64, nFeatures)
	for _, tree := range trees {
		for j, v := range tree.Importances {
			importances[j] += v
		}
	}
	total := 0.0
	for _, v := range importances {
		total += v
	}
	if total > 0 {
		for j := range importances {
			importances[j] /= total
		}
	}

	rf.Trees = trees
	rf.Importances = importances
	return nil
}

// Predict averages tree outputs: the mean target for regression, the
// positive-class probability for classification.
func (rf *RandomForest) Predict(features [][]float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, fmt.Errorf("randomforest: %w", ErrNotFitted)
	}
	out := make([]float64, len(features))
	for _, tree := range rf.Trees {
		values, err := tree.Predict(features)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(rf.Trees))
	}
	return out, nil
}

func (rf *RandomForest) PredictProba(features [][]float64) ([]float64, error) {
	if rf.Criterion != Gini {
		return nil, errors.New("randomforest: probabilities need a classification forest")
	}
	return rf.Predict(features)
}

func (rf *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), rf.Importances...)
}
