package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

type Criterion int

const (
	// Gini splits binary 0/1 targets; leaves hold the positive-class fraction.
	Gini Criterion = iota
	// SquaredError splits continuous targets; leaves hold the mean target.
	SquaredError
)

// DecisionTree is a CART tree stored as a flat node slice. Node 0 is the root;
// child indices are absolute positions in Nodes.
type DecisionTree struct {
	Criterion       Criterion
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int

	Nodes       []TreeNode
	Importances []float64
}

type TreeNode struct {
	FeatureIdx int
	Threshold  float64
	LeftChild  int
	RightChild int
	Value      float64
	Samples    int
	IsLeaf     bool
}

func NewDecisionTree(criterion Criterion, maxDepth int) *DecisionTree {
	return &DecisionTree{Criterion: criterion, MaxDepth: maxDepth, MinSamplesSplit: 2}
}

func (dt *DecisionTree) Fit(features [][]float64, targets []float64) error {
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	return dt.fitSamples(features, targets, idx, rand.New(rand.NewSource(0)))
}

// fitSamples grows the tree on the rows listed in samples, which may repeat
// rows (bootstrap). rng only drives the per-split feature subset.
func (dt *DecisionTree) fitSamples(features [][]float64, targets []float64, samples []int, rng *rand.Rand) error {
	if len(features) == 0 || len(targets) == 0 || len(samples) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and labels size mismatch")
	}
	nFeatures := len(features[0])
	for i, row := range features {
		if len(row) != nFeatures {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrSchemaMismatch, i, len(row), nFeatures)
		}
	}
	if dt.Criterion == Gini {
		for i, y := range targets {
			if y != 0 && y != 1 {
				return fmt.Errorf("%w: target %d must be 0 or 1, got %v", ErrSchemaMismatch, i, y)
			}
		}
	}

	b := &treeBuilder{
		tree:      dt,
		features:  features,
		targets:   targets,
		rng:       rng,
		nFeatures: nFeatures,
		gains:     make([]float64, nFeatures),
	}
	dt.Nodes = nil
	b.build(append([]int(nil), samples...), 0)

	total := 0.0
	for _, g := range b.gains {
		total += g
	}
	dt.Importances = make([]float64, nFeatures)
	if total > 0 {
		for j, g := range b.gains {
			dt.Importances[j] = g / total
		}
	}
	return nil
}

func (dt *DecisionTree) Predict(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		value, err := dt.predictRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

func (dt *DecisionTree) FeatureImportances() []float64 {
	return append([]float64(nil), dt.Importances...)
}

func (dt *DecisionTree) predictRow(features []float64) (float64, error) {
	if len(dt.Nodes) == 0 {
		return 0, fmt.Errorf("decision tree: %w", ErrNotFitted)
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

type treeBuilder struct {
	tree      *DecisionTree
	features  [][]float64
	targets   []float64
	rng       *rand.Rand
	nFeatures int
	gains     []float64
}

type nodeStats struct {
	n     float64
	sum   float64
	sumSq float64
}

func (s *nodeStats) add(y float64) {
	s.n++
	s.sum += y
	s.sumSq += y * y
}

func (s *nodeStats) remove(y float64) {
	s.n--
	s.sum -= y
	s.sumSq -= y * y
}

func (s nodeStats) mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / s.n
}

// impurity returns the sample-weighted impurity n·I(node).
func (b *treeBuilder) impurity(s nodeStats) float64 {
	if s.n == 0 {
		return 0
	}
	if b.tree.Criterion == Gini {
		// binary targets: sum is the positive count
		return 2 * s.sum * (s.n - s.sum) / s.n
	}
	v := s.sumSq - s.sum*s.sum/s.n
	if v < 0 {
		return 0
	}
	return v
}

func (b *treeBuilder) build(samples []int, depth int) int {
	var stats nodeStats
	for _, i := range samples {
		stats.add(b.targets[i])
	}

	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      stats.mean(),
		Samples:    len(samples),
		IsLeaf:     true,
	})

	minSplit := b.tree.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	parentImpurity := b.impurity(stats)
	if (b.tree.MaxDepth > 0 && depth >= b.tree.MaxDepth) || len(samples) < minSplit || parentImpurity <= 1e-12 {
		return idx
	}

	feature, threshold, gain, ok := b.bestSplit(samples, stats, parentImpurity)
	if !ok {
		return idx
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, i := range samples {
		if b.features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.gains[feature] += gain

	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)

	node := &b.tree.Nodes[idx]
	node.FeatureIdx = feature
	node.Threshold = threshold
	node.LeftChild = leftIdx
	node.RightChild = rightIdx
	node.IsLeaf = false
	return idx
}

func (b *treeBuilder) bestSplit(samples []int, parent nodeStats, parentImpurity float64) (int, float64, float64, bool) {
	candidates := b.rng.Perm(b.nFeatures)
	if mf := b.tree.MaxFeatures; mf > 0 && mf < b.nFeatures {
		candidates = candidates[:mf]
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0
	order := make([]int, len(samples))
	for _, feature := range candidates {
		copy(order, samples)
		sort.SliceStable(order, func(a, c int) bool {
			return b.features[order[a]][feature] < b.features[order[c]][feature]
		})

		var left nodeStats
		right := parent
		for k := 0; k < len(order)-1; k++ {
			y := b.targets[order[k]]
			left.add(y)
			right.remove(y)
			current := b.features[order[k]][feature]
			next := b.features[order[k+1]][feature]
			if current == next {
				continue
			}
			gain := parentImpurity - b.impurity(left) - b.impurity(right)
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = feature
				bestThreshold = current + (next-current)/2
				if bestThreshold >= next {
					bestThreshold = current
				}
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, 0, false
	}
	return bestFeature, bestThreshold, bestGain, true
}
