package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions sample indices into train and test sets so each
// class keeps its proportion: a class with n members contributes
// round(n·testRatio) samples to test, clamped to [1, n-1]. Proportions in the
// two partitions therefore differ by at most one sample per class. Both
// returned slices are sorted ascending.
func StratifiedSplit(labels []int, testRatio float64, seed int64) (train, test []int, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in (0, 1), got %v", testRatio)
	}
	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	if len(byClass) < 2 {
		return nil, nil, fmt.Errorf("%w: stratified split needs at least two classes, got %d", ErrInsufficientData, len(byClass))
	}

	classes := make([]int, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, class := range classes {
		members := byClass[class]
		if len(members) < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has %d member(s), need at least 2", ErrInsufficientData, class, len(members))
		}
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		nTest := int(math.Round(float64(len(members)) * testRatio))
		if nTest < 1 {
			nTest = 1
		}
		if nTest > len(members)-1 {
			nTest = len(members) - 1
		}
		test = append(test, members[:nTest]...)
		train = append(train, members[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// Fold is one train/validation partition of a k-fold split.
type Fold struct {
	Train      []int
	Validation []int
}

// KFold splits n samples into k contiguous folds without shuffling; the first
// n%k folds hold one extra sample.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("k-fold needs k >= 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: %d samples cannot fill %d folds", ErrInsufficientData, n, k)
	}
	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size
		fold := Fold{
			Train:      make([]int, 0, n-size),
			Validation: make([]int, 0, size),
		}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				fold.Validation = append(fold.Validation, i)
			} else {
				fold.Train = append(fold.Train, i)
			}
		}
		folds[f] = fold
		start = end
	}
	return folds, nil
}
