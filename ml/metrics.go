package ml

import (
	"math"
	"sort"
)

func MeanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		s += math.Abs(yPred[i] - yTrue[i])
	}
	return s / float64(len(yTrue))
}

func R2Score(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	m := 0.0
	for _, v := range yTrue {
		m += v
	}
	m /= float64(len(yTrue))
	ssTot := 0.0
	ssRes := 0.0
	for i := range yTrue {
		d := yTrue[i] - m
		ssTot += d * d
		r := yTrue[i] - yPred[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// Confusion counts binary outcomes for predictions made at a probability cutoff.
type Confusion struct {
	TruePositive  int
	FalsePositive int
	TrueNegative  int
	FalseNegative int
}

func ConfusionAt(yTrue []int, prob []float64, threshold float64) Confusion {
	var c Confusion
	for i, label := range yTrue {
		predicted := prob[i] >= threshold
		switch {
		case predicted && label == 1:
			c.TruePositive++
		case predicted:
			c.FalsePositive++
		case label == 1:
			c.FalseNegative++
		default:
			c.TrueNegative++
		}
	}
	return c
}

func (c Confusion) Precision() float64 {
	if c.TruePositive+c.FalsePositive == 0 {
		return 0
	}
	return float64(c.TruePositive) / float64(c.TruePositive+c.FalsePositive)
}

func (c Confusion) Recall() float64 {
	if c.TruePositive+c.FalseNegative == 0 {
		return 0
	}
	return float64(c.TruePositive) / float64(c.TruePositive+c.FalseNegative)
}

// F1 is 2TP / (2TP + FP + FN); it is 0 when there are no positives at all.
func (c Confusion) F1() float64 {
	denominator := 2*c.TruePositive + c.FalsePositive + c.FalseNegative
	if denominator == 0 {
		return 0
	}
	return float64(2*c.TruePositive) / float64(denominator)
}

func (c Confusion) Accuracy() float64 {
	total := c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative
	if total == 0 {
		return 0
	}
	return float64(c.TruePositive+c.TrueNegative) / float64(total)
}

// ROCAUC is the probability that a random positive scores above a random
// negative, counting ties as one half. It is NaN when either class is absent.
func ROCAUC(yTrue []int, prob []float64) float64 {
	type scored struct {
		p     float64
		label int
	}
	items := make([]scored, len(yTrue))
	var positives, negatives float64
	for i, label := range yTrue {
		items[i] = scored{p: prob[i], label: label}
		if label == 1 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return math.NaN()
	}
	sort.Slice(items, func(a, b int) bool { return items[a].p < items[b].p })

	// average ranks over ties
	rankSum := 0.0
	for i := 0; i < len(items); {
		j := i
		for j < len(items) && items[j].p == items[i].p {
			j++
		}
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if items[k].label == 1 {
				rankSum += avgRank
			}
		}
		i = j
	}
	return (rankSum - positives*(positives+1)/2) / (positives * negatives)
}
