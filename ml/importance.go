package ml

import (
	"fmt"
	"sort"
)

// Importance is one line of the feature importance report.
type Importance struct {
	Feature string
	Score   float64
}

// RankImportances pairs names with scores and sorts by descending score;
// equal scores keep their feature order.
func RankImportances(names []string, scores []float64) ([]Importance, error) {
	if len(names) != len(scores) {
		return nil, fmt.Errorf("%w: %d feature names but %d importance scores", ErrSchemaMismatch, len(names), len(scores))
	}
	ranked := make([]Importance, len(names))
	for i := range names {
		ranked[i] = Importance{Feature: names[i], Score: scores[i]}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })
	return ranked, nil
}
