package ml

import (
	"fmt"
	"math"
)

const (
	thresholdLow   = 0.1
	thresholdHigh  = 0.9
	thresholdSteps = 17
)

// Calibration is the operating point chosen for the classifier.
type Calibration struct {
	Threshold float64
	F1        float64
}

// ThresholdGrid returns the 17 candidate cutoffs 0.10, 0.15, ..., 0.90.
func ThresholdGrid() []float64 {
	grid := make([]float64, thresholdSteps)
	step := (thresholdHigh - thresholdLow) / float64(thresholdSteps-1)
	for i := range grid {
		grid[i] = math.Round((thresholdLow+float64(i)*step)*100) / 100
	}
	return grid
}

// CalibrateThreshold scans ThresholdGrid in ascending order, classifying a
// sample positive iff its probability is >= t, and keeps the cutoff with the
// greatest F1. Only a strictly greater F1 replaces the incumbent, so among
// equal maxima the lowest threshold wins.
func CalibrateThreshold(yTrue []int, prob []float64) (Calibration, error) {
	if len(yTrue) == 0 {
		return Calibration{}, fmt.Errorf("%w: no validation samples to calibrate on", ErrInsufficientData)
	}
	if len(yTrue) != len(prob) {
		return Calibration{}, fmt.Errorf("%w: %d labels but %d probabilities", ErrSchemaMismatch, len(yTrue), len(prob))
	}
	best := Calibration{Threshold: 0.5, F1: -1}
	for _, t := range ThresholdGrid() {
		f1 := ConfusionAt(yTrue, prob, t).F1()
		if f1 > best.F1 {
			best = Calibration{Threshold: t, F1: f1}
		}
	}
	return best, nil
}
