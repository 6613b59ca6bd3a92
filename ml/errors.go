package ml

import "errors"

var (
	// ErrSchemaMismatch reports a disagreement between a dataset or row and the feature schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInsufficientData reports that a split, search or calibration cannot run on the data given.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNotFitted is returned when a transformer or estimator is used before Fit.
	ErrNotFitted = errors.New("model not trained")
)
