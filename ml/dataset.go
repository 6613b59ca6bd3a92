package ml

import (
	"fmt"
	"math"
)

// Row holds the feature values of one sample. The target is never stored here.
type Row struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

func NewRow() Row {
	return Row{
		Numeric:     make(map[string]float64),
		Categorical: make(map[string]string),
	}
}

// Dataset is a fully loaded table: feature rows plus the target column Y.
type Dataset struct {
	Schema Schema
	Target string
	Rows   []Row
	Y      []float64
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Validate checks that every row carries every schema column and that the
// target column is not part of the feature set.
func (d *Dataset) Validate() error {
	if d.Schema.Has(d.Target) {
		return fmt.Errorf("%w: target %q is listed as a feature", ErrSchemaMismatch, d.Target)
	}
	if len(d.Rows) != len(d.Y) {
		return fmt.Errorf("%w: %d rows but %d targets", ErrSchemaMismatch, len(d.Rows), len(d.Y))
	}
	for i, row := range d.Rows {
		if err := checkRow(d.Schema, row); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	for i, y := range d.Y {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return fmt.Errorf("%w: row %d: target %q is not finite", ErrSchemaMismatch, i+1, d.Target)
		}
	}
	return nil
}

// Labels converts Y to binary class labels, failing on anything other than 0 or 1.
func (d *Dataset) Labels() ([]int, error) {
	labels := make([]int, len(d.Y))
	for i, y := range d.Y {
		switch y {
		case 0:
			labels[i] = 0
		case 1:
			labels[i] = 1
		default:
			return nil, fmt.Errorf("%w: row %d: target %q must be 0 or 1, got %v", ErrSchemaMismatch, i+1, d.Target, y)
		}
	}
	return labels, nil
}

// Subset returns a dataset with the rows at idx, in idx order. Rows are shared, not copied.
func (d *Dataset) Subset(idx []int) *Dataset {
	sub := &Dataset{
		Schema: d.Schema,
		Target: d.Target,
		Rows:   make([]Row, len(idx)),
		Y:      make([]float64, len(idx)),
	}
	for i, j := range idx {
		sub.Rows[i] = d.Rows[j]
		sub.Y[i] = d.Y[j]
	}
	return sub
}

func checkRow(schema Schema, row Row) error {
	for _, c := range schema.columns {
		switch c.Kind {
		case Numeric:
			v, ok := row.Numeric[c.Name]
			if !ok {
				return fmt.Errorf("%w: missing numeric column %q", ErrSchemaMismatch, c.Name)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: column %q is not finite", ErrSchemaMismatch, c.Name)
			}
		case Categorical:
			if _, ok := row.Categorical[c.Name]; !ok {
				return fmt.Errorf("%w: missing categorical column %q", ErrSchemaMismatch, c.Name)
			}
		}
	}
	return nil
}
