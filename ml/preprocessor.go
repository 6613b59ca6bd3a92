package ml

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Preprocessor standardizes numeric columns and one-hot encodes categorical
// columns. Output layout: numeric columns in schema order, then one block per
// categorical column in schema order, each block listing the levels seen
// during Fit in sorted order. A level not seen during Fit encodes as an
// all-zero block.
type Preprocessor struct {
	schema     Schema
	means      []float64
	scales     []float64
	categories [][]string
	fitted     bool
}

func NewPreprocessor(schema Schema) *Preprocessor {
	return &Preprocessor{schema: schema}
}

func (p *Preprocessor) Fit(rows []Row) error {
	if len(rows) == 0 {
		return errors.New("rows is empty")
	}
	for i, row := range rows {
		if err := checkRow(p.schema, row); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	numeric := p.schema.NumericColumns()
	means := make([]float64, len(numeric))
	scales := make([]float64, len(numeric))
	n := float64(len(rows))
	for j, name := range numeric {
		mean := 0.0
		for _, row := range rows {
			mean += row.Numeric[name]
		}
		mean /= n
		variance := 0.0
		for _, row := range rows {
			diff := row.Numeric[name] - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / n)
		if std == 0 {
			std = 1
		}
		means[j] = mean
		scales[j] = std
	}

	categorical := p.schema.CategoricalColumns()
	categories := make([][]string, len(categorical))
	for j, name := range categorical {
		seen := make(map[string]struct{})
		for _, row := range rows {
			seen[row.Categorical[name]] = struct{}{}
		}
		levels := make([]string, 0, len(seen))
		for level := range seen {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		categories[j] = levels
	}

	p.means = means
	p.scales = scales
	p.categories = categories
	p.fitted = true
	return nil
}

func (p *Preprocessor) Transform(rows []Row) ([][]float64, error) {
	if !p.fitted {
		return nil, fmt.Errorf("preprocessor: %w", ErrNotFitted)
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		vector, err := p.transformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = vector
	}
	return out, nil
}

func (p *Preprocessor) FitTransform(rows []Row) ([][]float64, error) {
	if err := p.Fit(rows); err != nil {
		return nil, err
	}
	return p.Transform(rows)
}

// Width is the number of output columns produced by Transform.
func (p *Preprocessor) Width() int {
	width := len(p.means)
	for _, levels := range p.categories {
		width += len(levels)
	}
	return width
}

// FeatureNames lists output column names in Transform order. One-hot columns
// are named <column>_<level>.
func (p *Preprocessor) FeatureNames() []string {
	names := make([]string, 0, p.Width())
	names = append(names, p.schema.NumericColumns()...)
	for j, name := range p.schema.CategoricalColumns() {
		if j >= len(p.categories) {
			break
		}
		for _, level := range p.categories[j] {
			names = append(names, name+"_"+level)
		}
	}
	return names
}

func (p *Preprocessor) Schema() Schema {
	return p.schema
}

func (p *Preprocessor) transformRow(row Row) ([]float64, error) {
	if err := checkRow(p.schema, row); err != nil {
		return nil, err
	}
	vector := make([]float64, p.Width())
	for j, name := range p.schema.NumericColumns() {
		vector[j] = (row.Numeric[name] - p.means[j]) / p.scales[j]
	}
	offset := len(p.means)
	for j, name := range p.schema.CategoricalColumns() {
		levels := p.categories[j]
		value := row.Categorical[name]
		if k := sort.SearchStrings(levels, value); k < len(levels) && levels[k] == value {
			vector[offset+k] = 1
		}
		offset += len(levels)
	}
	return vector, nil
}

type preprocessorState struct {
	Columns    []Column
	Means      []float64
	Scales     []float64
	Categories [][]string
}

func (p *Preprocessor) GobEncode() ([]byte, error) {
	if !p.fitted {
		return nil, fmt.Errorf("preprocessor: %w", ErrNotFitted)
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(preprocessorState{
		Columns:    p.schema.Columns(),
		Means:      p.means,
		Scales:     p.scales,
		Categories: p.categories,
	})
	return buf.Bytes(), err
}

func (p *Preprocessor) GobDecode(data []byte) error {
	var state preprocessorState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	schema := NewSchema(state.Columns...)
	if len(state.Means) != len(schema.NumericColumns()) || len(state.Scales) != len(state.Means) ||
		len(state.Categories) != len(schema.CategoricalColumns()) {
		return fmt.Errorf("%w: preprocessor state does not match its schema", ErrSchemaMismatch)
	}
	p.schema = schema
	p.means = state.Means
	p.scales = state.Scales
	p.categories = state.Categories
	p.fitted = true
	return nil
}
