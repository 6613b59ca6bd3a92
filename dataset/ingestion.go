package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"tabpredict/ml"
)

// IngestionStats 摄取统计
type IngestionStats struct {
	Rows    int      `json:"rows"`
	Columns int      `json:"columns"`
	Ignored []string `json:"ignored,omitempty"`
}

// LoadFile 从CSV文件加载数据集
func LoadFile(path string, schema ml.Schema, target string) (*ml.Dataset, IngestionStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, IngestionStats{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, stats, err := LoadCSV(f, schema, target)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	return ds, stats, nil
}

// LoadCSV reads a headed CSV table. Every schema column and the target must be
// present in the header; other columns are ignored. Rows are 1-based in errors,
// counting the header as line 1.
func LoadCSV(r io.Reader, schema ml.Schema, target string) (*ml.Dataset, IngestionStats, error) {
	var stats IngestionStats

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("%w: empty file", ml.ErrSchemaMismatch)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	stats.Columns = len(header)

	var missing []string
	for _, name := range append(schema.Names(), target) {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, stats, fmt.Errorf("%w: header is missing %s", ml.ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	for _, name := range header {
		name = strings.TrimSpace(name)
		if name != target && !schema.Has(name) {
			stats.Ignored = append(stats.Ignored, name)
		}
	}

	ds := &ml.Dataset{Schema: schema, Target: target}
	columns := schema.Columns()
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: %w", line, err)
		}

		row := ml.NewRow()
		for _, c := range columns {
			raw := strings.TrimSpace(record[index[c.Name]])
			if raw == "" {
				return nil, stats, fmt.Errorf("%w: line %d: column %q is empty", ml.ErrSchemaMismatch, line, c.Name)
			}
			if c.Kind == ml.Categorical {
				row.Categorical[c.Name] = raw
				continue
			}
			v, err := parseNumber(raw)
			if err != nil {
				return nil, stats, fmt.Errorf("%w: line %d: column %q: %q is not a number", ml.ErrSchemaMismatch, line, c.Name, raw)
			}
			row.Numeric[c.Name] = v
		}

		raw := strings.TrimSpace(record[index[target]])
		if raw == "" {
			return nil, stats, fmt.Errorf("%w: line %d: target %q is empty", ml.ErrSchemaMismatch, line, target)
		}
		y, err := parseNumber(raw)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: line %d: target %q: %q is not a number", ml.ErrSchemaMismatch, line, target, raw)
		}

		ds.Rows = append(ds.Rows, row)
		ds.Y = append(ds.Y, y)
	}
	stats.Rows = ds.Len()

	if err := ds.Validate(); err != nil {
		return nil, stats, err
	}
	return ds, stats, nil
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not finite")
	}
	return v, nil
}
