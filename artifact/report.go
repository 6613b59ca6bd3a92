package artifact

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"tabpredict/ml"
)

var reportHeader = []string{"feature", "importance"}

func encodeImportances(importances []ml.Importance) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(reportHeader); err != nil {
		return nil, err
	}
	for _, imp := range importances {
		if err := w.Write([]string{imp.Feature, strconv.FormatFloat(imp.Score, 'g', -1, 64)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeImportances(r io.Reader) ([]ml.Importance, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(records) == 0 || len(records[0]) != 2 || records[0][0] != reportHeader[0] || records[0][1] != reportHeader[1] {
		return nil, fmt.Errorf("%w: bad report header", ErrCorrupt)
	}
	out := make([]ml.Importance, 0, len(records)-1)
	for i, rec := range records[1:] {
		score, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, i+2, err)
		}
		out = append(out, ml.Importance{Feature: rec[0], Score: score})
	}
	return out, nil
}

// ReadImportances reads a feature importance report.
func ReadImportances(path string) ([]ml.Importance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	defer f.Close()
	return decodeImportances(f)
}
