package artifact

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

type thresholdRecord struct {
	Threshold float64 `json:"threshold"`
}

func encodeThreshold(t float64) ([]byte, error) {
	if err := checkThreshold(t); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(thresholdRecord{Threshold: t}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decodeThreshold(data []byte) (float64, error) {
	var rec map[string]json.RawMessage
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	raw, ok := rec["threshold"]
	if !ok {
		return 0, fmt.Errorf("%w: no threshold field", ErrCorrupt)
	}
	var t float64
	if err := json.Unmarshal(raw, &t); err != nil {
		return 0, fmt.Errorf("%w: threshold: %v", ErrCorrupt, err)
	}
	if err := checkThreshold(t); err != nil {
		return 0, err
	}
	return t, nil
}

func checkThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrCorrupt, t)
	}
	return nil
}

// WriteThreshold atomically writes a standalone threshold record.
func WriteThreshold(path string, t float64) error {
	data, err := encodeThreshold(t)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// ReadThreshold reads a threshold record, rejecting values outside [0, 1].
func ReadThreshold(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	t, err := decodeThreshold(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
