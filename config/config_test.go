package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8000, cfg.HTTP.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, "models", cfg.Artifacts.ModelsDir)
	assert.Equal(t, "reports", cfg.Artifacts.ReportsDir)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 5, cfg.Training.Folds)
	assert.Equal(t, []float64{0.1, 1, 10}, cfg.Training.Alphas)
	assert.Equal(t, 300, cfg.Training.Trees)
	assert.Equal(t, 0.2, cfg.Training.TestRatio)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 9090
  request_timeout: 2s
log:
  level: debug
  file: logs/service.log
training:
  alphas: [0.5, 5]
  trees: 50
database:
  path: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 2*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "logs/service.log", cfg.Log.File)
	assert.Equal(t, []float64{0.5, 5}, cfg.Training.Alphas)
	assert.Equal(t, 50, cfg.Training.Trees)
	assert.Equal(t, 5, cfg.Training.Folds)
	assert.Empty(t, cfg.Database.Path)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "unknown key", content: "htp:\n  port: 1\n", wantMsg: "htp"},
		{name: "bad port", content: "http:\n  port: 70000\n", wantMsg: "http.port"},
		{name: "one fold", content: "training:\n  folds: 1\n", wantMsg: "training.folds"},
		{name: "negative alpha", content: "training:\n  alphas: [-1]\n", wantMsg: "training.alphas"},
		{name: "test ratio", content: "training:\n  test_ratio: 1.5\n", wantMsg: "training.test_ratio"},
		{name: "empty models dir", content: "artifacts:\n  models_dir: \"\"\n", wantMsg: "models_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse([]byte(tt.content), Default())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
