package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// Run statuses recorded in training_log.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// InitDB initializes the SQLite database
func InitDB(path string) error {
	if database != nil {
		database.Close()
		database = nil
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        model_name VARCHAR(50) NOT NULL,
        model_type VARCHAR(50),
        status VARCHAR(20) NOT NULL,
        params TEXT,
        metrics TEXT,
        error TEXT,
        data_points INTEGER DEFAULT 0,
        duration_ms INTEGER DEFAULT 0,
        trained_at DATETIME NOT NULL,
        UNIQUE(run_id)
    );
    CREATE INDEX IF NOT EXISTS idx_training_log_model ON training_log(model_name, trained_at);
    `

	if _, err := conn.Exec(query); err != nil {
		conn.Close()
		return err
	}
	database = conn
	return nil
}

// Close releases the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// Initialized reports whether InitDB has succeeded.
func Initialized() bool {
	return database != nil
}

// TrainingLog is one training run of one task.
type TrainingLog struct {
	RunID      string             `json:"run_id"`
	ModelName  string             `json:"model_name"`
	ModelType  string             `json:"model_type"`
	Status     string             `json:"status"`
	Params     map[string]any     `json:"params,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Error      string             `json:"error,omitempty"`
	DataPoints int                `json:"data_points"`
	Duration   time.Duration      `json:"duration_ns"`
	TrainedAt  time.Time          `json:"trained_at"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SaveTrainingLog inserts a run. Missing RunID and TrainedAt are filled in;
// metrics that are not finite are dropped since JSON cannot carry them.
func SaveTrainingLog(entry TrainingLog) (string, error) {
	if database == nil {
		return "", errors.New("database not initialized")
	}
	if entry.ModelName == "" {
		return "", errors.New("model name required")
	}
	if entry.RunID == "" {
		entry.RunID = NewRunID()
	}
	if entry.Status == "" {
		entry.Status = StatusSucceeded
	}
	if entry.TrainedAt.IsZero() {
		entry.TrainedAt = time.Now()
	}

	params, err := json.Marshal(entry.Params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	metrics, err := json.Marshal(finiteMetrics(entry.Metrics))
	if err != nil {
		return "", fmt.Errorf("encode metrics: %w", err)
	}

	_, err = database.Exec(`
        INSERT INTO training_log (
            run_id, model_name, model_type, status, params, metrics,
            error, data_points, duration_ms, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		entry.RunID,
		entry.ModelName,
		entry.ModelType,
		entry.Status,
		string(params),
		string(metrics),
		entry.Error,
		entry.DataPoints,
		entry.Duration.Milliseconds(),
		entry.TrainedAt.UTC(),
	)
	if err != nil {
		return "", err
	}
	return entry.RunID, nil
}

// LoadTrainingLog returns the newest runs first. An empty modelName matches
// every task; limit <= 0 means no limit.
func LoadTrainingLog(modelName string, limit int) ([]TrainingLog, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := database.Query(`
        SELECT run_id, model_name, model_type, status, params, metrics,
               error, data_points, duration_ms, trained_at
        FROM training_log
        WHERE ? = '' OR model_name = ?
        ORDER BY trained_at DESC, id DESC
        LIMIT ?
    `, modelName, modelName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var (
			log        TrainingLog
			modelType  sql.NullString
			params     sql.NullString
			metrics    sql.NullString
			errText    sql.NullString
			durationMs int64
		)
		if err := rows.Scan(&log.RunID, &log.ModelName, &modelType, &log.Status, &params, &metrics,
			&errText, &log.DataPoints, &durationMs, &log.TrainedAt); err != nil {
			return nil, err
		}
		log.ModelType = modelType.String
		log.Error = errText.String
		log.Duration = time.Duration(durationMs) * time.Millisecond
		if params.Valid && params.String != "" && params.String != "null" {
			if err := json.Unmarshal([]byte(params.String), &log.Params); err != nil {
				return nil, fmt.Errorf("run %s params: %w", log.RunID, err)
			}
		}
		if metrics.Valid && metrics.String != "" && metrics.String != "null" {
			if err := json.Unmarshal([]byte(metrics.String), &log.Metrics); err != nil {
				return nil, fmt.Errorf("run %s metrics: %w", log.RunID, err)
			}
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func finiteMetrics(metrics map[string]float64) map[string]float64 {
	if metrics == nil {
		return nil
	}
	out := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}
