package main

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tabpredict/artifact"
	"tabpredict/config"
	"tabpredict/dataset"
	"tabpredict/db"
	"tabpredict/ml"
	"tabpredict/monitoring"
)

type trainer struct {
	cfg    *config.Config
	store  *artifact.Store
	logger *zap.Logger
}

// taskOutcome is what one task run reports to the registry.
type taskOutcome struct {
	modelType string
	rows      int
	metrics   map[string]float64
	files     []string
}

// runAll trains tasks one after another. A failed task does not stop the
// next one; all failures are returned together.
func (t *trainer) runAll(tasks []string) error {
	var errs []error
	for _, task := range tasks {
		if err := t.runTask(task); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task, err))
		}
	}
	return errors.Join(errs...)
}

func (t *trainer) runTask(task string) (err error) {
	logger := t.logger.With(zap.String("task", task))
	runID := db.NewRunID()
	start := time.Now()
	var outcome taskOutcome

	defer func() {
		status := db.StatusSucceeded
		if err != nil {
			status = db.StatusFailed
			logger.Error("training failed", zap.String("run_id", runID), zap.Error(err))
		}
		monitoring.RecordTrainingRun(task, status, time.Since(start))
		t.record(task, runID, status, start, outcome, err)
	}()

	lock, err := t.store.Lock(task)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			logger.Warn("could not release task lock", zap.String("run_id", runID), zap.Error(uerr))
		}
	}()

	ds, err := t.loadDataset(task, logger)
	if err != nil {
		return err
	}
	outcome.rows = ds.Len()

	opts := ml.TrainOptions{
		Seed:      t.cfg.Training.Seed,
		Folds:     t.cfg.Training.Folds,
		Alphas:    t.cfg.Training.Alphas,
		Trees:     t.cfg.Training.Trees,
		TestRatio: t.cfg.Training.TestRatio,
		Workers:   t.cfg.Training.Workers,
		Logger:    logger,
	}

	var bundle artifact.Bundle
	switch task {
	case ml.TaskInsurance:
		result, err := ml.TrainInsurance(ds, opts)
		if err != nil {
			return err
		}
		bundle = artifact.Bundle{Pipeline: result.Pipeline, Diagnostic: result.Diagnostic, Importances: result.Importances}
		outcome.modelType = "ridge"
		outcome.metrics = map[string]float64{
			"alpha":     result.Search.BestAlpha,
			"cv_mae":    result.Search.BestMAE,
			"train_mae": result.TrainMAE,
			"train_r2":  result.TrainR2,
		}
	case ml.TaskDiabetes:
		result, err := ml.TrainDiabetes(ds, opts)
		if err != nil {
			return err
		}
		threshold := result.Calibration.Threshold
		bundle = artifact.Bundle{Pipeline: result.Pipeline, Diagnostic: result.Diagnostic, Threshold: &threshold, Importances: result.Importances}
		outcome.modelType = "logistic_regression"
		outcome.metrics = map[string]float64{
			"threshold": threshold,
			"f1":        result.Calibration.F1,
			"auc":       result.AUC,
			"accuracy":  result.Accuracy,
		}
	default:
		return fmt.Errorf("unknown task %q", task)
	}

	files, err := t.store.Commit(task, bundle)
	if err != nil {
		return err
	}
	outcome.files = files
	logger.Info("task complete",
		zap.String("run_id", runID),
		zap.Int("rows", outcome.rows),
		zap.Strings("files", files),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (t *trainer) loadDataset(task string, logger *zap.Logger) (*ml.Dataset, error) {
	var (
		path   string
		schema ml.Schema
		target string
	)
	switch task {
	case ml.TaskInsurance:
		path, schema, target = t.cfg.Data.Insurance, ml.InsuranceSchema(), ml.InsuranceTarget
	case ml.TaskDiabetes:
		path, schema, target = t.cfg.Data.Diabetes, ml.DiabetesSchema(), ml.DiabetesTarget
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}

	ds, stats, err := dataset.LoadFile(path, schema, target)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded", zap.String("path", path), zap.Int("rows", stats.Rows), zap.Strings("ignored_columns", stats.Ignored))

	if !t.cfg.Data.Clean {
		return ds, nil
	}
	cleaner, err := dataset.NewTaskCleaner(task, logger)
	if err != nil {
		return nil, err
	}
	cleaned, issues := cleaner.Clean(ds)
	for _, issue := range issues {
		logger.Debug("row rejected", zap.Int("line", issue.Line), zap.String("rule", issue.Type), zap.String("reason", issue.Message))
	}
	cs := cleaner.GetStats()
	logger.Info("dataset cleaned",
		zap.Int64("passed", cs.Passed),
		zap.Int64("rejected", cs.Rejected),
		zap.Int64("corrected", cs.Corrected),
	)
	return cleaned, nil
}

func (t *trainer) record(task, runID, status string, start time.Time, outcome taskOutcome, runErr error) {
	if !db.Initialized() {
		return
	}
	entry := db.TrainingLog{
		RunID:     runID,
		ModelName: task,
		ModelType: outcome.modelType,
		Status:    status,
		Params: map[string]any{
			"seed":       t.cfg.Training.Seed,
			"folds":      t.cfg.Training.Folds,
			"alphas":     t.cfg.Training.Alphas,
			"trees":      t.cfg.Training.Trees,
			"test_ratio": t.cfg.Training.TestRatio,
			"clean":      t.cfg.Data.Clean,
		},
		Metrics:    outcome.metrics,
		DataPoints: outcome.rows,
		Duration:   time.Since(start),
		TrainedAt:  start,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if _, err := db.SaveTrainingLog(entry); err != nil {
		t.logger.Warn("could not record training run", zap.String("task", task), zap.Error(err))
	}
}
