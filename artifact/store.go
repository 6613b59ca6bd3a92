package artifact

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"tabpredict/ml"
)

// PipelineFormat tags every pipeline file; readers refuse anything else.
const PipelineFormat = "tabpredict.pipeline/v1"

// Meta describes a stored pipeline.
type Meta struct {
	Format    string
	Task      string
	CreatedAt time.Time
}

type envelope struct {
	Meta
	Pipeline *ml.Pipeline
}

// Bundle is the full output of one training run. Threshold is only set for
// classification tasks.
type Bundle struct {
	Pipeline    *ml.Pipeline
	Diagnostic  *ml.Pipeline
	Threshold   *float64
	Importances []ml.Importance
}

// Store addresses artifacts by task name under a models directory and a
// reports directory. Tasks never share a file.
type Store struct {
	modelsDir  string
	reportsDir string
	logger     *zap.Logger
	now        func() time.Time
	rename     func(oldpath, newpath string) error
}

func NewStore(modelsDir, reportsDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{modelsDir: modelsDir, reportsDir: reportsDir, logger: logger, now: time.Now, rename: os.Rename}
}

func (s *Store) ModelsDir() string  { return s.modelsDir }
func (s *Store) ReportsDir() string { return s.reportsDir }

func (s *Store) ModelPath(task string) string {
	return filepath.Join(s.modelsDir, task+"_model.gob")
}

func (s *Store) ForestPath(task string) string {
	return filepath.Join(s.modelsDir, "rf_"+task+".gob")
}

func (s *Store) ThresholdPath(task string) string {
	return filepath.Join(s.modelsDir, task+"_threshold.json")
}

func (s *Store) ReportPath(task string) string {
	return filepath.Join(s.reportsDir, task+"_feature_importance.csv")
}

func (s *Store) lockPath(task string) string {
	return filepath.Join(s.modelsDir, task+".lock")
}

// Paths lists every file a committed bundle for task can occupy.
func (s *Store) Paths(task string) []string {
	return []string{s.ModelPath(task), s.ForestPath(task), s.ThresholdPath(task), s.ReportPath(task)}
}

// Commit writes every artifact of the bundle. All files are staged and
// verified first; nothing is renamed into place unless every stage succeeded.
// If a rename fails, the files already placed are rolled back, so the task
// keeps either its previous artifact set or the new one, never a mix.
func (s *Store) Commit(task string, b Bundle) ([]string, error) {
	if b.Pipeline == nil {
		return nil, errors.New("bundle has no pipeline")
	}
	for _, dir := range []string{s.modelsDir, s.reportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
	}

	created := s.now().UTC()
	var staged []*stagedFile
	cleanup := func() {
		for _, f := range staged {
			os.Remove(f.tmp)
		}
	}

	stage := func(path string, encode func() ([]byte, error), verify func([]byte) error) error {
		data, err := encode()
		if err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		f, err := stageFile(path, data, verify)
		if err != nil {
			return err
		}
		staged = append(staged, f)
		return nil
	}

	steps := []struct {
		path   string
		encode func() ([]byte, error)
		verify func([]byte) error
		skip   bool
	}{
		{
			path:   s.ModelPath(task),
			encode: func() ([]byte, error) { return encodePipeline(task, created, b.Pipeline) },
			verify: verifyPipeline,
		},
		{
			path:   s.ForestPath(task),
			encode: func() ([]byte, error) { return encodePipeline(task, created, b.Diagnostic) },
			verify: verifyPipeline,
			skip:   b.Diagnostic == nil,
		},
		{
			path: s.ThresholdPath(task),
			encode: func() ([]byte, error) {
				if b.Threshold == nil {
					return nil, nil
				}
				return encodeThreshold(*b.Threshold)
			},
			verify: func(data []byte) error { _, err := decodeThreshold(data); return err },
			skip:   b.Threshold == nil,
		},
		{
			path:   s.ReportPath(task),
			encode: func() ([]byte, error) { return encodeImportances(b.Importances) },
			verify: func(data []byte) error { _, err := decodeImportances(bytes.NewReader(data)); return err },
			skip:   b.Importances == nil,
		},
	}
	for _, step := range steps {
		if step.skip {
			continue
		}
		if err := stage(step.path, step.encode, step.verify); err != nil {
			cleanup()
			return nil, err
		}
	}

	written, err := s.publish(staged)
	if err != nil {
		return nil, err
	}
	syncDir(s.modelsDir)
	syncDir(s.reportsDir)

	s.logger.Info("artifacts committed", zap.String("task", task), zap.Strings("files", written))
	return written, nil
}

type placedFile struct {
	path   string
	backup string
}

// publish moves staged files into place. Each existing target is first moved
// to a backup name; backups are restored if any later step fails and removed
// once every file is in place.
func (s *Store) publish(staged []*stagedFile) ([]string, error) {
	var placed []placedFile
	rollback := func(pending []*stagedFile) {
		for _, f := range pending {
			os.Remove(f.tmp)
		}
		for i := len(placed) - 1; i >= 0; i-- {
			p := placed[i]
			os.Remove(p.path)
			if p.backup != "" {
				if err := s.rename(p.backup, p.path); err != nil {
					s.logger.Error("could not restore artifact", zap.String("file", p.path), zap.Error(err))
				}
			}
		}
	}

	for i, f := range staged {
		backup := ""
		if _, err := os.Lstat(f.path); err == nil {
			backup = backupPath(f.path)
			os.RemoveAll(backup)
			if err := s.rename(f.path, backup); err != nil {
				rollback(staged[i:])
				return nil, fmt.Errorf("%w: back up %s: %v", ErrIOFailure, f.path, err)
			}
		}
		if err := s.rename(f.tmp, f.path); err != nil {
			if backup != "" {
				if rerr := s.rename(backup, f.path); rerr != nil {
					s.logger.Error("could not restore artifact", zap.String("file", f.path), zap.Error(rerr))
				}
			}
			rollback(staged[i:])
			return nil, fmt.Errorf("%w: rename %s: %v", ErrIOFailure, f.path, err)
		}
		placed = append(placed, placedFile{path: f.path, backup: backup})
	}

	written := make([]string, 0, len(placed))
	for _, p := range placed {
		if p.backup != "" {
			os.RemoveAll(p.backup)
		}
		written = append(written, p.path)
	}
	return written, nil
}

func backupPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+".bak")
}

// LoadPipeline reads a pipeline file written by Commit.
func (s *Store) LoadPipeline(task string) (*ml.Pipeline, Meta, error) {
	p, meta, err := LoadPipeline(s.ModelPath(task))
	if err != nil {
		return nil, meta, err
	}
	if meta.Task != task {
		return nil, meta, fmt.Errorf("%w: %s holds task %q", ErrCorrupt, s.ModelPath(task), meta.Task)
	}
	return p, meta, nil
}

func (s *Store) ReadThreshold(task string) (float64, error) {
	return ReadThreshold(s.ThresholdPath(task))
}

func (s *Store) ReadImportances(task string) ([]ml.Importance, error) {
	return ReadImportances(s.ReportPath(task))
}

// LoadPipeline decodes a pipeline envelope from path.
func LoadPipeline(path string) (*ml.Pipeline, Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	env, err := decodePipeline(data)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%s: %w", path, err)
	}
	return env.Pipeline, env.Meta, nil
}

func encodePipeline(task string, created time.Time, p *ml.Pipeline) ([]byte, error) {
	var buf bytes.Buffer
	env := envelope{
		Meta:     Meta{Format: PipelineFormat, Task: task, CreatedAt: created},
		Pipeline: p,
	}
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePipeline(data []byte) (*envelope, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Format != PipelineFormat {
		return nil, fmt.Errorf("%w: unknown format %q", ErrCorrupt, env.Format)
	}
	if env.Pipeline == nil {
		return nil, fmt.Errorf("%w: no pipeline", ErrCorrupt)
	}
	return &env, nil
}

func verifyPipeline(data []byte) error {
	_, err := decodePipeline(data)
	return err
}

// Lock is an exclusive per-task run lock.
type Lock struct {
	fl *flock.Flock
}

// Lock takes the task lock without blocking. It fails with ErrLocked when
// another process or goroutine already holds it.
func (s *Store) Lock(task string) (*Lock, error) {
	if err := os.MkdirAll(s.modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	fl := flock.New(s.lockPath(task))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: task %q", ErrLocked, task)
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}
