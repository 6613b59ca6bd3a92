package serving

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"tabpredict/artifact"
	"tabpredict/ml"
	"tabpredict/monitoring"
)

// Watcher flags the loaded models as stale when the served artifacts change
// on disk. It never reloads anything.
type Watcher struct {
	watcher *fsnotify.Watcher
	tracked map[string]bool
	stale   atomic.Bool
	logger  *zap.Logger
}

func NewWatcher(store *artifact.Store, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(store.ModelsDir()); err != nil {
		fw.Close()
		return nil, err
	}

	tracked := map[string]bool{
		filepath.Clean(store.ModelPath(ml.TaskInsurance)):    true,
		filepath.Clean(store.ModelPath(ml.TaskDiabetes)):     true,
		filepath.Clean(store.ThresholdPath(ml.TaskDiabetes)): true,
	}
	return &Watcher{watcher: fw, tracked: tracked, logger: logger}, nil
}

// Run consumes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") {
		return
	}
	if !w.tracked[filepath.Clean(event.Name)] {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if w.stale.CompareAndSwap(false, true) {
		monitoring.SetArtifactsStale(true)
		w.logger.Warn("served artifacts changed on disk, restart to load them",
			zap.String("file", event.Name),
			zap.String("op", event.Op.String()),
		)
	}
}

// Stale reports whether any served artifact changed since start.
func (w *Watcher) Stale() bool {
	if w == nil {
		return false
	}
	return w.stale.Load()
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
