package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tabpredict/db"
	"tabpredict/ml"
	"tabpredict/serving"
)

const maxRunsLimit = 500

// API serves predictions from an immutable set of loaded models.
type API struct {
	models  *serving.Models
	watcher *serving.Watcher
	cache   *predictionCache
	logger  *zap.Logger
}

// NewAPI wires the handlers. watcher may be nil; cacheSize <= 0 disables the cache.
func NewAPI(models *serving.Models, watcher *serving.Watcher, cacheSize int, logger *zap.Logger) (*API, error) {
	if models == nil {
		return nil, errors.New("models are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := newPredictionCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &API{models: models, watcher: watcher, cache: cache, logger: logger}, nil
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleRoot)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /predict/insurance", a.handlePredictInsurance)
	mux.HandleFunc("POST /predict/diabetes", a.handlePredictDiabetes)
	mux.HandleFunc("GET /api/runs", handleRuns)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"msg":                "OK",
		"endpoints":          []string{"/predict/insurance", "/predict/diabetes"},
		"threshold_diabetes": a.models.Threshold(),
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := a.models.Info()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"stale":     a.watcher.Stale(),
		"loaded_at": info.LoadedAt,
	})
}

func (a *API) handlePredictInsurance(w http.ResponseWriter, r *http.Request) {
	in, err := serving.DecodeInsurance(r.Body)
	if err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	if out, ok := a.cache.getInsurance(in); ok {
		writeJSON(w, http.StatusOK, out)
		return
	}

	out, err := a.models.PredictInsurance(in)
	if err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	a.cache.addInsurance(in, out)
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePredictDiabetes(w http.ResponseWriter, r *http.Request) {
	in, err := serving.DecodeDiabetes(r.Body)
	if err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	if out, ok := a.cache.getDiabetes(in); ok {
		writeJSON(w, http.StatusOK, out)
		return
	}

	out, err := a.models.PredictDiabetes(in)
	if err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	a.cache.addDiabetes(in, out)
	writeJSON(w, http.StatusOK, out)
}

// handleRuns lists recent training runs from the registry.
func handleRuns(w http.ResponseWriter, r *http.Request) {
	if !db.Initialized() {
		writeError(w, http.StatusServiceUnavailable, "training registry disabled")
		return
	}

	task := r.URL.Query().Get("task")
	if task != "" && task != ml.TaskInsurance && task != ml.TaskDiabetes {
		writeError(w, http.StatusBadRequest, "unknown task "+strconv.Quote(task))
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(l, maxRunsLimit)
	}

	runs, err := db.LoadTrainingLog(task, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (a *API) writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs serving.ValidationErrors
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  serving.ErrValidation.Error(),
			"errors": verrs,
		})
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, serving.ErrMalformedRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("prediction failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "prediction failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
