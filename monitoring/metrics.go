package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tabpredict"

var (
	// HTTP 指标
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// 预测指标
	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by task and outcome",
		},
		[]string{"task", "outcome"},
	)

	predictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent inside the model for one prediction",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"task"},
	)

	predictionCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_total",
			Help:      "Prediction cache lookups, by task and result",
		},
		[]string{"task", "result"},
	)

	// 模型指标
	modelThreshold = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_threshold",
			Help:      "Decision threshold of the loaded classifier",
		},
		[]string{"task"},
	)

	modelLoadedTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_created_timestamp_seconds",
			Help:      "Creation time of the loaded model artifact",
		},
		[]string{"task"},
	)

	artifactsStale = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts_stale",
			Help:      "1 when artifacts on disk changed after the service loaded them",
		},
	)

	// 训练指标
	trainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training runs, by task and status",
		},
		[]string{"task", "status"},
	)

	trainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Wall time of one training run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"task"},
	)
)

// RecordHTTPRequest 记录HTTP请求
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPrediction counts one prediction; outcome is "ok" or "invalid" for
// regression and the predicted class for classification.
func RecordPrediction(task, outcome string, duration time.Duration) {
	predictionsTotal.WithLabelValues(task, outcome).Inc()
	if duration > 0 {
		predictionDuration.WithLabelValues(task).Observe(duration.Seconds())
	}
}

func RecordCacheLookup(task string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	predictionCache.WithLabelValues(task, result).Inc()
}

// SetModelInfo publishes what the service loaded at start.
func SetModelInfo(task string, created time.Time, threshold *float64) {
	if !created.IsZero() {
		modelLoadedTimestamp.WithLabelValues(task).Set(float64(created.Unix()))
	}
	if threshold != nil {
		modelThreshold.WithLabelValues(task).Set(*threshold)
	}
}

func SetArtifactsStale(stale bool) {
	if stale {
		artifactsStale.Set(1)
		return
	}
	artifactsStale.Set(0)
}

// RecordTrainingRun 记录训练
func RecordTrainingRun(task, status string, duration time.Duration) {
	trainingRunsTotal.WithLabelValues(task, status).Inc()
	trainingDuration.WithLabelValues(task).Observe(duration.Seconds())
}
