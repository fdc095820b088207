// Package metrics содержит метрики Prometheus для построения таблицы, обучения и выдачи рекомендаций.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы запроса рекомендаций.
const (
	OutcomeOK             = "ok"
	OutcomeInvalidZip     = "invalid_zip"
	OutcomeUnknownProduct = "unknown_product"
	OutcomeError          = "error"
)

var (
	// RecommendRequests считает запросы рекомендаций по источнику (cli, form, api) и исходу.
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vio_recommend_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"source", "outcome"},
	)

	// RecommendDuration - время ранжирования всех продуктов для одного ZIP.
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vio_recommend_duration_seconds",
			Help:    "Time spent ranking products for a zip code",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// StageDuration - длительность этапов пайплайна: load, aggregate, persist, fit, evaluate.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vio_pipeline_stage_duration_seconds",
			Help:    "Duration of batch pipeline stages",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	// CompatibilityRows - число строк текущей таблицы совместимости.
	CompatibilityRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vio_compatibility_rows",
			Help: "Number of rows in the unified compatibility table",
		},
	)

	// ProductsServed - число различных продуктов, ранжируемых загруженной моделью.
	ProductsServed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vio_products_served",
			Help: "Number of distinct products ranked by the loaded model",
		},
	)

	// CircuitBreakerState - состояние предохранителя внешнего хранилища: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vio_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordRecommend фиксирует исход и длительность запроса рекомендаций.
func RecordRecommend(source, outcome string, d time.Duration) {
	RecommendRequests.WithLabelValues(source, outcome).Inc()
	RecommendDuration.Observe(d.Seconds())
}

// ObserveStage фиксирует длительность этапа, начатого в start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
