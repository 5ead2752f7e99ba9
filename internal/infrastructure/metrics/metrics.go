// Package metrics holds the Prometheus collectors for ingestion, embedding,
// retrieval and the background work queue.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	// IngestRecordsTotal 依結果統計匯入的外部紀錄
	IngestRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_ingest_records_total",
			Help: "External recipe records processed by outcome (created, skipped, failed)",
		},
		[]string{"outcome"},
	)

	// SourceRequestsTotal 外部來源請求結果
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_source_requests_total",
			Help: "Requests to the external recipe source by result",
		},
		[]string{"result"},
	)

	// EmbeddedRecipesTotal 已寫入的食譜向量數
	EmbeddedRecipesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_embeddings_written_total",
			Help: "Recipe vectors written to the index and catalog",
		},
	)

	// EmbedBatchDuration 嵌入批次耗時
	EmbedBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipe_embed_batch_duration_seconds",
			Help:    "Duration of one embedding batch (encode + upsert)",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RecommendDuration 推薦請求耗時
	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipe_recommend_duration_seconds",
			Help:    "Duration of recommend calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	// RecommendResultsTotal 推薦回傳的筆數
	RecommendResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_recommend_results_total",
			Help: "Recipes returned by the ranking engine",
		},
	)

	// RerankOutcomesTotal 重排序結果
	RerankOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_rerank_outcomes_total",
			Help: "LLM re-rank calls by outcome (ok, malformed, error)",
		},
		[]string{"outcome"},
	)

	// QueueDepth 任務隊列長度
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipe_queue_depth",
			Help: "Jobs waiting in the background queue",
		},
	)

	// JobsTotal 依種類與狀態統計完成的任務
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_jobs_total",
			Help: "Background jobs finished by kind and status",
		},
		[]string{"kind", "status"},
	)

	// CircuitBreakerState 斷路器狀態 (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recipe_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerRequests 經過斷路器的請求結果
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	// HTTPRequestsTotal API 請求數
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration API 請求耗時
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipe_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// ObserveSince 記錄自 start 起的耗時
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// BreakerStateValue 轉換斷路器狀態為數值
func BreakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
