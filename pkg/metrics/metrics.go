// Package metrics 定义服务的 Prometheus 指标，全部注册在默认 registry 的 rag_chat 命名空间下
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rag_chat"

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func histogram(subsystem, name, help string, buckets []float64) prometheus.Histogram {
	return promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func gaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

var (
	latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	sizeBuckets    = prometheus.ExponentialBuckets(100, 10, 6)
)

// HTTP，path 取路由模板
var (
	HTTPRequestsTotal   = counterVec("http", "requests_total", "Total number of HTTP requests", "method", "path", "status")
	HTTPRequestDuration = histogramVec("http", "request_duration_seconds", "HTTP request duration in seconds", latencyBuckets, "method", "path")
	HTTPRequestSize     = histogramVec("http", "request_size_bytes", "HTTP request size in bytes", sizeBuckets, "method", "path")
	HTTPResponseSize    = histogramVec("http", "response_size_bytes", "HTTP response size in bytes", sizeBuckets, "method", "path")
)

// LLM 调用由 eino 全局回调记录，workflow 见 service.LLMCall
var (
	// type: prompt / completion
	LLMTokensUsed   = counterVec("llm", "tokens_used_total", "Total tokens used for LLM calls", "workflow", "provider", "model", "type")
	LLMCallDuration = histogramVec("llm", "call_duration_seconds", "LLM call duration in seconds",
		[]float64{.25, .5, 1, 2.5, 5, 10, 30, 60}, "workflow", "provider", "model")
	LLMCallTotal = counterVec("llm", "call_total", "Total number of LLM calls", "workflow", "provider", "model", "status")
)

var (
	// fallback 标记分类失败后按文档问题兜底
	ClassifierDecisions = counterVec("chat", "classification_total", "Query classification results", "label", "fallback")
	// state: done / error / cancelled
	ChatStreamTotal       = counterVec("chat", "stream_total", "Chat turns by terminal state", "state", "used_context")
	ChatFirstTokenLatency = histogram("chat", "first_token_seconds", "Latency from request receipt to first streamed token",
		[]float64{.1, .25, .5, 1, 2, 4, 8})
)

var (
	EmbeddingCallTotal   = counterVec("embedding", "call_total", "Total number of embedding batch calls", "status")
	VectorSearchDuration = histogramVec("vector", "search_duration_seconds", "Vector search duration in seconds",
		[]float64{.01, .05, .1, .25, .5, 1}, "backend")
	VectorSearchTotal = counterVec("vector", "search_total", "Total number of vector searches", "backend", "status")
)

var (
	IngestionTotal    = counterVec("ingestion", "total", "Total number of ingested uploads", "kind", "status")
	IngestionDuration = histogramVec("ingestion", "duration_seconds", "Ingestion duration in seconds",
		[]float64{.5, 1, 2.5, 5, 10, 30, 60, 120}, "kind")
	IngestionChunks = histogram("ingestion", "chunks", "Chunks produced per upload", prometheus.ExponentialBuckets(1, 2, 10))
	// outcome: skipped / described / degraded
	VisionEscalations = counterVec("ingestion", "vision_escalation_total", "Image uploads by vision escalation outcome", "outcome")
	IngestionInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ingestion", Name: "in_flight", Help: "Uploads currently being ingested",
	})
)

// 资产事件流
var (
	RedisStreamLag       = gaugeVec("redis", "stream_lag", "Redis stream consumer lag", "stream", "consumer_group")
	RedisStreamProcessed = counterVec("redis", "stream_processed_total", "Total number of Redis stream messages processed", "stream", "status")
)
