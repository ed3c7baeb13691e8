// Package metrics implements the pipeline metrics sink on Prometheus.
// All recording calls are fire-and-forget and never fail; Nop is the
// disabled implementation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptops/llmpipe/internal/core/domain"
	"github.com/promptops/llmpipe/internal/core/ports"
)

var latencyBuckets = []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}

// Prometheus collects pipeline metrics into a dedicated registry.
type Prometheus struct {
	registry *prometheus.Registry

	requestsTotal         prometheus.Counter
	successTotal          prometheus.Counter
	failureTotal          prometheus.Counter
	promptTokensTotal     prometheus.Counter
	completionTokensTotal prometheus.Counter
	totalTokens           prometheus.Counter
	pipelineLatency       prometheus.Histogram
	inferenceLatency      prometheus.Histogram
}

// NewPrometheus creates a collector backed by its own registry.
func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llm_pipeline_requests_total",
			Help: "Total number of requests processed",
		}),
		successTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llm_pipeline_success_total",
			Help: "Total number of successful requests",
		}),
		failureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llm_pipeline_failure_total",
			Help: "Total number of failed requests",
		}),
		promptTokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llm_pipeline_prompt_tokens_total",
			Help: "Total number of prompt tokens used",
		}),
		completionTokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llm_pipeline_completion_tokens_total",
			Help: "Total number of completion tokens used",
		}),
		totalTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llm_pipeline_total_tokens",
			Help: "Total number of tokens used",
		}),
		pipelineLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "llm_pipeline_latency_seconds",
			Help:    "Time taken for complete pipeline execution",
			Buckets: latencyBuckets,
		}),
		inferenceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "llm_inference_latency_seconds",
			Help:    "Time taken for LLM inference only",
			Buckets: latencyBuckets,
		}),
	}

	registry.MustRegister(
		p.requestsTotal,
		p.successTotal,
		p.failureTotal,
		p.promptTokensTotal,
		p.completionTokensTotal,
		p.totalTokens,
		p.pipelineLatency,
		p.inferenceLatency,
	)

	return p
}

func (p *Prometheus) RecordRequest() { p.requestsTotal.Inc() }

func (p *Prometheus) RecordSuccess() { p.successTotal.Inc() }

func (p *Prometheus) RecordFailure() { p.failureTotal.Inc() }

// RecordTokenUsage adds the usage block counters. A nil usage is ignored.
func (p *Prometheus) RecordTokenUsage(usage *domain.Usage) {
	if usage == nil {
		return
	}
	p.promptTokensTotal.Add(float64(usage.PromptTokens))
	p.completionTokensTotal.Add(float64(usage.CompletionTokens))
	p.totalTokens.Add(float64(usage.TotalTokens))
}

// TimePipeline observes end-to-end pipeline latency since start.
func (p *Prometheus) TimePipeline(start time.Time) {
	p.pipelineLatency.Observe(time.Since(start).Seconds())
}

// TimeInference observes inference-only latency since start.
func (p *Prometheus) TimeInference(start time.Time) {
	p.inferenceLatency.Observe(time.Since(start).Seconds())
}

// Handler returns the exposition handler for this collector's registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Nop is the disabled metrics sink.
type Nop struct{}

func (Nop) RecordRequest() {}

func (Nop) RecordSuccess() {}

func (Nop) RecordFailure() {}

func (Nop) RecordTokenUsage(*domain.Usage) {}

func (Nop) TimePipeline(time.Time) {}

func (Nop) TimeInference(time.Time) {}

var (
	_ ports.MetricsCollector = (*Prometheus)(nil)
	_ ports.MetricsCollector = Nop{}
)
