// Package metrics Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 服务指标集合
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	chainCalls       *prometheus.CounterVec
	chainDuration    *prometheus.HistogramVec
	retryRuns        prometheus.Counter
	retryResubmitted *prometheus.CounterVec
	stalePending     prometheus.Gauge
	reconciled       *prometheus.CounterVec
}

// New 在独立的 registry 上注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustfunds_http_requests_total",
			Help: "number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustfunds_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		chainCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustfunds_chain_calls_total",
			Help: "number of contract calls by method and outcome",
		}, []string{"method", "outcome"}),
		chainDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustfunds_chain_call_duration_seconds",
			Help:    "contract call latency including receipt wait",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"method"}),
		retryRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustfunds_retry_runs_total",
			Help: "number of retry job runs",
		}),
		retryResubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustfunds_retry_resubmitted_total",
			Help: "number of campaigns resubmitted by the retry job by outcome",
		}, []string{"outcome"}),
		stalePending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trustfunds_campaigns_stale_pending",
			Help: "number of campaigns stuck in pending at the last retry job run",
		}),
		reconciled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustfunds_reconcile_total",
			Help: "number of stale pending campaigns checked against the chain by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveChainCall 记录一次合约调用，outcome 取 success、failed、timeout
func (m *Metrics) ObserveChainCall(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.chainCalls.WithLabelValues(method, outcome).Inc()
	m.chainDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveRetryRun 记录一次重试任务运行
func (m *Metrics) ObserveRetryRun() {
	if m == nil {
		return
	}
	m.retryRuns.Inc()
}

// ObserveResubmit 记录一次重试结果
func (m *Metrics) ObserveResubmit(outcome string) {
	if m == nil {
		return
	}
	m.retryResubmitted.WithLabelValues(outcome).Inc()
}

// SetStalePending 记录长时间停留在 pending 的众筹数量
func (m *Metrics) SetStalePending(n int) {
	if m == nil {
		return
	}
	m.stalePending.Set(float64(n))
}

// ObserveReconcile 记录一次 pending 对账结果
func (m *Metrics) ObserveReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(outcome).Inc()
}
