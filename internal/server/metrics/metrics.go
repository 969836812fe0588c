// Package metrics 导出面板自身的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "knotstats"

// 结果标签
const (
	ResultOK = "ok"
)

// Metrics 面板指标集合，使用独立的注册表
// 零值指针可以安全调用，所有记录方法都会直接返回
type Metrics struct {
	registry *prometheus.Registry

	info             *prometheus.GaugeVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	upstreamUp       prometheus.Gauge
	hostsSaves       *prometheus.CounterVec
}

// New 创建并注册所有指标
func New(version string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "knotstats version information.",
		}, []string{"version"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to the resolver metrics endpoint by result.",
		}, []string{"result"}),
		upstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of requests to the resolver metrics endpoint.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		upstreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_up",
			Help:      "Whether the last scheduled probe of the resolver metrics endpoint succeeded.",
		}),
		hostsSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hosts_saves_total",
			Help:      "Accepted hosts file saves by reload status.",
		}, []string{"reload"}),
	}

	m.registry.MustRegister(
		m.info,
		m.upstreamRequests,
		m.upstreamDuration,
		m.upstreamUp,
		m.hostsSaves,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.info.With(prometheus.Labels{"version": version}).Set(1)

	return m
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveUpstream 记录一次上游请求
func (m *Metrics) ObserveUpstream(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(result).Inc()
	m.upstreamDuration.Observe(elapsed.Seconds())
}

// SetUpstreamUp 记录最近一次探测结果
func (m *Metrics) SetUpstreamUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.upstreamUp.Set(1)
	} else {
		m.upstreamUp.Set(0)
	}
}

// ObserveHostsSave 记录一次hosts保存
func (m *Metrics) ObserveHostsSave(reloadStatus string) {
	if m == nil {
		return
	}
	m.hostsSaves.WithLabelValues(reloadStatus).Inc()
}
