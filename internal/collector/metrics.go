// SPDX-License-Identifier: MPL-2.0

package collector

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics is registered per server so that several collectors can live in
// one process.
type metrics struct {
	registry        *prometheus.Registry
	reports         *prometheus.CounterVec
	settingsFetches prometheus.Counter
	requestDuration *prometheus.HistogramVec
	rules           prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildhook_reports_total",
				Help: "Intercepted compiler invocations by rewrite outcome.",
			},
			[]string{"outcome"},
		),
		settingsFetches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "buildhook_settings_fetches_total",
				Help: "Settings documents served to exec hooks.",
			},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "buildhook_request_duration_seconds",
				Help: "Collector request latency in seconds.",
				Buckets: []float64{
					0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.2,
				},
			},
			[]string{"path"},
		),
		rules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "buildhook_rules",
				Help: "Number of rules currently served.",
			},
		),
	}
	m.registry.MustRegister(m.reports, m.settingsFetches, m.requestDuration, m.rules)
	return m
}

func (m *metrics) observe(path string, d time.Duration) {
	m.requestDuration.WithLabelValues(path).Observe(d.Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
