// Package telemetry exposes engine health as prometheus metrics
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	TickSeconds      prometheus.Histogram
	TicksTotal       *prometheus.CounterVec
	FetchErrorsTotal *prometheus.CounterVec
	StopsMonitored   prometheus.Gauge
	BoardDepartures  prometheus.Gauge
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	metrics := &Metrics{
		TickSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "board_tick_seconds",
				Help:    "Duration of one full board refresh tick",
				Buckets: prometheus.DefBuckets,
			},
		),
		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_ticks_total",
				Help: "Refresh ticks by outcome",
			},
			[]string{"result"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_fetch_errors_total",
				Help: "Per-stop fetch failures by data source",
			},
			[]string{"source"},
		),
		StopsMonitored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "board_stops_monitored",
				Help: "Stops currently resolved within the search radius",
			},
		),
		BoardDepartures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "board_departures",
				Help: "Departures in the latest snapshot",
			},
		),
	}

	registry.MustRegister(
		metrics.TickSeconds,
		metrics.TicksTotal,
		metrics.FetchErrorsTotal,
		metrics.StopsMonitored,
		metrics.BoardDepartures,
	)

	return metrics
}

// NewRegistry creates a registry preloaded with the Go runtime and process
// collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler serves the registry over HTTP for scraping
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
