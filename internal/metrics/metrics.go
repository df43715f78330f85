// SPDX-License-Identifier: MIT
// Package metrics exposes pipeline counters on an optional Prometheus
// endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "spectrad/internal/log"
)

var (
	// Cycles counts completed pipeline cycles.
	Cycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spectrad",
		Name:      "pipeline_cycles_total",
		Help:      "Completed sample-analyze-persist cycles.",
	})

	// SamplingErrors counts failed window acquisitions. These are
	// non-fatal; the cycle continues with the windows it has.
	SamplingErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spectrad",
		Name:      "sampling_errors_total",
		Help:      "Window acquisitions that returned an error.",
	})

	// WriteTimeouts counts persists whose completion never arrived
	// within the bounded wait.
	WriteTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spectrad",
		Name:      "write_timeouts_total",
		Help:      "Aggregate record writes that timed out awaiting completion.",
	})

	// PersistedRecords counts aggregate records confirmed durable.
	PersistedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spectrad",
		Name:      "persisted_records_total",
		Help:      "Aggregate records whose write completion was observed.",
	})
)

// Serve exposes /metrics on the given listen address in a background
// goroutine. Server errors are logged and do not stop the pipeline.
func Serve(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		applog.Infof("metrics: listening on %s", listen)
		if err := http.ListenAndServe(listen, mux); err != nil {
			applog.Errorf("metrics: server error: %v", err)
		}
	}()
}
