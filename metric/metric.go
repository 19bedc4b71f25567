// Package metric records pipeline run outcomes and pushes them to a
// Pushgateway so short-lived batch runs still show up in monitoring.
package metric

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder tracks per-pipeline run counts, durations, and last success
// times on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewRecorder builds a recorder with an isolated registry.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wildsync",
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by outcome.",
	}, []string{"pipeline", "status"})

	r.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wildsync",
		Name:      "pipeline_run_duration_seconds",
		Help:      "Pipeline run duration.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"pipeline"})

	r.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wildsync",
		Name:      "pipeline_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run.",
	}, []string{"pipeline"})

	r.registry.MustRegister(r.runsTotal, r.runDuration, r.lastSuccess)
	return r
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(pipeline string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	r.runsTotal.WithLabelValues(pipeline, status).Inc()
	r.runDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
	if err == nil {
		r.lastSuccess.WithLabelValues(pipeline).SetToCurrentTime()
	}
}

// Gatherer exposes the recorder's registry, for serving or testing.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// Pusher pushes recorded metrics to a Pushgateway after each run.
type Pusher struct {
	pusher *push.Pusher
	logger *slog.Logger
}

// NewPusher builds a pusher for the given gateway URL and job name. An empty
// URL returns nil; callers treat a nil pusher as disabled.
func NewPusher(gatewayURL, job string, rec *Recorder, logger *slog.Logger) *Pusher {
	if gatewayURL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pusher{
		pusher: push.New(gatewayURL, job).Gatherer(rec.Gatherer()),
		logger: logger,
	}
}

// Push sends the current metric state grouped by pipeline name. Push
// failures are reported but should not fail the run that produced the data.
func (p *Pusher) Push(pipeline string) error {
	if p == nil {
		return nil
	}
	if err := p.pusher.Grouping("pipeline", pipeline).Push(); err != nil {
		return fmt.Errorf("push metrics for %s: %w", pipeline, err)
	}
	p.logger.Debug("Pushed metrics", "pipeline", pipeline)
	return nil
}
