// Package metrics counts crawl progress in a Prometheus registry and writes
// it in the node_exporter textfile format.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/authcrawl/internal/model"
)

// Recorder receives visits and results. It matches crawler.Recorder.
type Recorder interface {
	RecordVisit(ctx context.Context, runID string, visit model.Visit) error
	RecordResult(ctx context.Context, runID, value, path string) error
}

type runTracker interface {
	StartRun(ctx context.Context, report *model.CrawlReport) error
	FinishRun(ctx context.Context, report *model.CrawlReport) error
}

// Collector counts what passes through it and forwards everything to the
// wrapped Recorder, if any.
type Collector struct {
	registry *prometheus.Registry
	next     Recorder

	visits   *prometheus.CounterVec
	attempts prometheus.Counter
	results  prometheus.Counter
	runs     *prometheus.CounterVec

	requests   prometheus.Gauge
	retries    prometheus.Gauge
	reconnects prometheus.Gauge
	duration   prometheus.Gauge
}

// NewCollector creates a Collector with its own registry. next may be nil.
func NewCollector(next Recorder) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		next:     next,
		visits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcrawl_visits_total",
			Help: "Pages that reached a terminal outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcrawl_visit_attempts_total",
			Help: "Requests sent for pages that reached a terminal outcome.",
		}),
		results: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcrawl_results_total",
			Help: "Unique results found.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcrawl_runs_total",
			Help: "Finished crawl runs.",
		}, []string{"status"}),
		requests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authcrawl_last_run_requests",
			Help: "Requests sent by the last finished run.",
		}),
		retries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authcrawl_last_run_retries",
			Help: "Retries of pages answering 500 in the last finished run.",
		}),
		reconnects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authcrawl_last_run_reconnects",
			Help: "Reconnections after Connection: close in the last finished run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authcrawl_last_run_duration_seconds",
			Help: "Wall time of the last finished run.",
		}),
	}

	c.registry.MustRegister(
		c.visits, c.attempts, c.results, c.runs,
		c.requests, c.retries, c.reconnects, c.duration,
	)
	return c
}

// Registry returns the registry holding the crawl metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordVisit counts visit and forwards it.
func (c *Collector) RecordVisit(ctx context.Context, runID string, visit model.Visit) error {
	c.visits.WithLabelValues(visit.Outcome.String()).Inc()
	c.attempts.Add(float64(visit.Attempts))
	if c.next == nil {
		return nil
	}
	return c.next.RecordVisit(ctx, runID, visit)
}

// RecordResult counts a result and forwards it.
func (c *Collector) RecordResult(ctx context.Context, runID, value, path string) error {
	c.results.Inc()
	if c.next == nil {
		return nil
	}
	return c.next.RecordResult(ctx, runID, value, path)
}

// StartRun forwards to the wrapped Recorder when it tracks runs.
func (c *Collector) StartRun(ctx context.Context, report *model.CrawlReport) error {
	if t, ok := c.next.(runTracker); ok {
		return t.StartRun(ctx, report)
	}
	return nil
}

// FinishRun records the run totals and forwards to the wrapped Recorder
// when it tracks runs.
func (c *Collector) FinishRun(ctx context.Context, report *model.CrawlReport) error {
	c.runs.WithLabelValues(report.Status()).Inc()
	c.requests.Set(float64(report.Stats.Requests))
	c.retries.Set(float64(report.Stats.Retries))
	c.reconnects.Set(float64(report.Stats.Reconnects))
	c.duration.Set(report.Duration().Seconds())

	if t, ok := c.next.(runTracker); ok {
		return t.FinishRun(ctx, report)
	}
	return nil
}

// WriteTextfile writes the metrics to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
