package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shelfsync/internal/catalog"
	"shelfsync/internal/syncer"
)

const namespace = "shelfsync"

// Recorder owns a private registry and the collectors registered in it.
type Recorder struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	throttles    *prometheus.CounterVec
	throttleWait *prometheus.CounterVec
	records      *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  *prometheus.GaugeVec
	runRecords   *prometheus.GaugeVec
	lastSuccess  *prometheus.GaugeVec

	now func() time.Time
}

var (
	_ catalog.Observer = (*Recorder)(nil)
	_ syncer.Observer  = (*Recorder)(nil)
)

// New builds a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Requests sent to catalogs and the destination, by outcome.",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of completed provider requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_throttles_total",
			Help:      "Rate limited responses per provider.",
		}, []string{"provider"}),
		throttleWait: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_throttle_wait_seconds_total",
			Help:      "Time spent backing off after rate limited responses.",
		}, []string{"provider"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records processed, by final status.",
		}, []string{"target", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs, by result.",
		}, []string{"target", "result"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run.",
		}, []string{"target"}),
		runRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_records",
			Help:      "Record counters of the most recent run.",
		}, []string{"target", "counter"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the most recent run without a fatal error.",
		}, []string{"target"}),
		now: time.Now,
	}
	r.registry.MustRegister(
		r.requests, r.latency, r.throttles, r.throttleWait,
		r.records, r.runs, r.runDuration, r.runRecords, r.lastSuccess,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRequest implements catalog.Observer.
func (r *Recorder) ObserveRequest(provider, outcome string, latency time.Duration) {
	r.requests.WithLabelValues(provider, outcome).Inc()
	if latency > 0 {
		r.latency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}

// ObserveThrottle implements catalog.Observer.
func (r *Recorder) ObserveThrottle(provider string, wait time.Duration) {
	r.throttles.WithLabelValues(provider).Inc()
	r.throttleWait.WithLabelValues(provider).Add(wait.Seconds())
}

// ObserveRecord implements syncer.Observer.
func (r *Recorder) ObserveRecord(target string, status syncer.Status) {
	r.records.WithLabelValues(target, string(status)).Inc()
}

// ObserveRun implements syncer.Observer.
func (r *Recorder) ObserveRun(target string, counters syncer.Counters, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.runs.WithLabelValues(target, result).Inc()
	r.runDuration.WithLabelValues(target).Set(duration.Seconds())
	for name, value := range map[string]int{
		"scanned":   counters.Scanned,
		"skipped":   counters.Skipped,
		"updated":   counters.Updated,
		"created":   counters.Created,
		"unchanged": counters.Unchanged,
		"failed":    counters.Failed,
	} {
		r.runRecords.WithLabelValues(target, name).Set(float64(value))
	}
	if err == nil {
		r.lastSuccess.WithLabelValues(target).Set(float64(r.now().Unix()))
	}
}

// WriteTextfile writes the registry in the text exposition format. The
// file is replaced atomically so node_exporter never reads a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
