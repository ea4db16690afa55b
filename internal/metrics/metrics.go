package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds every probe metric. It is private to the process so that
// exports carry only the probe's own series, not Go runtime collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Probe metrics
	CacheHitRatio = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgcachehit_ratio_percent",
			Help: "Last measured cache hit ratio in percent",
		},
		[]string{"target", "relation"},
	)

	ProbeStatus = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgcachehit_status",
			Help: "Last probe verdict as exit code (0=OK, 1=WARNING, 2=CRITICAL, 3=UNKNOWN)",
		},
		[]string{"target", "relation"},
	)

	ProbesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgcachehit_probes_total",
			Help: "Total number of probes by verdict",
		},
		[]string{"status"},
	)

	ProbeDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pgcachehit_probe_duration_seconds",
			Help:    "Time taken to fetch and evaluate the cache hit ratio",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	FetchErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgcachehit_fetch_errors_total",
			Help: "Total number of failed metric fetches",
		},
		[]string{"kind"}, // kind: not_found, connection, query
	)

	// Kafka producer metrics
	KafkaPublishTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgcachehit_kafka_publish_total",
			Help: "Total number of probe events published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishRetries = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pgcachehit_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	// Panic recovery
	PanicsRecovered = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgcachehit_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)

// WriteTextfile writes the registry in the node_exporter textfile format.
// The file is replaced atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return errors.New("textfile path is required")
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write textfile %s: %w", path, err)
	}
	return nil
}

// Push sends the registry to a Prometheus Pushgateway.
func Push(ctx context.Context, url, job string, grouping map[string]string) error {
	if url == "" {
		return errors.New("pushgateway url is required")
	}
	if job == "" {
		job = "check_pgsql_cachehit"
	}

	pusher := push.New(url, job).Gatherer(Registry)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push to %s: %w", url, err)
	}
	return nil
}
