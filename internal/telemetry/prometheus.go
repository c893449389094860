package telemetry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PromJob is the job label used when pushing to a Pushgateway.
const PromJob = "roger"

var invalidMetricChars = regexp.MustCompile(`[^a-zA-Z0-9_:]`)

// PromMetricName converts a record metric name into a valid Prometheus name.
func PromMetricName(name string) string {
	return strings.Trim(invalidMetricChars.ReplaceAllString(name, "_"), "_")
}

var labelNames = []string{"app_name", "event", "identifier", "config_name", "env", "user", "outcome"}

// PrometheusRecorder turns records into Prometheus samples on a private
// registry, which can be written as a textfile or pushed to a Pushgateway.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	duration *prometheus.GaugeVec
	events   *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	base := PromMetricName(MetricName)

	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: base + "_milliseconds",
				Help: "Duration of a deploy lifecycle event in milliseconds",
			},
			labelNames,
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: base + "_events_total",
				Help: "Deploy lifecycle events by outcome",
			},
			[]string{"app_name", "event", "env", "outcome"},
		),
	}
	p.registry.MustRegister(p.duration, p.events)
	return p
}

// Record implements Recorder.
func (p *PrometheusRecorder) Record(_ context.Context, r Record) error {
	t := r.Tags
	p.duration.WithLabelValues(t.App, t.Event, t.Identifier, t.ConfigName, t.Env, t.User, t.Outcome).
		Set(float64(r.DurationMillis))
	p.events.WithLabelValues(t.App, t.Event, t.Env, t.Outcome).Inc()
	return nil
}

// Gatherer returns the registry backing the recorder.
func (p *PrometheusRecorder) Gatherer() prometheus.Gatherer {
	return p.registry
}

// WriteTextfile writes the current samples in text exposition format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

// Push sends the current samples to a Pushgateway at url.
func (p *PrometheusRecorder) Push(ctx context.Context, url string) error {
	if err := push.New(url, PromJob).Gatherer(p.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
