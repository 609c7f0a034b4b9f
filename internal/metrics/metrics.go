// Package metrics exposes Prometheus instrumentation for transcription jobs,
// the LAN chat relay, and the browser-mode HTTP server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"appshell/internal/domain"
	"appshell/internal/transcribe"
)

// Collector contains all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	// Job metrics
	JobsStarted  prometheus.Counter
	JobsFinished *prometheus.CounterVec
	JobsInFlight prometheus.Gauge
	JobDuration  prometheus.Histogram

	// Chat metrics
	ChatSent     prometheus.Counter
	ChatReceived prometheus.Counter
	ChatDropped  *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// New creates all metrics on a private registry, so several collectors can
// coexist in one process.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		JobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "appshell_transcription_jobs_started_total",
			Help: "Total number of transcription jobs created",
		}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "appshell_transcription_jobs_finished_total",
			Help: "Total number of transcription jobs by terminal state",
		}, []string{"state"}),
		JobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "appshell_transcription_jobs_in_flight",
			Help: "Current number of transcription jobs not yet finished",
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "appshell_transcription_job_duration_seconds",
			Help:    "Wall-clock duration of transcription jobs",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 11), // 250ms to ~4 minutes
		}),

		ChatSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "appshell_chat_messages_sent_total",
			Help: "Total number of chat messages broadcast",
		}),
		ChatReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "appshell_chat_messages_received_total",
			Help: "Total number of chat datagrams decoded",
		}),
		ChatDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "appshell_chat_messages_dropped_total",
			Help: "Total number of chat messages dropped",
		}, []string{"reason"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "appshell_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
	}
}

// JobTransition implements transcribe.Observer.
func (c *Collector) JobTransition(t transcribe.Transition) {
	switch {
	case t.To == domain.JobStateCreated:
		c.JobsStarted.Inc()
		c.JobsInFlight.Inc()
	case t.To.IsTerminal():
		c.JobsInFlight.Dec()
		c.JobsFinished.WithLabelValues(string(t.To)).Inc()
		c.JobDuration.Observe(t.Elapsed().Seconds())
	}
}

// RecordChatSent increments the sent counter
func (c *Collector) RecordChatSent() {
	c.ChatSent.Inc()
}

// RecordChatReceived increments the received counter
func (c *Collector) RecordChatReceived() {
	c.ChatReceived.Inc()
}

// RecordChatDropped counts a message that was not delivered
func (c *Collector) RecordChatDropped(reason string) {
	c.ChatDropped.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request
func (c *Collector) RecordHTTPRequest(method, endpoint, statusCode string) {
	c.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
}

// Registry returns the private registry, for gathering in tests and tools.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
