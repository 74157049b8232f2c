// Package metrics defines all Prometheus metrics for the ACD daemon.
// All metrics use the "ipv4acd_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ipv4acd"

// --- Probe/Announcement Metrics ---

var (
	// ProbesSent counts ARP probes transmitted, by instance address.
	ProbesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probes_sent_total",
		Help:      "Total ARP probes transmitted, by claimed address.",
	}, []string{"address"})

	// AnnouncementsSent counts ARP announcements transmitted.
	AnnouncementsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "announcements_sent_total",
		Help:      "Total ARP announcements transmitted, by claimed address.",
	}, []string{"address"})

	// BindLatency tracks the time from Start to the BIND notification.
	BindLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "bind_latency_seconds",
		Help:      "Time from Start to a successful BIND, in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"address"})
)

// --- Conflict Metrics ---

var (
	// ConflictsDetected counts conflicts that made an instance release
	// its address, by instance and outcome. cmd/acdprobed only ever
	// records outcome "yielded"; a defended conflict never reaches the
	// CONFLICT notification and is not counted here.
	ConflictsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflicts_detected_total",
		Help:      "Total ARP conflicts observed, by address and outcome.",
	}, []string{"address", "outcome"})

	// RateLimitActivations counts times an instance's restart was
	// delayed by the RATE_LIMIT_INTERVAL backoff.
	RateLimitActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_activations_total",
		Help:      "Total times the conflict rate limiter engaged, by address.",
	}, []string{"address"})

	// Binds counts successful address binds.
	Binds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "binds_total",
		Help:      "Total successful address binds, by address.",
	}, []string{"address"})

	// InstanceState is a labeled gauge of 1 for the instance's current
	// automaton state and 0 for every other state label previously set.
	InstanceState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "instance_state",
		Help:      "Current automaton state per instance (1 = current). Labels: address, state.",
	}, []string{"address", "state"})
)

// --- Event Bus Metrics ---

var (
	// EventsPublished counts events published to the bus.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total events published to the event bus.",
	}, []string{"event_type"})

	// EventBufferDrops counts events dropped due to full buffer.
	EventBufferDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_buffer_drops_total",
		Help:      "Total events dropped due to full event bus buffer.",
	})

	// HookExecutions counts hook executions by type and result.
	HookExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hook_executions_total",
		Help:      "Total hook executions.",
	}, []string{"hook_type", "result"})

	// HookDuration tracks hook execution latency.
	HookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "hook_execution_duration_seconds",
		Help:      "Hook execution duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
	}, []string{"hook_type"})
)

// --- API Metrics ---

var (
	// APIRequests counts HTTP API requests by method, path, and status.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Total HTTP API requests.",
	}, []string{"method", "path", "status"})

	// APIRequestDuration tracks API request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP API request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// --- Server Info ---

var (
	// ServerInfo is a constant gauge with daemon build and version info.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_info",
		Help:      "Daemon build and version info.",
	}, []string{"version"})

	// ServerStartTime tracks daemon start time as a unix timestamp.
	ServerStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_start_time_seconds",
		Help:      "Daemon start time as Unix timestamp.",
	})
)
