package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Stub exchange metrics
	ExchangesTotal   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	ExchangeBytes    *prometheus.CounterVec

	// Terminal metrics
	SessionsActive prometheus.Gauge
	SessionsOpened *prometheus.CounterVec
	Commands       *prometheus.CounterVec
	StateDrift     prometheus.Counter

	// Registry metrics
	ShellsRegistered prometheus.Gauge
	Probes           *prometheus.CounterVec

	registry  *prometheus.Registry
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON stats endpoint.
type Snapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalErrors      int64   `json:"total_errors"`
	Exchanges        int64   `json:"exchanges"`
	ExchangeFailures int64   `json:"exchange_failures"`
	ActiveSessions   int64   `json:"active_sessions"`
	Commands         int64   `json:"commands"`
	AvgExchangeMs    float64 `json:"avg_exchange_ms"`
	UptimeSeconds    float64 `json:"uptime_seconds"`

	exchangeSeconds float64
}

// NewMetrics creates a collector on its own registry, so several instances
// can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stubterm_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stubterm_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),

		ExchangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stubterm_exchanges_total",
				Help: "Stub exchanges by host and outcome (ok, status, unreachable)",
			},
			[]string{"host", "outcome"},
		),
		ExchangeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stubterm_exchange_duration_seconds",
				Help:    "Stub round trip time in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"host"},
		),
		ExchangeBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stubterm_exchange_bytes_total",
				Help: "Bytes exchanged with stubs",
			},
			[]string{"direction"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stubterm_sessions_active",
				Help: "Number of open terminal sessions",
			},
		),
		SessionsOpened: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stubterm_sessions_opened_total",
				Help: "Terminal creation attempts by result",
			},
			[]string{"result"},
		),
		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stubterm_commands_total",
				Help: "Terminal commands by result",
			},
			[]string{"result"},
		),
		StateDrift: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stubterm_state_drift_total",
				Help: "Commands whose trailer could not be parsed",
			},
		),

		ShellsRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stubterm_shells_registered",
				Help: "Number of stored shell records",
			},
		),
		Probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stubterm_probes_total",
				Help: "Connectivity probes by result (alive, dead)",
			},
			[]string{"result"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "stubterm_uptime_seconds",
			Help: "Seconds since the collector was created",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an API request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ObserveExchange records one stub round trip.
func (m *Metrics) ObserveExchange(host, outcome string, duration time.Duration, sent, received int) {
	m.ExchangesTotal.WithLabelValues(host, outcome).Inc()
	m.ExchangeDuration.WithLabelValues(host).Observe(duration.Seconds())
	m.ExchangeBytes.WithLabelValues("sent").Add(float64(sent))
	m.ExchangeBytes.WithLabelValues("received").Add(float64(received))

	m.mu.Lock()
	m.snapshot.Exchanges++
	m.snapshot.exchangeSeconds += duration.Seconds()
	if outcome != "ok" {
		m.snapshot.ExchangeFailures++
	}
	m.mu.Unlock()
}

// SessionOpened records a terminal creation attempt.
func (m *Metrics) SessionOpened(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.SessionsOpened.WithLabelValues(result).Inc()
}

// SetSessionsActive sets the number of open terminals
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// CommandExecuted records a terminal command outcome.
func (m *Metrics) CommandExecuted(ok, drift bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.Commands.WithLabelValues(result).Inc()
	if drift {
		m.StateDrift.Inc()
	}
	m.mu.Lock()
	m.snapshot.Commands++
	m.mu.Unlock()
}

// ProbeCompleted records a connectivity probe.
func (m *Metrics) ProbeCompleted(alive bool) {
	result := "alive"
	if !alive {
		result = "dead"
	}
	m.Probes.WithLabelValues(result).Inc()
}

// SetShellsRegistered sets the number of stored shells
func (m *Metrics) SetShellsRegistered(count int) {
	m.ShellsRegistered.Set(float64(count))
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.Exchanges > 0 {
		s.AvgExchangeMs = s.exchangeSeconds / float64(s.Exchanges) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
