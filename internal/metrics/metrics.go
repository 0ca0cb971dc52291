package metrics

import (
	"sync"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface used by services and handlers.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Identity Metrics
	SignInsTotal            *prometheus.CounterVec
	SignInDuration          *prometheus.HistogramVec
	SignOutsTotal           prometheus.Counter
	SessionDuration         prometheus.Histogram
	SessionValidationsTotal *prometheus.CounterVec

	// Device Binding Metrics
	DeviceRegistrationsTotal *prometheus.CounterVec
	DeviceRevocationsTotal   *prometheus.CounterVec
	DeviceBindingsActive     prometheus.Gauge

	// Pairing Metrics
	PairingCodesTotal       *prometheus.CounterVec
	PairingApprovalDuration prometheus.Histogram
	PairingsPending         prometheus.Gauge

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns the Prometheus recorder registered on the default registry
// when enabled, or a NoopMetrics otherwise.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers every collector on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SignInsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_sign_ins_total",
				Help: "Total number of password sign-in attempts",
			},
			[]string{"provider", "result"}, // result: success, failure
		),
		SignInDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "member_sign_in_duration_seconds",
				Help:    "Time taken to verify credentials and issue a session",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"provider"},
		),
		SignOutsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "member_sign_outs_total",
				Help: "Total number of sessions ended by sign-out",
			},
		),
		SessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name: "member_session_duration_seconds",
				Help: "Lifetime of member sessions at sign-out",
				Buckets: []float64{
					60,
					300,
					900,
					3600,
					14400,
					43200,
					86400,
				}, // 1m, 5m, 15m, 1h, 4h, 12h, 24h
			},
		),
		SessionValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_session_validations_total",
				Help: "Total number of bearer session validations",
			},
			[]string{"result"}, // valid, invalid, expired, revoked
		),

		DeviceRegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "device_registrations_total",
				Help: "Total number of device registration attempts",
			},
			[]string{"result"}, // registered, max_reached, revoked, error
		),
		DeviceRevocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "device_revocations_total",
				Help: "Total number of device bindings revoked",
			},
			[]string{"reason"}, // pairing, admin
		),
		DeviceBindingsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "device_bindings_active",
				Help: "Current number of non-revoked device bindings",
			},
		),

		PairingCodesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairing_codes_total",
				Help: "Total number of pairing code lifecycle events",
			},
			[]string{"result"}, // created, reused, approved, rejected, expired
		),
		PairingApprovalDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pairing_approval_duration_seconds",
				Help:    "Time between pairing code creation and approval",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
		),
		PairingsPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairings_pending",
				Help: "Current number of pending, unexpired pairing codes",
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		DatabaseQueryErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"}, // count_device_bindings, count_pending_pairings
		),
	}
}
