package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Identity
	RecordSignIn(provider string, success bool, duration time.Duration)
	RecordSignOut(sessionDuration time.Duration)
	RecordSessionValidation(result string)

	// Device bindings
	RecordDeviceRegistration(result string)
	RecordDeviceRevoked(reason string)

	// Pairing
	RecordPairingCode(result string)
	RecordPairingApproval(waited time.Duration)

	// Gauge Setters (for periodic updates)
	SetActiveDeviceBindings(count int)
	SetPendingPairings(count int)

	// HTTP
	RecordHTTPRequest(method, path string, status int, duration time.Duration)

	// Database Operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by the gauge updater.
type MetricsStore interface {
	CountActiveDeviceBindings() (int64, error)
	CountPendingPairings() (int64, error)
}
