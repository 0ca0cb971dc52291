package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Sign-in results.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	// If NoopMetrics, return a lightweight middleware that does nothing
	if _, ok := m.(*NoopMetrics); ok {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	metrics, _ := m.(*Metrics)

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		if metrics != nil {
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()
		}

		c.Next()

		// Use route pattern, not actual path
		m.RecordHTTPRequest(
			c.Request.Method,
			normalizePath(c.FullPath()),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

// normalizePath converts the actual request path to route pattern
// Returns the route pattern (e.g., "/admin/devices/:id/revoke") or "unknown" if no route matched
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

// RecordSignIn records a password sign-in attempt
func (m *Metrics) RecordSignIn(provider string, success bool, duration time.Duration) {
	result := resultSuccess
	if !success {
		result = resultFailure
	}
	m.SignInsTotal.WithLabelValues(provider, result).Inc()
	m.SignInDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordSignOut records a sign-out and the lifetime of the ended session
func (m *Metrics) RecordSignOut(sessionDuration time.Duration) {
	m.SignOutsTotal.Inc()
	if sessionDuration > 0 {
		m.SessionDuration.Observe(sessionDuration.Seconds())
	}
}

// RecordSessionValidation records a bearer validation result
func (m *Metrics) RecordSessionValidation(result string) {
	m.SessionValidationsTotal.WithLabelValues(result).Inc()
}

// RecordDeviceRegistration records the outcome of register_device
func (m *Metrics) RecordDeviceRegistration(result string) {
	m.DeviceRegistrationsTotal.WithLabelValues(result).Inc()
	if result == "registered" {
		m.DeviceBindingsActive.Inc()
	}
}

// RecordDeviceRevoked records a binding revocation
func (m *Metrics) RecordDeviceRevoked(reason string) {
	m.DeviceRevocationsTotal.WithLabelValues(reason).Inc()
	m.DeviceBindingsActive.Dec()
}

// RecordPairingCode records a pairing lifecycle event
func (m *Metrics) RecordPairingCode(result string) {
	m.PairingCodesTotal.WithLabelValues(result).Inc()
	switch result {
	case "created":
		m.PairingsPending.Inc()
	case "approved", "rejected", "expired":
		m.PairingsPending.Dec()
	}
}

// RecordPairingApproval records how long a code waited before approval
func (m *Metrics) RecordPairingApproval(waited time.Duration) {
	m.PairingApprovalDuration.Observe(waited.Seconds())
}

// SetActiveDeviceBindings sets the current count of live bindings (for periodic updates)
func (m *Metrics) SetActiveDeviceBindings(count int) {
	m.DeviceBindingsActive.Set(float64(count))
}

// SetPendingPairings sets the current count of pending codes (for periodic updates)
func (m *Metrics) SetPendingPairings(count int) {
	m.PairingsPending.Set(float64(count))
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
