package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordSignIn(provider string, success bool, duration time.Duration) {}
func (n *NoopMetrics) RecordSignOut(sessionDuration time.Duration)                        {}
func (n *NoopMetrics) RecordSessionValidation(result string)                              {}

func (n *NoopMetrics) RecordDeviceRegistration(result string) {}
func (n *NoopMetrics) RecordDeviceRevoked(reason string)      {}

func (n *NoopMetrics) RecordPairingCode(result string)            {}
func (n *NoopMetrics) RecordPairingApproval(waited time.Duration) {}

func (n *NoopMetrics) SetActiveDeviceBindings(count int) {}
func (n *NoopMetrics) SetPendingPairings(count int)      {}

func (n *NoopMetrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {}

func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
