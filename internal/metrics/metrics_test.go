package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return New(prometheus.NewRegistry())
}

func TestInit(t *testing.T) {
	m := Init(true)
	require.NotNil(t, m)

	metrics, ok := m.(*Metrics)
	require.True(t, ok, "Init(true) should return *Metrics")
	assert.NotNil(t, metrics.SignInsTotal)
	assert.NotNil(t, metrics.DeviceRegistrationsTotal)
	assert.NotNil(t, metrics.PairingCodesTotal)

	// Registering twice on the default registry would panic
	assert.Same(t, metrics, Init(true))
}

func TestInitNoop(t *testing.T) {
	m := Init(false)
	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")
}

func TestRecordSignIn(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSignIn("local", true, 20*time.Millisecond)
	m.RecordSignIn("local", false, 10*time.Millisecond)
	m.RecordSignIn("local", false, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignInsTotal.WithLabelValues("local", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignInsTotal.WithLabelValues("local", "failure")))
}

func TestRecordSignOut(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSignOut(time.Hour)
	m.RecordSignOut(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignOutsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SessionDuration))
}

func TestRecordDeviceLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDeviceRegistration("registered")
	m.RecordDeviceRegistration("registered")
	m.RecordDeviceRegistration("max_reached")
	m.RecordDeviceRevoked("pairing")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeviceRegistrationsTotal.WithLabelValues("registered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceRegistrationsTotal.WithLabelValues("max_reached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceRevocationsTotal.WithLabelValues("pairing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceBindingsActive))
}

func TestRecordPairingCode(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPairingCode("created")
	m.RecordPairingCode("created")
	m.RecordPairingCode("reused")
	m.RecordPairingCode("approved")
	m.RecordPairingApproval(30 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PairingCodesTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairingCodesTotal.WithLabelValues("reused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairingsPending))
}

func TestGaugeSetters(t *testing.T) {
	m := newTestMetrics(t)

	m.SetActiveDeviceBindings(42)
	m.SetPendingPairings(3)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.DeviceBindingsActive))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PairingsPending))
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()

	assert.NotPanics(t, func() {
		m.RecordSignIn("local", true, time.Second)
		m.RecordSignOut(time.Hour)
		m.RecordSessionValidation("valid")
		m.RecordDeviceRegistration("registered")
		m.RecordDeviceRevoked("admin")
		m.RecordPairingCode("created")
		m.RecordPairingApproval(time.Minute)
		m.SetActiveDeviceBindings(1)
		m.SetPendingPairings(1)
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		m.RecordDatabaseQueryError("count_device_bindings")
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestMetrics(t)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(m))
	r.GET("/rest/v1/devices", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/rest/v1/devices", "/rest/v1/devices", "/metrics", "/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "/rest/v1/devices", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "unknown", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}

type fakeMetricsStore struct {
	bindings    int64
	pending     int64
	bindingsErr error
	pendingErr  error
}

func (f *fakeMetricsStore) CountActiveDeviceBindings() (int64, error) {
	return f.bindings, f.bindingsErr
}

func (f *fakeMetricsStore) CountPendingPairings() (int64, error) {
	return f.pending, f.pendingErr
}

func TestGaugeUpdater(t *testing.T) {
	m := newTestMetrics(t)
	store := &fakeMetricsStore{bindings: 7, pending: 2}

	NewGaugeUpdater(store, m).Update()

	assert.Equal(t, 7.0, testutil.ToFloat64(m.DeviceBindingsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PairingsPending))
}

func TestGaugeUpdater_QueryError(t *testing.T) {
	m := newTestMetrics(t)
	m.SetActiveDeviceBindings(5)
	store := &fakeMetricsStore{bindingsErr: errors.New("db down"), pending: 1}

	g := NewGaugeUpdater(store, m)
	g.Update()
	g.Update()

	// Last good value is kept
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DeviceBindingsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairingsPending))
	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.DatabaseQueryErrorsTotal.WithLabelValues("count_device_bindings")))
	assert.Len(t, g.lastErrorTimes, 1)
}
