package metrics

import (
	"sync"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"go.uber.org/zap"
)

// GaugeUpdater refreshes the binding and pairing gauges from the database.
type GaugeUpdater struct {
	store    core.MetricsStore
	recorder Recorder

	mu              sync.Mutex
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
	now             func() time.Time
}

// NewGaugeUpdater creates a gauge updater that logs each failing query at
// most once per five minutes.
func NewGaugeUpdater(store core.MetricsStore, recorder Recorder) *GaugeUpdater {
	return &GaugeUpdater{
		store:           store,
		recorder:        recorder,
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute,
		now:             time.Now,
	}
}

// Update runs one refresh.
func (g *GaugeUpdater) Update() {
	bindings, err := g.store.CountActiveDeviceBindings()
	if err != nil {
		g.recorder.RecordDatabaseQueryError("count_device_bindings")
		g.logIfNeeded("count_device_bindings", err)
	} else {
		g.recorder.SetActiveDeviceBindings(int(bindings))
	}

	pending, err := g.store.CountPendingPairings()
	if err != nil {
		g.recorder.RecordDatabaseQueryError("count_pending_pairings")
		g.logIfNeeded("count_pending_pairings", err)
	} else {
		g.recorder.SetPendingPairings(int(pending))
	}
}

func (g *GaugeUpdater) logIfNeeded(operation string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	lastTime, exists := g.lastErrorTimes[operation]
	if exists && now.Sub(lastTime) < g.rateLimitWindow {
		return
	}
	g.lastErrorTimes[operation] = now
	zap.L().Warn("gauge query failed, further errors suppressed",
		zap.String("operation", operation),
		zap.Duration("suppress_for", g.rateLimitWindow),
		zap.Error(err),
	)
}
