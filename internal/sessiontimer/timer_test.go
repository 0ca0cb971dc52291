package sessiontimer

import (
	"strconv"
	"testing"
	"time"

	"github.com/go-authgate/memberguard/internal/clientstore"
	"github.com/go-authgate/memberguard/internal/core"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var epoch = time.UnixMilli(1_700_000_000_000)

type harness struct {
	clock   *clockwork.FakeClock
	storage *clientstore.MemoryStorage
	expired chan Reason
	ctrl    *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   clockwork.NewFakeClockAt(epoch),
		storage: clientstore.NewMemoryStorage(),
		expired: make(chan Reason, 4),
	}
	h.ctrl = New(h.storage, func(r Reason) { h.expired <- r },
		WithClock(h.clock),
		WithLogger(zaptest.NewLogger(t)),
	)
	t.Cleanup(h.ctrl.Stop)
	return h
}

func (h *harness) expectExpiry(t *testing.T, want Reason) {
	t.Helper()
	select {
	case got := <-h.expired:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected %s expiry", want)
	}
}

func (h *harness) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case got := <-h.expired:
		t.Fatalf("unexpected %s expiry", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) stored(t *testing.T, key string) time.Time {
	t.Helper()
	raw, err := h.storage.Get(key)
	require.NoError(t, err)
	ms, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	return time.UnixMilli(ms)
}

func TestBeginPersistsAndArms(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Begin()

	assert.True(t, h.ctrl.Running())
	assert.Equal(t, epoch, h.stored(t, core.KeySessionStart))
	assert.Equal(t, epoch, h.stored(t, core.KeyLastActivity))

	idle, absolute := h.ctrl.Deadlines()
	assert.Equal(t, epoch.Add(DefaultIdleTimeout), idle)
	assert.Equal(t, epoch.Add(DefaultAbsoluteTimeout), absolute)
}

func TestIdleExpiry(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Begin()

	h.clock.Advance(DefaultIdleTimeout - time.Second)
	h.expectQuiet(t)

	h.clock.Advance(time.Second)
	h.expectExpiry(t, ReasonIdle)
	assert.False(t, h.ctrl.Running())

	// Only one expiry per session
	h.clock.Advance(DefaultAbsoluteTimeout)
	h.expectQuiet(t)
}

func TestTouchResetsIdleOnly(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Begin()

	h.clock.Advance(10 * time.Minute)
	h.ctrl.Touch()

	idle, absolute := h.ctrl.Deadlines()
	assert.Equal(t, epoch.Add(25*time.Minute), idle)
	assert.Equal(t, epoch.Add(DefaultAbsoluteTimeout), absolute)
	assert.Equal(t, epoch.Add(10*time.Minute), h.stored(t, core.KeyLastActivity))
	assert.Equal(t, epoch, h.stored(t, core.KeySessionStart))

	h.clock.Advance(10 * time.Minute)
	h.expectQuiet(t)
}

func TestAbsoluteExpiryDespiteActivity(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Begin()

	for range 143 {
		h.clock.Advance(10 * time.Minute)
		h.ctrl.Touch()
	}
	h.expectQuiet(t)

	h.clock.Advance(10 * time.Minute)
	h.expectExpiry(t, ReasonAbsolute)
}

func TestResumeKeepsRemainingWindow(t *testing.T) {
	h := newHarness(t)
	start := epoch.Add(-20 * time.Hour)
	last := epoch.Add(-5 * time.Minute)
	require.NoError(t, h.storage.Set(core.KeySessionStart, strconv.FormatInt(start.UnixMilli(), 10)))
	require.NoError(t, h.storage.Set(core.KeyLastActivity, strconv.FormatInt(last.UnixMilli(), 10)))

	h.ctrl.Resume()

	idle, absolute := h.ctrl.Deadlines()
	assert.Equal(t, last.Add(DefaultIdleTimeout), idle)
	assert.Equal(t, start.Add(DefaultAbsoluteTimeout), absolute)

	h.clock.Advance(10 * time.Minute)
	h.expectExpiry(t, ReasonIdle)
}

func TestResumeWithoutTimestampsStartsNow(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Resume()

	assert.Equal(t, epoch, h.stored(t, core.KeySessionStart))
	assert.Equal(t, epoch, h.stored(t, core.KeyLastActivity))
	idle, _ := h.ctrl.Deadlines()
	assert.Equal(t, epoch.Add(DefaultIdleTimeout), idle)
}

func TestResumeIgnoresMalformedTimestamp(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.storage.Set(core.KeySessionStart, "yesterday"))

	h.ctrl.Resume()
	assert.Equal(t, epoch, h.stored(t, core.KeySessionStart))
}

func TestElapsedWindowIsClampedToOneSecond(t *testing.T) {
	h := newHarness(t)
	start := epoch.Add(-DefaultAbsoluteTimeout - time.Hour)
	require.NoError(t, h.storage.Set(core.KeySessionStart, strconv.FormatInt(start.UnixMilli(), 10)))

	h.ctrl.Resume()
	h.expectQuiet(t)

	h.clock.Advance(999 * time.Millisecond)
	h.expectQuiet(t)

	h.clock.Advance(time.Millisecond)
	h.expectExpiry(t, ReasonAbsolute)
}

func TestStaleTimerNeverFiresAgainstNewSession(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Begin()

	h.clock.Advance(5 * time.Minute)
	h.ctrl.Begin()

	h.clock.Advance(10 * time.Minute)
	h.expectQuiet(t)

	h.clock.Advance(5 * time.Minute)
	h.expectExpiry(t, ReasonIdle)
	h.expectQuiet(t)
}

func TestStopKeepsTimestampsClearRemovesThem(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Begin()

	h.ctrl.Stop()
	assert.False(t, h.ctrl.Running())
	_, err := h.storage.Get(core.KeySessionStart)
	require.NoError(t, err)

	h.clock.Advance(DefaultAbsoluteTimeout)
	h.expectQuiet(t)

	h.ctrl.Begin()
	h.ctrl.Clear()
	_, err = h.storage.Get(core.KeySessionStart)
	assert.ErrorIs(t, err, core.ErrStorageKeyNotFound)
	_, err = h.storage.Get(core.KeyLastActivity)
	assert.ErrorIs(t, err, core.ErrStorageKeyNotFound)

	// Touch after sign-out is ignored
	h.ctrl.Touch()
	_, err = h.storage.Get(core.KeyLastActivity)
	assert.ErrorIs(t, err, core.ErrStorageKeyNotFound)
}

func TestCustomTimeouts(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	expired := make(chan Reason, 1)
	ctrl := New(clientstore.NewMemoryStorage(), func(r Reason) { expired <- r },
		WithClock(clock),
		WithIdleTimeout(time.Minute),
		WithAbsoluteTimeout(time.Hour),
		WithIdleTimeout(0),
	)
	ctrl.Begin()
	defer ctrl.Stop()

	idle, absolute := ctrl.Deadlines()
	assert.Equal(t, epoch.Add(time.Minute), idle)
	assert.Equal(t, epoch.Add(time.Hour), absolute)

	clock.Advance(time.Minute)
	select {
	case r := <-expired:
		assert.Equal(t, ReasonIdle, r)
	case <-time.After(2 * time.Second):
		t.Fatal("expected idle expiry")
	}
}
