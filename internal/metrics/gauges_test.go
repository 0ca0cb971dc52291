package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/go-authgate/memberguard/internal/mocks"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestGaugeUpdater_RecordsEveryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMetricsStore(ctrl)
	recorder := mocks.NewMockRecorder(ctrl)

	dbDown := errors.New("db down")
	store.EXPECT().CountActiveDeviceBindings().Return(int64(0), dbDown).Times(3)
	store.EXPECT().CountPendingPairings().Return(int64(4), nil).Times(3)
	recorder.EXPECT().RecordDatabaseQueryError("count_device_bindings").Times(3)
	recorder.EXPECT().SetPendingPairings(4).Times(3)

	now := time.UnixMilli(1_760_000_000_000)
	g := NewGaugeUpdater(store, recorder)
	g.now = func() time.Time { return now }

	g.Update()
	first := g.lastErrorTimes["count_device_bindings"]

	// Inside the window the failure is counted but not logged again
	now = now.Add(time.Minute)
	g.Update()
	assert.Equal(t, first, g.lastErrorTimes["count_device_bindings"])

	now = now.Add(5 * time.Minute)
	g.Update()
	assert.Equal(t, now, g.lastErrorTimes["count_device_bindings"])
}
