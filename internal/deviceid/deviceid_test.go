package deviceid

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/go-authgate/memberguard/internal/clientstore"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	storage := clientstore.NewMemoryStorage()

	first, ok := GetOrCreate(storage)
	require.True(t, ok)
	_, err := uuid.Parse(first)
	require.NoError(t, err)

	second, ok := GetOrCreate(storage)
	require.True(t, ok)
	assert.Equal(t, first, second)

	stored, err := storage.Get(core.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, first, stored)
}

func TestGetOrCreateKeepsExistingID(t *testing.T) {
	storage := clientstore.NewMemoryStorage()
	require.NoError(t, storage.Set(core.KeyDeviceID, "dev-existing"))

	id, ok := GetOrCreate(storage)
	require.True(t, ok)
	assert.Equal(t, "dev-existing", id)
}

func TestGetOrCreateWithoutStorage(t *testing.T) {
	id, ok := GetOrCreate(nil)
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestGetOrCreateStorageFailures(t *testing.T) {
	ctrl := gomock.NewController(t)

	unreadable := mocks.NewMockStorage(ctrl)
	unreadable.EXPECT().Get(core.KeyDeviceID).Return("", errors.New("disk gone"))
	id, ok := GetOrCreate(unreadable)
	assert.False(t, ok)
	assert.Empty(t, id)

	unwritable := mocks.NewMockStorage(ctrl)
	unwritable.EXPECT().Get(core.KeyDeviceID).Return("", core.ErrStorageKeyNotFound)
	unwritable.EXPECT().Set(core.KeyDeviceID, gomock.Any()).Return(errors.New("read-only"))
	id, ok = GetOrCreate(unwritable)
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestGetOrCreateFallbackID(t *testing.T) {
	origUUID, origNow := newUUID, now
	t.Cleanup(func() { newUUID, now = origUUID, origNow })

	newUUID = func() (uuid.UUID, error) { return uuid.Nil, errors.New("no entropy") }
	now = func() time.Time { return time.UnixMilli(1700000000000) }

	id, ok := GetOrCreate(clientstore.NewMemoryStorage())
	require.True(t, ok)
	assert.Regexp(t, regexp.MustCompile(`^dev-loyw3v28-[0-9a-z]{8}$`), id)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		agent string
		want  string
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", LabelMobile},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8)", LabelMobile},
		{"mozilla/5.0 (linux; android 14)", LabelMobile},
		{"Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0", LabelDesktop},
		{"", LabelDesktop},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.agent), tt.agent)
	}
}
