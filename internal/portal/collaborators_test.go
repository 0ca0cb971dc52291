package portal

import (
	"context"
	"testing"

	"github.com/go-authgate/memberguard/internal/clientstore"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/mocks"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
)

type mockedDeps struct {
	identity *mocks.MockIdentityProvider
	profiles *mocks.MockProfileSource
	conn     *mocks.MockConnectivity
	storage  *clientstore.MemoryStorage
}

func newMockedCoordinator(t *testing.T) (*Coordinator, mockedDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := mockedDeps{
		identity: mocks.NewMockIdentityProvider(ctrl),
		profiles: mocks.NewMockProfileSource(ctrl),
		conn:     mocks.NewMockConnectivity(ctrl),
		storage:  clientstore.NewMemoryStorage(),
	}
	c := New(Deps{
		Identity:     d.identity,
		Devices:      newFakeRegistry(),
		Profiles:     d.profiles,
		Storage:      d.storage,
		Navigator:    &fakeNavigator{current: core.RouteDashboard},
		Connectivity: d.conn,
		UserAgent:    desktopAgent,
	}, WithClock(clockwork.NewFakeClockAt(epoch)), WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(c.Close)
	return c, d
}

func TestOfflineStartNeverAsksProvider(t *testing.T) {
	c, d := newMockedCoordinator(t)
	d.conn.EXPECT().Online().Return(false).MinTimes(1)
	d.identity.EXPECT().OnAuthStateChange(gomock.Any()).Return(func() {})

	c.Start(context.Background())
	c.wg.Wait()

	state := c.State()
	assert.False(t, state.Loading)
	assert.False(t, state.HasSession)
	assert.Equal(t, MsgOffline, state.Notice)
}

func TestEmptyProfileCountsAsFailure(t *testing.T) {
	c, d := newMockedCoordinator(t)
	d.conn.EXPECT().Online().Return(true).AnyTimes()
	d.identity.EXPECT().
		GetSession(gomock.Any()).
		Return(&core.AuthSession{UserID: "u1", AccessToken: "tok-u1"}, nil)
	d.identity.EXPECT().OnAuthStateChange(gomock.Any()).Return(func() {})
	d.profiles.EXPECT().FetchProfile(gomock.Any(), "u1").Return(nil, nil)

	c.Start(context.Background())
	c.wg.Wait()

	state := c.State()
	assert.True(t, state.HasSession)
	assert.Nil(t, state.User)
	assert.Equal(t, MsgProfileFailed, state.AuthIssue)
	_, err := d.storage.Get(core.KeyCachedUser)
	assert.ErrorIs(t, err, core.ErrStorageKeyNotFound)
}

func TestRejectedSignInOpensNoWindows(t *testing.T) {
	c, d := newMockedCoordinator(t)
	d.identity.EXPECT().
		SignInWithPassword(gomock.Any(), "member@example.com", "wrong").
		Return(nil, core.ErrInvalidCredentials)

	err := c.SignIn(context.Background(), "member@example.com", "wrong")
	require.ErrorIs(t, err, core.ErrInvalidCredentials)

	idle, absolute := c.Windows()
	assert.True(t, idle.IsZero())
	assert.True(t, absolute.IsZero())
	_, err = d.storage.Get(core.KeySessionStart)
	assert.ErrorIs(t, err, core.ErrStorageKeyNotFound)
}
