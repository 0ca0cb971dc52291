package portal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-authgate/memberguard/internal/core"
)

type fakeIdentity struct {
	mu         sync.Mutex
	session    *core.AuthSession
	getErr     error
	block      bool
	getCalls   int
	signOuts   int
	signOutErr error
	onSignOut  func()
	listeners  map[int]core.AuthStateListener
	nextID     int
	passwords  []string
}

func newFakeIdentity(userID string) *fakeIdentity {
	f := &fakeIdentity{listeners: make(map[int]core.AuthStateListener)}
	if userID != "" {
		f.session = &core.AuthSession{UserID: userID, AccessToken: "tok-" + userID}
	}
	return f
}

func (f *fakeIdentity) GetSession(ctx context.Context) (*core.AuthSession, error) {
	f.mu.Lock()
	f.getCalls++
	block, session, err := f.block, f.session, f.getErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return session, err
}

func (f *fakeIdentity) SignInWithPassword(_ context.Context, email, password string) (*core.AuthSession, error) {
	if password != "correct-horse" {
		return nil, core.ErrInvalidCredentials
	}
	session := &core.AuthSession{UserID: "u1", AccessToken: "tok-" + email}
	f.mu.Lock()
	f.session = session
	f.mu.Unlock()
	f.emit(core.EventSignedIn, session)
	return session, nil
}

func (f *fakeIdentity) SignOut(context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.session = nil
	hook, err := f.onSignOut, f.signOutErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	f.emit(core.EventSignedOut, nil)
	return err
}

func (f *fakeIdentity) OnAuthStateChange(fn core.AuthStateListener) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeIdentity) UpdatePassword(_ context.Context, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords = append(f.passwords, password)
	return nil
}

func (f *fakeIdentity) emit(event core.AuthEvent, session *core.AuthSession) {
	f.mu.Lock()
	listeners := make([]core.AuthStateListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()
	for _, l := range listeners {
		l(event, session)
	}
}

func (f *fakeIdentity) calls() (get, signOuts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.signOuts
}

type fakeRegistry struct {
	mu          sync.Mutex
	bindings    map[string]*core.DeviceBinding
	checkErr    error
	registerErr error
	onRegister  func(r *fakeRegistry)
	checks      int
	registers   int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{bindings: make(map[string]*core.DeviceBinding)}
}

func (r *fakeRegistry) CheckBinding(_ context.Context, userID, deviceID string) (*core.DeviceBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks++
	if r.checkErr != nil {
		return nil, r.checkErr
	}
	b, ok := r.bindings[deviceID]
	if !ok || b.UserID != userID {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *fakeRegistry) RegisterDevice(_ context.Context, deviceID, label, userAgent string) error {
	r.mu.Lock()
	r.registers++
	hook, err := r.onRegister, r.registerErr
	r.mu.Unlock()

	if hook != nil {
		hook(r)
	}
	if err != nil {
		return err
	}
	r.bind("u1", deviceID, label, userAgent, false)
	return nil
}

func (r *fakeRegistry) bind(userID, deviceID, label, userAgent string, revoked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[deviceID] = &core.DeviceBinding{
		DeviceID:  deviceID,
		UserID:    userID,
		Label:     label,
		UserAgent: userAgent,
		Revoked:   revoked,
	}
}

func (r *fakeRegistry) revoke(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[deviceID].Revoked = true
}

func (r *fakeRegistry) counts() (checks, registers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checks, r.registers
}

func (r *fakeRegistry) binding(deviceID string) *core.DeviceBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindings[deviceID]
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*core.Profile
	err      error
	gate     chan struct{}
	block    bool
	calls    int
}

func (p *fakeProfiles) FetchProfile(ctx context.Context, userID string) (*core.Profile, error) {
	p.mu.Lock()
	p.calls++
	gate, block, err := p.gate, p.block, p.err
	profile := p.profiles[userID]
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (p *fakeProfiles) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeNavigator struct {
	mu       sync.Mutex
	current  string
	replaced []string
}

func (n *fakeNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *fakeNavigator) Replace(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = route
	n.replaced = append(n.replaced, route)
}

func (n *fakeNavigator) history() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replaced...)
}

type fakeConnectivity struct{ offline atomic.Bool }

func (c *fakeConnectivity) Online() bool { return !c.offline.Load() }
