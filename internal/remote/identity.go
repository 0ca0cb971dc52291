package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/deviceid"

	"go.uber.org/zap"
)

type tokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int           `json:"expires_in"`
	ExpiresAt   time.Time     `json:"expires_at"`
	SessionID   string        `json:"session_id"`
	User        *core.Profile `json:"user"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetSession returns the stored session after confirming it with the server.
// A session the server no longer honours is forgotten and reported as none.
func (c *Client) GetSession(ctx context.Context) (*core.AuthSession, error) {
	session := c.storedSession()
	if session == nil {
		return nil, nil
	}
	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(c.clock.Now()) {
		c.forgetSession()
		return nil, nil
	}

	var resp sessionResponse
	if err := c.call(ctx, http.MethodGet, "/auth/v1/session", nil, nil, &resp); err != nil {
		if isStatus(err, http.StatusUnauthorized) {
			c.logger.Info("stored session was revoked or expired server-side")
			c.forgetSession()
			return nil, nil
		}
		return nil, err
	}
	session.UserID = resp.UserID
	session.ExpiresAt = resp.ExpiresAt
	return session, nil
}

// SignInWithPassword exchanges credentials for a session, presenting this
// installation's device id.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*core.AuthSession, error) {
	deviceID, _ := deviceid.GetOrCreate(c.storage)

	var resp tokenResponse
	err := c.call(ctx, http.MethodPost, "/auth/v1/token", nil, map[string]string{
		"email":     email,
		"password":  password,
		"device_id": deviceID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	session := &core.AuthSession{AccessToken: resp.AccessToken, ExpiresAt: resp.ExpiresAt}
	if resp.User != nil {
		session.UserID = resp.User.ID
	}
	if err := c.storeSession(session); err != nil {
		return nil, err
	}
	c.emit(core.EventSignedIn, session)
	return session, nil
}

// SignOut revokes the server session and forgets the local one. The local
// token is dropped even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	if c.storedSession() == nil {
		return nil
	}
	err := c.call(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil)
	if isStatus(err, http.StatusUnauthorized) {
		err = nil
	}
	c.forgetSession()
	c.emit(core.EventSignedOut, nil)
	return err
}

// Refresh re-confirms the session with the server and notifies listeners:
// TOKEN_REFRESHED while it holds, SIGNED_OUT once the server has dropped it.
func (c *Client) Refresh(ctx context.Context) error {
	if c.storedSession() == nil {
		return core.ErrNoSession
	}
	session, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		c.emit(core.EventSignedOut, nil)
		return core.ErrNoSession
	}
	if err := c.storeSession(session); err != nil {
		return err
	}
	c.emit(core.EventTokenRefreshed, session)
	return nil
}

func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	if err := c.call(ctx, http.MethodPut, "/auth/v1/user", nil, map[string]string{"password": password}, nil); err != nil {
		return err
	}
	if session := c.storedSession(); session != nil {
		c.emit(core.EventUserUpdated, session)
	}
	return nil
}

func (c *Client) OnAuthStateChange(fn core.AuthStateListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(event core.AuthEvent, session *core.AuthSession) {
	c.mu.Lock()
	listeners := make([]core.AuthStateListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		var cp *core.AuthSession
		if session != nil {
			s := *session
			cp = &s
		}
		fn(event, cp)
	}
}

func (c *Client) accessToken() string {
	if session := c.storedSession(); session != nil {
		return session.AccessToken
	}
	return ""
}

func (c *Client) storedSession() *core.AuthSession {
	raw, err := c.storage.Get(core.KeyAuthToken)
	if err != nil {
		if !errors.Is(err, core.ErrStorageKeyNotFound) {
			c.logger.Warn("failed to read stored session", zap.Error(err))
		}
		return nil
	}
	var session core.AuthSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil || session.AccessToken == "" {
		return nil
	}
	return &session
}

func (c *Client) storeSession(session *core.AuthSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.storage.Set(core.KeyAuthToken, string(raw))
}

func (c *Client) forgetSession() {
	if err := c.storage.Remove(core.KeyAuthToken); err != nil {
		c.logger.Warn("failed to forget stored session", zap.Error(err))
	}
}
