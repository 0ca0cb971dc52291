package models

import (
	"context"
)

type contextKey int

const (
	userContextKey contextKey = iota
	sessionContextKey
)

// SetUserContext stores the authenticated member in ctx.
func SetUserContext(ctx context.Context, user *User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the member stored by SetUserContext, or nil.
func GetUserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

// GetUserIDFromContext returns the member id, or "" when unauthenticated.
func GetUserIDFromContext(ctx context.Context) string {
	if user := GetUserFromContext(ctx); user != nil {
		return user.ID
	}
	if session := GetSessionFromContext(ctx); session != nil {
		return session.UserID
	}
	return ""
}

// SetSessionContext stores the validated session in ctx.
func SetSessionContext(ctx context.Context, session *Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey, session)
}

// GetSessionFromContext returns the session stored by SetSessionContext, or nil.
func GetSessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}
