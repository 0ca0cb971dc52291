package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/store"

	"go.uber.org/zap"
)

var ErrUserNotFound = errors.New("user not found")

// UserService serves member profiles through a cache-aside lookup.
type UserService struct {
	store    *store.Store
	cache    core.Cache[models.User]
	cacheTTL time.Duration
}

func NewUserService(
	s *store.Store,
	userCache core.Cache[models.User],
	cacheTTL time.Duration,
) *UserService {
	return &UserService{
		store:    s,
		cache:    userCache,
		cacheTTL: cacheTTL,
	}
}

func userCacheKey(id string) string {
	return "user:" + id
}

// GetUserByID returns the member row, reading through the user cache.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.cache.GetWithFetch(
		ctx,
		userCacheKey(id),
		s.cacheTTL,
		func(ctx context.Context, _ string) (models.User, error) {
			u, err := s.store.GetUserByID(id)
			if err != nil {
				if errors.Is(err, store.ErrRecordNotFound) {
					return models.User{}, ErrUserNotFound
				}
				return models.User{}, err
			}
			return *u, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfile returns the profile shape member clients paint.
func (s *UserService) GetProfile(ctx context.Context, id string) (*core.Profile, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToCore(), nil
}

// InvalidateUserCache drops the cached row so the next read hits the store.
func (s *UserService) InvalidateUserCache(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, userCacheKey(id)); err != nil {
		zap.L().Warn("failed to invalidate user cache",
			zap.String("user_id", id),
			zap.Error(err),
		)
	}
}
