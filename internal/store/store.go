package store

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string, cfg *config.Config) (*Store, error) {
	dial, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// One writer at a time; also keeps :memory: databases on one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Device{},
		&models.DevicePairing{},
	); err != nil {
		return nil, err
	}

	store := &Store{db: db}

	// Seed default data
	if err := store.seedData(cfg); err != nil {
		zap.L().Warn("failed to seed data", zap.Error(err))
	}

	return store, nil
}

// generateRandomPassword generates a random password of specified length
func generateRandomPassword(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	// Use base64 URL encoding to get a safe, printable password
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

func (s *Store) seedData(cfg *config.Config) error {
	var userCount int64
	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount > 0 {
		return nil
	}

	password := ""
	if cfg != nil {
		password = strings.TrimSpace(cfg.DefaultAdminPassword)
	}
	generated := password == ""
	if generated {
		var err error
		if password, err = generateRandomPassword(16); err != nil {
			return err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        "admin@localhost",
		PasswordHash: string(hash),
		Role:         "admin",
		FullName:     "Administrator",
		Tier:         "Legend",
		Status:       models.UserStatusActive,
	}
	if err := s.db.Create(user).Error; err != nil {
		return err
	}

	if generated {
		zap.L().Info("created default admin", zap.String("email", user.Email), zap.String("password", password))
	} else {
		zap.L().Info("created default admin", zap.String("email", user.Email))
	}
	return nil
}

// User operations

func (s *Store) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByEmail finds a user by email address
func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByExternalID finds a user by their external ID and auth source
func (s *Store) GetUserByExternalID(externalID, authSource string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("external_id = ? AND auth_source = ?", externalID, authSource).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// CreateUser creates a new user
func (s *Store) CreateUser(user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	var taken int64
	if err := s.db.Model(&models.User{}).Where("email = ?", user.Email).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return ErrEmailConflict
	}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailConflict
		}
		return err
	}
	return nil
}

// UpdateUser updates an existing user
func (s *Store) UpdateUser(user *models.User) error {
	return s.db.Save(user).Error
}

// UpdatePasswordHash replaces a member's password hash.
func (s *Store) UpdatePasswordHash(userID, hash string) error {
	result := s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// UpsertExternalUser creates or updates a user from external authentication
func (s *Store) UpsertExternalUser(
	externalID, authSource, email, fullName string,
) (*models.User, error) {
	email = strings.ToLower(email)
	var user models.User

	err := s.db.Where("external_id = ? AND auth_source = ?", externalID, authSource).
		First(&user).
		Error
	if err == nil {
		if user.Email != email {
			var conflicting models.User
			conflictErr := s.db.Where("email = ? AND id != ?", email, user.ID).
				First(&conflicting).
				Error
			if conflictErr == nil {
				return nil, ErrEmailConflict
			}
			if !errors.Is(conflictErr, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("failed to check email: %w", conflictErr)
			}
		}
		user.Email = email
		user.FullName = fullName
		if err := s.db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update external user: %w", err)
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query external user: %w", err)
	}

	user = models.User{
		ID:         uuid.New().String(),
		Email:      email,
		FullName:   fullName,
		Role:       "user",
		Tier:       "Rookie",
		Balance:    "0",
		Status:     models.UserStatusActive,
		ExternalID: externalID,
		AuthSource: authSource,
	}
	if err := s.CreateUser(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Session operations

func (s *Store) CreateSession(session *models.Session) error {
	return s.db.Create(session).Error
}

func (s *Store) GetSession(id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// RevokeSession marks a single session revoked.
func (s *Store) RevokeSession(id string) error {
	now := time.Now()
	return s.db.Model(&models.Session{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now}).Error
}

func (s *Store) DeleteExpiredSessions() error {
	return s.db.Where("expires_at < ?", time.Now()).Delete(&models.Session{}).Error
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}
