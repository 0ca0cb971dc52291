package clientstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ core.Storage = (*GormStorage)(nil)

// stateEntry is one persisted client key.
type stateEntry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (stateEntry) TableName() string {
	return "client_state"
}

// GormStorage persists client keys in a single SQLite table so they survive
// process restarts the way browser local storage survives reloads.
type GormStorage struct {
	db *gorm.DB
}

// Open creates the state file and its parent directory when missing.
func Open(path string) (*GormStorage, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	return NewGormStorage(db)
}

// NewGormStorage migrates the state table on an existing connection.
func NewGormStorage(db *gorm.DB) (*GormStorage, error) {
	if err := db.AutoMigrate(&stateEntry{}); err != nil {
		return nil, fmt.Errorf("migrate client state: %w", err)
	}
	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Get(key string) (string, error) {
	var entry stateEntry
	if err := s.db.Where("key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", core.ErrStorageKeyNotFound
		}
		return "", err
	}
	return entry.Value, nil
}

// Set upserts key. Concurrent writers race and the last one wins.
func (s *GormStorage) Set(key, value string) error {
	entry := stateEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *GormStorage) Remove(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Where("key IN ?", keys).Delete(&stateEntry{}).Error
}

// Keys lists every persisted key, sorted.
func (s *GormStorage) Keys() ([]string, error) {
	var keys []string
	err := s.db.Model(&stateEntry{}).Order("key").Pluck("key", &keys).Error
	return keys, err
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
