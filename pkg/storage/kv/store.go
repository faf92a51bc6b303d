package kv

import (
	"context"
	"errors"
	"fmt"

	"cryptofolio/config"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Store is a durable string key / string value store backed by a single
// gorm table. It is the local-storage analog for cache entries, the
// portfolio collection and user settings.
type Store struct {
	DB *gorm.DB
}

// Open connects to the configured backend and runs migrations.
// The sqlite driver is the default; postgres is selected via storage.driver.
func Open(cfg config.StorageConfig, env string) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		if err := CreateDatabase(cfg, env); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		dialector = postgres.Open(cfg.DSN(env))
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}

	store := &Store{DB: db}
	if err := store.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) AutoMigrate() error {
	if err := s.DB.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("auto-migrate kv table: %w", err)
	}
	return nil
}

// Get returns the value for key. The second return is false when the key
// is absent; an error indicates a storage failure, not a missing key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var rec Record
	err := s.DB.WithContext(ctx).
		Where("key = ?", key).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Value, true, nil
}

// Set writes the value for key, replacing any previous value. The write is
// a single upsert statement, so readers never observe a partial entry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Record{Key: key, Value: value}).Error
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).
		Where("key = ?", key).
		Delete(&Record{}).Error
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	db, err := s.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (s *Store) Close() error {
	db, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
