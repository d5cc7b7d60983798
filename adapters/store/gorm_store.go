package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/turrn3r/walletlink/core"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres connects to PostgreSQL using a libpq style DSN or URL
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

// EnableTracing installs the OpenTelemetry GORM plugin
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin())
}

// AutoMigrate creates the nonces and links tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&nonceRow{}, &linkRow{})
}

// GormStore implements the NonceStore and LinkStore ports on top of GORM
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM backed store. The schema must already exist.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Put upserts the challenge row for the user_key, resetting the consumed flag
func (s *GormStore) Put(ctx context.Context, challenge *core.NonceChallenge) error {
	row := nonceRow{
		UserKey:   challenge.UserKey,
		Nonce:     challenge.Nonce,
		IssuedAt:  challenge.IssuedAt.UnixMilli(),
		ExpiresAt: challenge.ExpiresAt.UnixMilli(),
		Consumed:  challenge.Consumed,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"nonce", "issued_at", "expires_at", "consumed"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store challenge: %v: %w", err, core.ErrStorageFailure)
	}

	return nil
}

// Get loads the challenge row for the user_key
func (s *GormStore) Get(ctx context.Context, userKey string) (*core.NonceChallenge, error) {
	var row nonceRow
	err := s.db.WithContext(ctx).Where("user_key = ?", userKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge: %v: %w", err, core.ErrStorageFailure)
	}

	return row.toChallenge(), nil
}

// Consume is a single conditional UPDATE; the row count tells whether this call won
func (s *GormStore) Consume(ctx context.Context, userKey, nonce string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&nonceRow{}).
		Where("user_key = ? AND nonce = ? AND consumed = ? AND expires_at >= ?", userKey, nonce, false, now.UnixMilli()).
		Update("consumed", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume challenge: %v: %w", res.Error, core.ErrStorageFailure)
	}

	return res.RowsAffected == 1, nil
}

// Release clears the consumed flag if the row still carries nonce
func (s *GormStore) Release(ctx context.Context, userKey, nonce string) error {
	err := s.db.WithContext(ctx).
		Model(&nonceRow{}).
		Where("user_key = ? AND nonce = ? AND consumed = ?", userKey, nonce, true).
		Update("consumed", false).Error
	if err != nil {
		return fmt.Errorf("failed to release challenge: %v: %w", err, core.ErrStorageFailure)
	}

	return nil
}

// PurgeExpired deletes challenge rows that expired before the given time
func (s *GormStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", before.UnixMilli()).
		Delete(&nonceRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge challenges: %v: %w", res.Error, core.ErrStorageFailure)
	}

	return res.RowsAffected, nil
}

// Upsert writes the link row, last writer wins
func (s *GormStore) Upsert(ctx context.Context, link *core.WalletLink) error {
	row := linkRow{
		UserKey:  link.UserKey,
		Address:  link.Address,
		LinkedAt: link.LinkedAt.UnixMilli(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"address", "linked_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store link: %v: %w", err, core.ErrStorageFailure)
	}

	return nil
}

// Lookup loads the link row for the user_key
func (s *GormStore) Lookup(ctx context.Context, userKey string) (*core.WalletLink, error) {
	var row linkRow
	err := s.db.WithContext(ctx).Where("user_key = ?", userKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read link: %v: %w", err, core.ErrStorageFailure)
	}

	return row.toLink(), nil
}
