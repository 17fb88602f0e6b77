package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"paper_trade/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultRecentLimit caps Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50

// Journal is an append-only audit log of executed trades backed by SQLite.
// It is never read back into the ledger: account state stays in memory.
type Journal struct {
	db *gorm.DB
}

// NewJournal opens (or creates) the journal database at dbPath.
func NewJournal(dbPath string) (*Journal, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&domain.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends one executed trade.
func (j *Journal) Record(ctx context.Context, rec *domain.TradeRecord) error {
	return j.db.WithContext(ctx).Create(rec).Error
}

// Recent returns the latest trades, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var records []domain.TradeRecord
	err := j.db.WithContext(ctx).
		Order("executed_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Count returns how many trades were journaled.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.WithContext(ctx).Model(&domain.TradeRecord{}).Count(&n).Error
	return n, err
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
