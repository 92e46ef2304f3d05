package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when no snapshot exists for a URL.
var ErrNotFound = gorm.ErrRecordNotFound

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&PageSnapshot{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetSnapshot loads the snapshot stored for url. It returns ErrNotFound when
// the URL was never cached.
func (d *Database) GetSnapshot(url string) (*PageSnapshot, error) {
	key := normalizeURLKey(url)
	if key == "" {
		return nil, errors.New("snapshot url is empty")
	}
	var snap PageSnapshot
	if err := d.gorm.Where("url = ?", key).Take(&snap).Error; err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveSnapshot inserts or refreshes the snapshot for its URL.
func (d *Database) SaveSnapshot(snap *PageSnapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}
	snap.URL = normalizeURLKey(snap.URL)
	if snap.URL == "" {
		return errors.New("snapshot url is empty")
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_hash", "text", "bytes", "fetched_at", "updated_at"}),
	}).Create(snap).Error
}

// PurgeSnapshotsBefore deletes snapshots fetched before cutoff and returns
// how many rows were removed.
func (d *Database) PurgeSnapshotsBefore(cutoff time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Where("fetched_at < ?", cutoff).Delete(&PageSnapshot{})
	return res.RowsAffected, res.Error
}

// CountSnapshots returns the number of cached pages.
func (d *Database) CountSnapshots() (int64, error) {
	var count int64
	if err := d.gorm.Model(&PageSnapshot{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func normalizeURLKey(value string) string {
	return strings.TrimSpace(value)
}
