package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/security"
)

// DefaultListLimit bounds list queries that pass a non-positive limit.
const DefaultListLimit = 100

// maxListLimit caps any single list query.
const maxListLimit = 10000

// GormStorage implements core.Journal using GORM.
type GormStorage struct {
	db *gorm.DB
}

var _ core.Journal = (*GormStorage)(nil)

// NewGormStorage creates a new GORM-backed journal.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB returns the underlying database handle.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the journal is backed by SQLite.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector != nil && s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.CallRecord{})
}

// Record stores a single call. Error messages are sanitized before storage.
func (s *GormStorage) Record(ctx context.Context, rec *core.CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Outcome == "" {
		rec.Outcome = core.OutcomeOK
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.Error = security.SanitizeErrorMessage(rec.Error)
	return s.db.WithContext(ctx).Create(rec).Error
}

// Recent returns the newest records first.
func (s *GormStorage) Recent(ctx context.Context, limit int) ([]*core.CallRecord, error) {
	var records []*core.CallRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&records).Error
	return records, err
}

// ByFunction returns the newest records for one function first.
func (s *GormStorage) ByFunction(ctx context.Context, function string, limit int) ([]*core.CallRecord, error) {
	var records []*core.CallRecord
	err := s.db.WithContext(ctx).
		Where("function = ?", function).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&records).Error
	return records, err
}

// Stats returns call and failure counts per function, ordered by name.
func (s *GormStorage) Stats(ctx context.Context) ([]core.FunctionStats, error) {
	var stats []core.FunctionStats
	err := s.db.WithContext(ctx).
		Model(&core.CallRecord{}).
		Select("function, count(*) AS calls, sum(CASE WHEN outcome <> ? THEN 1 ELSE 0 END) AS failures", core.OutcomeOK).
		Group("function").
		Order("function ASC").
		Scan(&stats).Error
	return stats, err
}

// Prune deletes records created before the cutoff.
func (s *GormStorage) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&core.CallRecord{})
	return result.RowsAffected, result.Error
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
