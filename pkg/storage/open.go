package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrEmptyDSN is returned by Open when no DSN is configured.
var ErrEmptyDSN = errors.New("funcgate: journal DSN is empty")

// Open connects to the journal database and migrates it.
//
// DSNs starting with postgres:// or postgresql:// use PostgreSQL. Anything
// else is a SQLite path, optionally prefixed with sqlite://. SQLite journals
// use a single connection so that ":memory:" databases are shared.
func Open(ctx context.Context, dsn string, opts ...PoolOption) (*GormStorage, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	dialector, isSQLite := dialectorFor(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if isSQLite {
		opts = append(opts, MaxOpenConns(1), MaxIdleConns(1), ConnMaxLifetime(0), ConnMaxIdleTime(0))
	}
	if err := ConfigurePool(db, opts...); err != nil {
		return nil, err
	}

	s := NewGormStorage(db)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(dsn string) (gorm.Dialector, bool) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn), false
	}
	return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), true
}
