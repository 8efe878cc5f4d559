package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PoolConfig sizes the journal's connection pool. SQLite journals always use
// a single connection; the pool matters for PostgreSQL.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the pool used when no settings are given.
// Journal writes come from one recorder, so it stays small.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
}

// PoolOption adjusts a PoolConfig.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// WithPool applies every non-zero field of p, as read from configuration.
func WithPool(p PoolConfig) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if p.MaxOpenConns > 0 {
			c.MaxOpenConns = p.MaxOpenConns
		}
		if p.MaxIdleConns > 0 {
			c.MaxIdleConns = p.MaxIdleConns
		}
		if p.ConnMaxLifetime > 0 {
			c.ConnMaxLifetime = p.ConnMaxLifetime
		}
		if p.ConnMaxIdleTime > 0 {
			c.ConnMaxIdleTime = p.ConnMaxIdleTime
		}
	})
}

// MaxOpenConns caps open connections. Zero means unlimited.
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = n
	})
}

// MaxIdleConns caps idle connections.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxIdleConns = n
	})
}

// ConnMaxLifetime bounds how long a connection is reused. Zero keeps
// connections forever.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxLifetime = d
	})
}

// ConnMaxIdleTime bounds how long a connection may sit idle.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxIdleTime = d
	})
}

// ConfigurePool applies the options on top of DefaultPoolConfig. Idle
// connections are capped at the open limit.
func ConfigurePool(db *gorm.DB, opts ...PoolOption) error {
	cfg := DefaultPoolConfig()
	for _, opt := range opts {
		opt.applyPool(&cfg)
	}
	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("journal connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return nil
}
