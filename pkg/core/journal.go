package core

import (
	"context"
	"time"
)

// Outcome classifies how a call ended.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeInvalidArgs    Outcome = "invalid_arguments"
	OutcomeExecutionError Outcome = "execution_error"
	OutcomeSerialization  Outcome = "serialization_error"
	OutcomeTimeout        Outcome = "timeout"
)

// CallRecord is one journaled invocation.
type CallRecord struct {
	ID             string    `gorm:"primaryKey;size:36"`
	RequestID      string    `gorm:"index;size:64"`
	Function       string    `gorm:"index;size:255;not null"`
	Convention     string    `gorm:"size:20"`
	Fallback       bool      `gorm:"default:false"` // Named params were rebound positionally
	Outcome        Outcome   `gorm:"index;size:32;not null"`
	Error          string    `gorm:"type:text"`
	DurationMicros int64     `gorm:"default:0"`
	CreatedAt      time.Time `gorm:"index;autoCreateTime"`
}

// FunctionStats aggregates journaled calls for a single function.
type FunctionStats struct {
	Function string
	Calls    int64
	Failures int64
}

// Journal defines the persistence layer for call records.
type Journal interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	Record(ctx context.Context, rec *CallRecord) error
	Recent(ctx context.Context, limit int) ([]*CallRecord, error)
	ByFunction(ctx context.Context, function string, limit int) ([]*CallRecord, error)
	Stats(ctx context.Context) ([]FunctionStats, error)

	// Prune deletes records created before the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// CallFilter selects journal records. Zero fields match everything.
type CallFilter struct {
	Function   string
	Outcome    Outcome
	RequestID  string
	FailedOnly bool
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}
