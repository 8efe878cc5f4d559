package storage

import (
	"context"

	"github.com/jdziat/funcgate/pkg/core"
)

// Search returns records matching the filter with pagination and total count.
func (s *GormStorage) Search(ctx context.Context, filter core.CallFilter) ([]*core.CallRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&core.CallRecord{})

	if filter.Function != "" {
		q = q.Where("function = ?", filter.Function)
	}
	if filter.Outcome != "" {
		q = q.Where("outcome = ?", filter.Outcome)
	}
	if filter.RequestID != "" {
		q = q.Where("request_id = ?", filter.RequestID)
	}
	if filter.FailedOnly {
		q = q.Where("outcome <> ?", core.OutcomeOK)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*core.CallRecord
	err := q.Order("created_at DESC, id DESC").
		Limit(clampLimit(filter.Limit)).
		Offset(max(filter.Offset, 0)).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
