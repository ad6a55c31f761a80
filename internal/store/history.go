package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"safetour/internal/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// HistoryStore keeps the append-only record of trigger attempts.
type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(ctx context.Context, record domain.TriggerRecord) error {
	m := newTriggerRecordModel(record)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("append trigger record %s: %w", record.AlertID, err)
	}
	return nil
}

// Recent returns the newest records first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]domain.TriggerRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var models []triggerRecordModel
	err := s.db.WithContext(ctx).
		Order("triggered_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list trigger history: %w", err)
	}
	records := make([]domain.TriggerRecord, 0, len(models))
	for _, m := range models {
		records = append(records, m.toDomain())
	}
	return records, nil
}

// PruneBefore deletes records triggered before cutoff and reports how many
// were removed.
func (s *HistoryStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("triggered_at < ?", cutoff).Delete(&triggerRecordModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune trigger history: %w", result.Error)
	}
	return result.RowsAffected, nil
}
