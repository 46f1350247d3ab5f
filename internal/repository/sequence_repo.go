package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SequenceRepository hands out per-prefix counters for document numbers.
type SequenceRepository interface {
	// Next atomically increments and returns the counter for prefix. Run it inside the
	// transaction that inserts the numbered row so both commit or roll back together.
	Next(ctx context.Context, prefix string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, prefix string) (int64, error) {
	var value int64
	err := GetDB(ctx, r.db).Raw(`
		INSERT INTO sequence_counters (prefix, last_value, updated_at)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (prefix) DO UPDATE
		SET last_value = sequence_counters.last_value + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING last_value
	`, prefix).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", prefix, err)
	}
	return value, nil
}
