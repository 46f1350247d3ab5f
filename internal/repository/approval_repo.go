package repository

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalEntry is one approval-history row joined with the acting user's name.
type ApprovalEntry struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Username   string
	Status     string
	Remarks    string
	ApprovedAt time.Time
}

// ApprovalRepository is insert-only: history rows are never updated or deleted.
type ApprovalRepository interface {
	Append(ctx context.Context, subject model.ApprovalSubject, entityID uuid.UUID, log model.ApprovalLog) error
	History(ctx context.Context, subject model.ApprovalSubject, entityID uuid.UUID) ([]ApprovalEntry, error)
	Count(ctx context.Context, subject model.ApprovalSubject, entityID uuid.UUID) (int64, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Append(ctx context.Context, subject model.ApprovalSubject, entityID uuid.UUID, log model.ApprovalLog) error {
	if log.ApprovedAt.IsZero() {
		log.ApprovedAt = time.Now()
	}
	row, ok := model.NewApprovalRow(subject, entityID, log)
	if !ok {
		return fmt.Errorf("unknown approval subject %q", subject)
	}
	return GetDB(ctx, r.db).Create(row).Error
}

func (r *approvalRepository) History(ctx context.Context, subject model.ApprovalSubject, entityID uuid.UUID) ([]ApprovalEntry, error) {
	table, column, ok := model.ApprovalTable(subject)
	if !ok {
		return nil, fmt.Errorf("unknown approval subject %q", subject)
	}

	var entries []ApprovalEntry
	err := GetDB(ctx, r.db).
		Table(table+" AS a").
		Select("a.id, a.user_id, COALESCE(u.username, '') AS username, a.status, a.remarks, a.approved_at").
		Joins("LEFT JOIN users u ON u.id = a.user_id").
		Where("a."+column+" = ?", entityID).
		Order("a.approved_at asc, a.id asc").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *approvalRepository) Count(ctx context.Context, subject model.ApprovalSubject, entityID uuid.UUID) (int64, error) {
	table, column, ok := model.ApprovalTable(subject)
	if !ok {
		return 0, fmt.Errorf("unknown approval subject %q", subject)
	}
	var total int64
	err := GetDB(ctx, r.db).Table(table).Where(column+" = ?", entityID).Count(&total).Error
	return total, err
}
