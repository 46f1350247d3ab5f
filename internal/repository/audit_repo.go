package repository

import (
	"context"

	"procurement/internal/model"

	"gorm.io/gorm"
)

type AuditFilter struct {
	LogName     string
	SubjectType string
	SubjectID   string
	Page        int
	Limit       int
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
	Count(ctx context.Context, subjectType, subjectID string) (int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	query := GetDB(ctx, r.db).Model(&model.AuditLog{})
	if filter.LogName != "" {
		query = query.Where("log_name = ?", filter.LogName)
	}
	if filter.SubjectType != "" {
		query = query.Where("subject_type = ?", filter.SubjectType)
	}
	if filter.SubjectID != "" {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Preload("User").Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (r *auditRepository) Count(ctx context.Context, subjectType, subjectID string) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.AuditLog{}).
		Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Count(&total).Error
	return total, err
}
