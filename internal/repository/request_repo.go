package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ReplaceDetails(ctx context.Context, req *model.Request, details []model.RequestDetail) error
	UpdatePurpose(ctx context.Context, id uuid.UUID, purpose string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, departmentID *uuid.UUID) ([]model.Request, int64, error)

	FindDetails(ctx context.Context, ids []uuid.UUID) ([]model.RequestDetail, error)
	LockDetails(ctx context.Context, ids []uuid.UUID) ([]model.RequestDetail, error)
	TagDetails(ctx context.Context, ids []uuid.UUID, tagging string) error
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Department").
		Preload("User").
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := forUpdate(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("request_id = ?", id).Order("created_at asc, id asc").Find(&req.Details).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Request{}).Where("id = ?", id).Update("status", status).Error
}

func (r *requestRepository) ReplaceDetails(ctx context.Context, req *model.Request, details []model.RequestDetail) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("request_id = ?", req.ID).Delete(&model.RequestDetail{}).Error; err != nil {
		return err
	}
	for i := range details {
		details[i].RequestID = req.ID
	}
	if len(details) > 0 {
		if err := db.Create(&details).Error; err != nil {
			return err
		}
	}
	req.Details = details
	return nil
}

func (r *requestRepository) UpdatePurpose(ctx context.Context, id uuid.UUID, purpose string) error {
	return GetDB(ctx, r.db).Model(&model.Request{}).Where("id = ?", id).Update("purpose", purpose).Error
}

func (r *requestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("request_id = ?", id).Delete(&model.RequestDetail{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Request{}).Error
}

func (r *requestRepository) List(ctx context.Context, filter ListFilter, departmentID *uuid.UUID) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Request{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("LOWER(request_no) LIKE LOWER(?) OR LOWER(purpose) LIKE LOWER(?)", like, like)
	}
	if departmentID != nil {
		query = query.Where("department_id = ?", *departmentID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Details").
		Preload("Department").
		Preload("User").
		Order("created_at DESC").
		Offset(filter.offset()).Limit(filter.limit()).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) FindDetails(ctx context.Context, ids []uuid.UUID) ([]model.RequestDetail, error) {
	var details []model.RequestDetail
	if len(ids) == 0 {
		return details, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&details).Error; err != nil {
		return nil, err
	}
	return details, nil
}

// LockDetails reads the lines FOR UPDATE in id order so concurrent orders queue on the same rows.
func (r *requestRepository) LockDetails(ctx context.Context, ids []uuid.UUID) ([]model.RequestDetail, error) {
	var details []model.RequestDetail
	if len(ids) == 0 {
		return details, nil
	}
	if err := forUpdate(ctx, r.db).Where("id IN ?", ids).Order("id asc").Find(&details).Error; err != nil {
		return nil, err
	}
	return details, nil
}

func (r *requestRepository) TagDetails(ctx context.Context, ids []uuid.UUID, tagging string) error {
	if len(ids) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Model(&model.RequestDetail{}).Where("id IN ?", ids).Update("tagging", tagging).Error
}
