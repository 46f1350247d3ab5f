package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CanvasRepository interface {
	Create(ctx context.Context, canvas *model.Canvas) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Canvas, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Canvas, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, filter ListFilter) ([]model.Canvas, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AddFile(ctx context.Context, file *model.CanvasFile) error
	FindFile(ctx context.Context, canvasID, fileID uuid.UUID) (*model.CanvasFile, error)
	DeleteFile(ctx context.Context, fileID uuid.UUID) error

	// UpsertApproval keeps one row per (canvas, user, role) and returns the stored row.
	UpsertApproval(ctx context.Context, approval *model.CanvasApproval) (*model.CanvasApproval, error)
	// LatestApprovalPerRole returns the most recent decision of each role on the canvas.
	LatestApprovalPerRole(ctx context.Context, canvasID uuid.UUID) ([]model.CanvasApproval, error)
	CreateSelectedFile(ctx context.Context, selected *model.CanvasSelectedFile) error
}

type canvasRepository struct {
	db *gorm.DB
}

func NewCanvasRepository(db *gorm.DB) CanvasRepository {
	return &canvasRepository{db: db}
}

func (r *canvasRepository) Create(ctx context.Context, canvas *model.Canvas) error {
	return GetDB(ctx, r.db).Create(canvas).Error
}

func (r *canvasRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Canvas, error) {
	var canvas model.Canvas
	if err := GetDB(ctx, r.db).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("approved_at asc") }).
		Preload("SelectedFile").
		First(&canvas, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &canvas, nil
}

func (r *canvasRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Canvas, error) {
	var canvas model.Canvas
	if err := forUpdate(ctx, r.db).First(&canvas, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("canvas_id = ?", id).Find(&canvas.Files).Error; err != nil {
		return nil, err
	}
	return &canvas, nil
}

func (r *canvasRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Canvas{}).Where("id = ?", id).Update("status", status).Error
}

func (r *canvasRepository) List(ctx context.Context, filter ListFilter) ([]model.Canvas, int64, error) {
	var canvases []model.Canvas
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Canvas{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(title) LIKE LOWER(?)", "%"+filter.Search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Files").
		Order("created_at DESC").
		Offset(filter.offset()).Limit(filter.limit()).
		Find(&canvases).Error; err != nil {
		return nil, 0, err
	}
	return canvases, total, nil
}

// Delete soft-deletes the canvas; its files and approvals stay for the audit trail.
func (r *canvasRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Canvas{}).Error
}

func (r *canvasRepository) AddFile(ctx context.Context, file *model.CanvasFile) error {
	return GetDB(ctx, r.db).Create(file).Error
}

func (r *canvasRepository) FindFile(ctx context.Context, canvasID, fileID uuid.UUID) (*model.CanvasFile, error) {
	var file model.CanvasFile
	if err := GetDB(ctx, r.db).First(&file, "id = ? AND canvas_id = ?", fileID, canvasID).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *canvasRepository) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", fileID).Delete(&model.CanvasFile{}).Error
}

func (r *canvasRepository) UpsertApproval(ctx context.Context, approval *model.CanvasApproval) (*model.CanvasApproval, error) {
	db := GetDB(ctx, r.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canvas_id"}, {Name: "user_id"}, {Name: "role"}},
		DoUpdates: clause.AssignmentColumns([]string{"approved", "comments", "approved_at", "updated_at"}),
	}).Create(approval).Error
	if err != nil {
		return nil, err
	}

	// On conflict the generated id was discarded; read back the surviving row.
	var stored model.CanvasApproval
	if err := db.First(&stored, "canvas_id = ? AND user_id = ? AND role = ?",
		approval.CanvasID, approval.UserID, approval.Role).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *canvasRepository) LatestApprovalPerRole(ctx context.Context, canvasID uuid.UUID) ([]model.CanvasApproval, error) {
	var approvals []model.CanvasApproval
	if err := GetDB(ctx, r.db).
		Where("canvas_id = ?", canvasID).
		Order("approved_at desc, updated_at desc").
		Find(&approvals).Error; err != nil {
		return nil, err
	}
	return lo.UniqBy(approvals, func(a model.CanvasApproval) string { return a.Role }), nil
}

func (r *canvasRepository) CreateSelectedFile(ctx context.Context, selected *model.CanvasSelectedFile) error {
	return GetDB(ctx, r.db).Create(selected).Error
}
