package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VoucherRepository interface {
	Create(ctx context.Context, voucher *model.Voucher) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Voucher, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Voucher, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateCheckNo(ctx context.Context, id uuid.UUID, checkNo string) error
	List(ctx context.Context, filter ListFilter) ([]model.Voucher, int64, error)
	ExistsForPurchaseOrder(ctx context.Context, poID uuid.UUID) (bool, error)
}

type voucherRepository struct {
	db *gorm.DB
}

func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

func (r *voucherRepository) Create(ctx context.Context, voucher *model.Voucher) error {
	return GetDB(ctx, r.db).Create(voucher).Error
}

func (r *voucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Voucher, error) {
	var voucher model.Voucher
	if err := GetDB(ctx, r.db).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Details.Account").
		Preload("PurchaseOrder").
		First(&voucher, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Voucher, error) {
	var voucher model.Voucher
	if err := forUpdate(ctx, r.db).First(&voucher, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Voucher{}).Where("id = ?", id).Update("status", status).Error
}

func (r *voucherRepository) UpdateCheckNo(ctx context.Context, id uuid.UUID, checkNo string) error {
	return GetDB(ctx, r.db).Model(&model.Voucher{}).Where("id = ?", id).Update("check_no", checkNo).Error
}

func (r *voucherRepository) List(ctx context.Context, filter ListFilter) ([]model.Voucher, int64, error) {
	var vouchers []model.Voucher
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Voucher{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("LOWER(voucher_no) LIKE LOWER(?) OR LOWER(payee) LIKE LOWER(?)", like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Details").
		Order("created_at DESC").
		Offset(filter.offset()).Limit(filter.limit()).
		Find(&vouchers).Error; err != nil {
		return nil, 0, err
	}
	return vouchers, total, nil
}

func (r *voucherRepository) ExistsForPurchaseOrder(ctx context.Context, poID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Voucher{}).Where("purchase_order_id = ?", poID).Count(&count).Error
	return count > 0, err
}
