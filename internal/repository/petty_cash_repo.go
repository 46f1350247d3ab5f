package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PettyCashRepository interface {
	Create(ctx context.Context, pc *model.PettyCash) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PettyCash, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.PettyCash, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	List(ctx context.Context, filter ListFilter, requestedBy *uuid.UUID) ([]model.PettyCash, int64, error)

	FindItem(ctx context.Context, pettyCashID, itemID uuid.UUID) (*model.PettyCashItem, error)
	SetItemReceipt(ctx context.Context, itemID uuid.UUID, key string) error
}

type pettyCashRepository struct {
	db *gorm.DB
}

func NewPettyCashRepository(db *gorm.DB) PettyCashRepository {
	return &pettyCashRepository{db: db}
}

func (r *pettyCashRepository) Create(ctx context.Context, pc *model.PettyCash) error {
	return GetDB(ctx, r.db).Create(pc).Error
}

func (r *pettyCashRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PettyCash, error) {
	var pc model.PettyCash
	if err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Distributions").
		Preload("Distributions.Account").
		Preload("Requester").
		First(&pc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pettyCashRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.PettyCash, error) {
	var pc model.PettyCash
	if err := forUpdate(ctx, r.db).First(&pc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pettyCashRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return GetDB(ctx, r.db).Model(&model.PettyCash{}).Where("id = ?", id).Updates(fields).Error
}

func (r *pettyCashRepository) List(ctx context.Context, filter ListFilter, requestedBy *uuid.UUID) ([]model.PettyCash, int64, error) {
	var items []model.PettyCash
	var total int64

	query := GetDB(ctx, r.db).Model(&model.PettyCash{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("LOWER(pcv_no) LIKE LOWER(?) OR LOWER(purpose) LIKE LOWER(?)", like, like)
	}
	if requestedBy != nil {
		query = query.Where("requested_by = ?", *requestedBy)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(filter.offset()).Limit(filter.limit()).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *pettyCashRepository) FindItem(ctx context.Context, pettyCashID, itemID uuid.UUID) (*model.PettyCashItem, error) {
	var item model.PettyCashItem
	if err := GetDB(ctx, r.db).First(&item, "id = ? AND petty_cash_id = ?", itemID, pettyCashID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *pettyCashRepository) SetItemReceipt(ctx context.Context, itemID uuid.UUID, key string) error {
	return GetDB(ctx, r.db).Model(&model.PettyCashItem{}).Where("id = ?", itemID).Update("receipt_key", key).Error
}

// FundRepository manages custodian revolving funds and their movement history.
type FundRepository interface {
	Create(ctx context.Context, fund *model.PettyCashFund) error
	FindByCustodian(ctx context.Context, custodianID uuid.UUID) (*model.PettyCashFund, error)
	LockByCustodian(ctx context.Context, custodianID uuid.UUID) (*model.PettyCashFund, error)
	SetBalance(ctx context.Context, fundID uuid.UUID, balance decimal.Decimal) error
	AddEntry(ctx context.Context, entry *model.PettyCashFundEntry) error
	ListEntries(ctx context.Context, fundID uuid.UUID, page, limit int) ([]model.PettyCashFundEntry, int64, error)
	List(ctx context.Context) ([]model.PettyCashFund, error)
}

type fundRepository struct {
	db *gorm.DB
}

func NewFundRepository(db *gorm.DB) FundRepository {
	return &fundRepository{db: db}
}

func (r *fundRepository) Create(ctx context.Context, fund *model.PettyCashFund) error {
	return GetDB(ctx, r.db).Create(fund).Error
}

func (r *fundRepository) FindByCustodian(ctx context.Context, custodianID uuid.UUID) (*model.PettyCashFund, error) {
	var fund model.PettyCashFund
	if err := GetDB(ctx, r.db).Preload("Custodian").First(&fund, "custodian_id = ?", custodianID).Error; err != nil {
		return nil, err
	}
	return &fund, nil
}

func (r *fundRepository) LockByCustodian(ctx context.Context, custodianID uuid.UUID) (*model.PettyCashFund, error) {
	var fund model.PettyCashFund
	if err := forUpdate(ctx, r.db).First(&fund, "custodian_id = ?", custodianID).Error; err != nil {
		return nil, err
	}
	return &fund, nil
}

func (r *fundRepository) SetBalance(ctx context.Context, fundID uuid.UUID, balance decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.PettyCashFund{}).Where("id = ?", fundID).Update("fund_amount", balance).Error
}

func (r *fundRepository) AddEntry(ctx context.Context, entry *model.PettyCashFundEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *fundRepository) ListEntries(ctx context.Context, fundID uuid.UUID, page, limit int) ([]model.PettyCashFundEntry, int64, error) {
	var entries []model.PettyCashFundEntry
	var total int64

	query := GetDB(ctx, r.db).Model(&model.PettyCashFundEntry{}).Where("fund_id = ?", fundID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *fundRepository) List(ctx context.Context) ([]model.PettyCashFund, error) {
	var funds []model.PettyCashFund
	if err := GetDB(ctx, r.db).Preload("Custodian").Order("created_at asc").Find(&funds).Error; err != nil {
		return nil, err
	}
	return funds, nil
}
