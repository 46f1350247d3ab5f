package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.RequestToOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RequestToOrder, error)
	// LockByID loads the order with its details and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*model.RequestToOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, filter ListFilter) ([]model.RequestToOrder, int64, error)

	ReleasedByDetail(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error)
	CreateReleases(ctx context.Context, releases []model.RequestToOrderRelease) error
	ListReleases(ctx context.Context, orderID uuid.UUID) ([]model.RequestToOrderRelease, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.RequestToOrder) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RequestToOrder, error) {
	var order model.RequestToOrder
	if err := GetDB(ctx, r.db).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Creator").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.RequestToOrder, error) {
	var order model.RequestToOrder
	if err := forUpdate(ctx, r.db).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("order_id = ?", id).Order("created_at asc, id asc").Find(&order.Details).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.RequestToOrder{}).Where("id = ?", id).Update("status", status).Error
}

func (r *orderRepository) List(ctx context.Context, filter ListFilter) ([]model.RequestToOrder, int64, error) {
	var orders []model.RequestToOrder
	var total int64

	query := GetDB(ctx, r.db).Model(&model.RequestToOrder{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(order_no) LIKE LOWER(?)", "%"+filter.Search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Details").
		Order("created_at DESC").
		Offset(filter.offset()).Limit(filter.limit()).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ReleasedByDetail sums persisted releases per order line.
func (r *orderRepository) ReleasedByDetail(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		OrderDetailID uuid.UUID
		Total         int
	}
	if err := GetDB(ctx, r.db).Model(&model.RequestToOrderRelease{}).
		Select("order_detail_id, SUM(quantity_released) AS total").
		Where("order_id = ?", orderID).
		Group("order_detail_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	released := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		released[row.OrderDetailID] = row.Total
	}
	return released, nil
}

func (r *orderRepository) CreateReleases(ctx context.Context, releases []model.RequestToOrderRelease) error {
	if len(releases) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&releases).Error
}

func (r *orderRepository) ListReleases(ctx context.Context, orderID uuid.UUID) ([]model.RequestToOrderRelease, error) {
	var releases []model.RequestToOrderRelease
	if err := GetDB(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("release_date asc, created_at asc").
		Find(&releases).Error; err != nil {
		return nil, err
	}
	return releases, nil
}
