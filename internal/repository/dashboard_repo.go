package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusCount is one (status, count) bucket of an entity table.
type StatusCount struct {
	Status string
	Count  int64
}

type DashboardRepository interface {
	StatusCounts(ctx context.Context, table string) ([]StatusCount, error)
	SumByStatus(ctx context.Context, table, column string, statuses []string, since time.Time) (decimal.Decimal, error)
}

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

var softDeleteTables = map[string]bool{"canvases": true, "suppliers": true, "users": true}

// StatusCounts groups live rows of table by status.
func (r *dashboardRepository) StatusCounts(ctx context.Context, table string) ([]StatusCount, error) {
	var counts []StatusCount
	query := GetDB(ctx, r.db).Table(table).Select("status, COUNT(*) AS count")
	if softDeleteTables[table] {
		query = query.Where("deleted_at IS NULL")
	}
	if err := query.Group("status").Order("status asc").Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *dashboardRepository) SumByStatus(ctx context.Context, table, column string, statuses []string, since time.Time) (decimal.Decimal, error) {
	var total struct {
		Value decimal.Decimal
	}
	query := GetDB(ctx, r.db).Table(table).
		Select("COALESCE(SUM("+column+"), 0) AS value").
		Where("status IN ?", statuses)
	if !since.IsZero() {
		query = query.Where("updated_at >= ?", since)
	}
	if err := query.Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	return total.Value, nil
}
