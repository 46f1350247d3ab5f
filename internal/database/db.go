package database

import (
	"fmt"

	"procurement/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens a postgres pool through gorm and migrates the schema
func NewConnection(dsn string, log gormlogger.Interface, zlog *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: log})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		zlog.Warn("failed to auto-migrate models", zap.Error(err))
	}

	return db, nil
}

// Models lists every table in dependency order
func Models() []any {
	return []any{
		&model.Department{},
		&model.User{},
		&model.Role{},
		&model.Permission{},
		&model.AuditLog{},
		&model.SequenceCounter{},
		&model.Supplier{},
		&model.Account{},
		&model.Request{},
		&model.RequestDetail{},
		&model.RequestApproval{},
		&model.RequestToOrder{},
		&model.RequestToOrderDetail{},
		&model.RequestToOrderRelease{},
		&model.RequestToOrderApproval{},
		&model.Canvas{},
		&model.CanvasFile{},
		&model.CanvasApproval{},
		&model.CanvasSelectedFile{},
		&model.PurchaseOrder{},
		&model.PurchaseOrderDetail{},
		&model.PurchaseOrderApproval{},
		&model.Voucher{},
		&model.VoucherDetail{},
		&model.VoucherApproval{},
		&model.PettyCash{},
		&model.PettyCashItem{},
		&model.DistributionExpense{},
		&model.PettyCashApproval{},
		&model.PettyCashFund{},
		&model.PettyCashFundEntry{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
