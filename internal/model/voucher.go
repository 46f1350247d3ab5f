package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Voucher statuses
const (
	VoucherPending    = "pending"
	VoucherForAudit   = "forAudit"
	VoucherForCheck   = "forCheck"
	VoucherForEOD     = "forEOD"
	VoucherUnreleased = "unreleased"
	VoucherReleased   = "released"
	VoucherPaid       = "paid"
	VoucherRejected   = "rejected"
)

// Voucher is a disbursement instruction itemised by accounting charge.
// CheckAmount equals the sum of detail amounts at creation time.
type Voucher struct {
	Base
	VoucherNo       string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"voucher_no"`
	Status          string          `gorm:"type:varchar(30);not null;default:'pending';index" json:"status"`
	PurchaseOrderID *uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"purchase_order_id"`
	PurchaseOrder   *PurchaseOrder  `gorm:"foreignKey:PurchaseOrderID" json:"purchase_order,omitempty"`
	Payee           string          `gorm:"type:varchar(255);not null" json:"payee"`
	Particulars     string          `gorm:"type:text" json:"particulars"`
	CheckNo         string          `gorm:"type:varchar(50)" json:"check_no"`
	CheckAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"check_amount"`
	CreatedBy       uuid.UUID       `gorm:"type:uuid;not null" json:"created_by"`
	Details         []VoucherDetail `gorm:"foreignKey:VoucherID;constraint:OnDelete:CASCADE" json:"details"`
}

type VoucherDetail struct {
	Base
	VoucherID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"voucher_id"`
	AccountID   *uuid.UUID      `gorm:"type:uuid;index" json:"account_id"`
	Account     *Account        `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	ChargingTag string          `gorm:"type:varchar(100)" json:"charging_tag"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
}
