package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrder statuses
const (
	PODraft     = "draft"
	POForEOD    = "forEOD"
	POApproved  = "approved"
	POCompleted = "completed"
	PORejected  = "rejected"
)

// PurchaseOrder is a commitment to pay a payee for the listed items.
type PurchaseOrder struct {
	Base
	PONo        string                `gorm:"column:po_no;type:varchar(30);uniqueIndex;not null" json:"po_no"`
	Status      string                `gorm:"type:varchar(30);not null;default:'draft';index" json:"status"`
	OrderID     *uuid.UUID            `gorm:"type:uuid;index" json:"order_id"`
	CanvasID    *uuid.UUID            `gorm:"type:uuid;index" json:"canvas_id"`
	SupplierID  *uuid.UUID            `gorm:"type:uuid;index" json:"supplier_id"`
	Supplier    *Supplier             `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Payee       string                `gorm:"type:varchar(255);not null" json:"payee"`
	TotalAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	CreatedBy   uuid.UUID             `gorm:"type:uuid;not null" json:"created_by"`
	Details     []PurchaseOrderDetail `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"details"`
}

// PurchaseOrderDetail.Amount must equal Quantity * UnitPrice; checked on create, not by the database.
type PurchaseOrderDetail struct {
	Base
	PurchaseOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	Unit            string          `gorm:"type:varchar(30);not null" json:"unit"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
}
