package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestToOrder statuses. Completed is derived from the release ledger, never set by an operator.
const (
	OrderPending   = "pending"
	OrderForEOD    = "forEOD"
	OrderForPO     = "forPO"
	OrderApproved  = "approved"
	OrderCompleted = "completed"
	OrderRejected  = "rejected"
)

// RequestToOrder consolidates request lines into a purchasable order.
type RequestToOrder struct {
	Base
	OrderNo   string                  `gorm:"type:varchar(30);uniqueIndex;not null" json:"order_no"`
	Status    string                  `gorm:"type:varchar(30);not null;default:'pending';index" json:"status"`
	CreatedBy uuid.UUID               `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator   *User                   `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Remarks   string                  `gorm:"type:text" json:"remarks"`
	Details   []RequestToOrderDetail  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"details"`
	Releases  []RequestToOrderRelease `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"releases,omitempty"`
}

func (RequestToOrder) TableName() string { return "request_to_orders" }

type RequestToOrderDetail struct {
	Base
	OrderID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	RequestDetailID *uuid.UUID `gorm:"type:uuid;index" json:"request_detail_id"`
	Quantity        int        `gorm:"not null" json:"quantity"`
	Unit            string     `gorm:"type:varchar(30);not null" json:"unit"`
	Description     string     `gorm:"type:text;not null" json:"description"`
}

// RequestToOrderRelease is one partial delivery against a single order line.
// Sum of QuantityReleased per OrderDetailID never exceeds the line quantity.
type RequestToOrderRelease struct {
	Base
	OrderID          uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	OrderDetailID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_detail_id"`
	QuantityReleased int       `gorm:"not null" json:"quantity_released"`
	ReleaseDate      time.Time `gorm:"not null" json:"release_date"`
	ReleasedBy       uuid.UUID `gorm:"type:uuid;not null" json:"released_by"`
	Notes            string    `gorm:"type:text" json:"notes"`
}
