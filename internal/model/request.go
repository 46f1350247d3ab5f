package model

import (
	"github.com/google/uuid"
)

// Request statuses
const (
	RequestStatusPending           = "pending"
	RequestStatusApproved          = "approved"
	RequestStatusToOrder           = "to_order"
	RequestStatusPropertyCustodian = "propertyCustodian"
	RequestStatusRejected          = "rejected"
)

// Line tagging values, set independently of the parent request status
const (
	TaggingNoCanvas    = "no_canvas"
	TaggingWithCanvas  = "with_canvas"
	TaggingForPurchase = "forPurchase"
)

// Request is a departmental demand for items.
type Request struct {
	Base
	RequestNo    string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"request_no"`
	Status       string          `gorm:"type:varchar(30);not null;default:'pending';index" json:"status"`
	DepartmentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"department_id"`
	Department   *Department     `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Purpose      string          `gorm:"type:text" json:"purpose"`
	Details      []RequestDetail `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"details"`
}

type RequestDetail struct {
	Base
	RequestID   uuid.UUID `gorm:"type:uuid;not null;index" json:"request_id"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Unit        string    `gorm:"type:varchar(30);not null" json:"unit"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Tagging     *string   `gorm:"type:varchar(20)" json:"tagging"`
}
