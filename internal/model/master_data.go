package model

import (
	"time"

	"gorm.io/gorm"
)

// Account categories
const (
	AccountAsset     = "ASSET"
	AccountLiability = "LIABILITY"
	AccountExpense   = "EXPENSE"
)

// Supplier is a payee that quotes on canvasses and receives purchase orders
type Supplier struct {
	Base
	Name          string         `gorm:"type:varchar(255);not null;index" json:"name"`
	TIN           string         `gorm:"column:tin;type:varchar(50)" json:"tin"`
	ContactPerson string         `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         string         `gorm:"type:varchar(50)" json:"phone"`
	Email         string         `gorm:"type:varchar(255)" json:"email"`
	Address       string         `gorm:"type:text" json:"address"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Account is a chart-of-accounts entry referenced by voucher charging lines and
// petty cash distributions
type Account struct {
	Base
	Code     string `gorm:"type:varchar(30);uniqueIndex;not null" json:"code"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Category string `gorm:"type:varchar(20);not null;index" json:"category"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// SequenceCounter backs document numbering. One row per prefix, e.g. "V-2026-".
type SequenceCounter struct {
	Prefix    string    `gorm:"type:varchar(40);primaryKey" json:"prefix"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}
