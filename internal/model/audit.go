package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity log names, one per workflow family
const (
	LogRequest       = "request"
	LogOrder         = "request_to_order"
	LogRelease       = "release"
	LogCanvas        = "canvas"
	LogPurchaseOrder = "purchase_order"
	LogVoucher       = "voucher"
	LogPettyCash     = "petty_cash"
	LogMasterData    = "master_data"
)

// AuditLog is the append-only activity trail. It is independent of the per-entity
// approval tables: it records who did what to which subject, with free-form properties.
type AuditLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	LogName     string     `gorm:"type:varchar(50);not null;index" json:"log_name"`
	SubjectType string     `gorm:"type:varchar(50);index:idx_audit_subject" json:"subject_type"`
	SubjectID   string     `gorm:"type:varchar(50);index:idx_audit_subject" json:"subject_id"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for system events
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Message     string     `gorm:"type:text" json:"message"`
	Properties  string     `gorm:"type:jsonb" json:"properties"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
