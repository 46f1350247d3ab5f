package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalSubject identifies which approval-history table a row belongs to
type ApprovalSubject string

const (
	SubjectRequest       ApprovalSubject = "request"
	SubjectOrder         ApprovalSubject = "request_to_order"
	SubjectPurchaseOrder ApprovalSubject = "purchase_order"
	SubjectVoucher       ApprovalSubject = "voucher"
	SubjectPettyCash     ApprovalSubject = "petty_cash"
)

// ApprovalLog is the shared shape of every append-only approval history row.
// Rows are inserted once per transition and never updated or deleted.
type ApprovalLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Status     string    `gorm:"type:varchar(30);not null" json:"status"`
	Remarks    string    `gorm:"type:text" json:"remarks"`
	ApprovedAt time.Time `gorm:"not null;index" json:"approved_at"`
}

func (a *ApprovalLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type RequestApproval struct {
	ApprovalLog
	RequestID uuid.UUID `gorm:"type:uuid;not null;index" json:"request_id"`
}

type RequestToOrderApproval struct {
	ApprovalLog
	OrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
}

type PurchaseOrderApproval struct {
	ApprovalLog
	PurchaseOrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
}

type VoucherApproval struct {
	ApprovalLog
	VoucherID uuid.UUID `gorm:"type:uuid;not null;index" json:"voucher_id"`
}

type PettyCashApproval struct {
	ApprovalLog
	PettyCashID uuid.UUID `gorm:"type:uuid;not null;index" json:"petty_cash_id"`
}

// NewApprovalRow builds the typed row for subject. ok is false for an unknown subject.
func NewApprovalRow(subject ApprovalSubject, entityID uuid.UUID, log ApprovalLog) (row any, ok bool) {
	switch subject {
	case SubjectRequest:
		return &RequestApproval{ApprovalLog: log, RequestID: entityID}, true
	case SubjectOrder:
		return &RequestToOrderApproval{ApprovalLog: log, OrderID: entityID}, true
	case SubjectPurchaseOrder:
		return &PurchaseOrderApproval{ApprovalLog: log, PurchaseOrderID: entityID}, true
	case SubjectVoucher:
		return &VoucherApproval{ApprovalLog: log, VoucherID: entityID}, true
	case SubjectPettyCash:
		return &PettyCashApproval{ApprovalLog: log, PettyCashID: entityID}, true
	}
	return nil, false
}

// ApprovalTable returns the table and foreign-key column holding history for subject
func ApprovalTable(subject ApprovalSubject) (table, column string, ok bool) {
	switch subject {
	case SubjectRequest:
		return "request_approvals", "request_id", true
	case SubjectOrder:
		return "request_to_order_approvals", "order_id", true
	case SubjectPurchaseOrder:
		return "purchase_order_approvals", "purchase_order_id", true
	case SubjectVoucher:
		return "voucher_approvals", "voucher_id", true
	case SubjectPettyCash:
		return "petty_cash_approvals", "petty_cash_id", true
	}
	return "", "", false
}
