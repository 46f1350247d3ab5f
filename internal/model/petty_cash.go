package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PettyCash statuses
const (
	PettyCashDraft               = "draft"
	PettyCashSubmitted           = "submitted"
	PettyCashAudited             = "audited"
	PettyCashApproved            = "approved"
	PettyCashReleased            = "released"
	PettyCashForLiquidation      = "for liquidation"
	PettyCashApprovedLiquidation = "approved liquidation"
)

// Fund entry types
const (
	FundEntryDebit     = "debit"
	FundEntryReplenish = "replenish"
)

// PettyCash is a small disbursement drawn from a custodian's revolving fund.
type PettyCash struct {
	Base
	PCVNo         string                `gorm:"column:pcv_no;type:varchar(30);uniqueIndex;not null" json:"pcv_no"`
	Status        string                `gorm:"type:varchar(30);not null;default:'draft';index" json:"status"`
	RequestedBy   uuid.UUID             `gorm:"type:uuid;not null;index" json:"requested_by"`
	Requester     *User                 `gorm:"foreignKey:RequestedBy" json:"requester,omitempty"`
	CustodianID   *uuid.UUID            `gorm:"type:uuid;index" json:"custodian_id"`
	Purpose       string                `gorm:"type:text" json:"purpose"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,4);not null" json:"amount"`
	ReleasedAt    *time.Time            `json:"released_at"`
	Items         []PettyCashItem       `gorm:"foreignKey:PettyCashID;constraint:OnDelete:CASCADE" json:"items"`
	Distributions []DistributionExpense `gorm:"foreignKey:PettyCashID;constraint:OnDelete:CASCADE" json:"distributions"`
}

func (PettyCash) TableName() string { return "petty_cashes" }

type PettyCashItem struct {
	Base
	PettyCashID uuid.UUID       `gorm:"type:uuid;not null;index" json:"petty_cash_id"`
	Particulars string          `gorm:"type:text;not null" json:"particulars"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	ReceiptKey  string          `gorm:"type:varchar(255)" json:"receipt_key"`
}

// DistributionExpense allocates the petty cash draw to an account
type DistributionExpense struct {
	Base
	PettyCashID uuid.UUID       `gorm:"type:uuid;not null;index" json:"petty_cash_id"`
	AccountID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"account_id"`
	Account     *Account        `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
}

// PettyCashFund is the revolving balance held by one custodian. FundAmount never goes negative.
type PettyCashFund struct {
	Base
	CustodianID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"custodian_id"`
	Custodian   *User           `gorm:"foreignKey:CustodianID" json:"custodian,omitempty"`
	FundAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"fund_amount"`
}

// PettyCashFundEntry is the movement history of a fund
type PettyCashFundEntry struct {
	Base
	FundID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"fund_id"`
	PettyCashID  *uuid.UUID      `gorm:"type:uuid;index" json:"petty_cash_id"`
	EntryType    string          `gorm:"type:varchar(20);not null" json:"entry_type"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"balance_after"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null" json:"user_id"`
	Remarks      string          `gorm:"type:text" json:"remarks"`
}
