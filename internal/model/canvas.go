package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Canvas statuses
const (
	CanvasDraft           = "draft"
	CanvasSubmitted       = "submitted"
	CanvasPendingApproval = "pending_approval"
	CanvasApproved        = "approved"
	CanvasRejected        = "rejected"
	CanvasPOCreated       = "poCreated"
)

// Canvas is a supplier-quotation comparison package signed off by several roles.
type Canvas struct {
	Base
	OrderID      *uuid.UUID          `gorm:"type:uuid;index" json:"order_id"`
	Title        string              `gorm:"type:varchar(255);not null" json:"title"`
	Status       string              `gorm:"type:varchar(30);not null;default:'draft';index" json:"status"`
	CreatedBy    uuid.UUID           `gorm:"type:uuid;not null" json:"created_by"`
	Files        []CanvasFile        `gorm:"foreignKey:CanvasID;constraint:OnDelete:CASCADE" json:"files"`
	Approvals    []CanvasApproval    `gorm:"foreignKey:CanvasID;constraint:OnDelete:CASCADE" json:"approvals"`
	SelectedFile *CanvasSelectedFile `gorm:"foreignKey:CanvasID;constraint:OnDelete:CASCADE" json:"selected_file,omitempty"`
	DeletedAt    gorm.DeletedAt      `gorm:"index" json:"-"`
}

func (Canvas) TableName() string { return "canvases" }

type CanvasFile struct {
	Base
	CanvasID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"canvas_id"`
	SupplierID   *uuid.UUID `gorm:"type:uuid;index" json:"supplier_id"`
	StorageKey   string     `gorm:"type:varchar(255);not null" json:"storage_key"`
	OriginalName string     `gorm:"type:varchar(255);not null" json:"original_name"`
	ContentType  string     `gorm:"type:varchar(100)" json:"content_type"`
	Size         int64      `json:"size"`
	UploadedBy   uuid.UUID  `gorm:"type:uuid;not null" json:"uploaded_by"`
}

// CanvasApproval holds the latest decision per (canvas, user, role). Later decisions
// by the same user in the same role overwrite the row.
type CanvasApproval struct {
	Base
	CanvasID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_canvas_approval_actor" json:"canvas_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_canvas_approval_actor" json:"user_id"`
	Role       string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_canvas_approval_actor" json:"role"`
	Approved   bool      `gorm:"not null" json:"approved"`
	Comments   string    `gorm:"type:text" json:"comments"`
	ApprovedAt time.Time `gorm:"not null" json:"approved_at"`
}

// CanvasSelectedFile records the winning quotation chosen on final approval.
type CanvasSelectedFile struct {
	Base
	CanvasID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"canvas_id"`
	CanvasFileID     uuid.UUID `gorm:"type:uuid;not null" json:"canvas_file_id"`
	CanvasApprovalID uuid.UUID `gorm:"type:uuid;not null" json:"canvas_approval_id"`
	Remarks          string    `gorm:"type:text" json:"remarks"`
}
