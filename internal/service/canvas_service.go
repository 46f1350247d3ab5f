package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/storage"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateCanvasRequest struct {
	OrderID string `json:"order_id" binding:"omitempty,uuid"`
	Title   string `json:"title" binding:"required"`
}

// FileUpload is an uploaded file handed over by the transport layer
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type CanvasFileResponse struct {
	ID           string  `json:"id"`
	SupplierID   *string `json:"supplier_id"`
	OriginalName string  `json:"original_name"`
	ContentType  string  `json:"content_type"`
	Size         int64   `json:"size"`
	UploadedBy   string  `json:"uploaded_by"`
	CreatedAt    string  `json:"created_at"`
}

type CanvasApprovalResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	Approved   bool   `json:"approved"`
	Comments   string `json:"comments"`
	ApprovedAt string `json:"approved_at"`
}

type SelectedFileResponse struct {
	CanvasFileID     string `json:"canvas_file_id"`
	CanvasApprovalID string `json:"canvas_approval_id"`
	Remarks          string `json:"remarks"`
}

type CanvasResponse struct {
	ID           string                   `json:"id"`
	OrderID      *string                  `json:"order_id"`
	Title        string                   `json:"title"`
	Status       string                   `json:"status"`
	CreatedBy    string                   `json:"created_by"`
	Files        []CanvasFileResponse     `json:"files"`
	Approvals    []CanvasApprovalResponse `json:"approvals"`
	SelectedFile *SelectedFileResponse    `json:"selected_file"`
	CreatedAt    string                   `json:"created_at"`
	UpdatedAt    string                   `json:"updated_at"`
}

type CanvasFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// --- Interface ---

type CanvasService interface {
	CreateCanvas(ctx context.Context, p Principal, req CreateCanvasRequest) (*CanvasResponse, error)
	GetCanvas(ctx context.Context, id uuid.UUID) (*CanvasResponse, error)
	ListCanvases(ctx context.Context, filter CanvasFilter) ([]CanvasResponse, int64, error)
	DeleteCanvas(ctx context.Context, p Principal, id uuid.UUID) error
	UploadFile(ctx context.Context, p Principal, canvasID uuid.UUID, supplierID string, file FileUpload) (*CanvasFileResponse, error)
	DownloadFile(ctx context.Context, canvasID, fileID uuid.UUID) (io.ReadCloser, *CanvasFileResponse, error)
	DeleteFile(ctx context.Context, p Principal, canvasID, fileID uuid.UUID) error
	TransitionCanvas(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error)
	GetApprovals(ctx context.Context, id uuid.UUID) ([]CanvasApprovalResponse, error)
}

type canvasService struct {
	repo      repository.CanvasRepository
	orders    repository.OrderRepository
	suppliers repository.SupplierRepository
	files     storage.FileStore
	engine    *Engine
	log       *zap.Logger
	now       func() time.Time
}

func NewCanvasService(
	repo repository.CanvasRepository,
	orders repository.OrderRepository,
	suppliers repository.SupplierRepository,
	files storage.FileStore,
	engine *Engine,
	log *zap.Logger,
) CanvasService {
	if log == nil {
		log = zap.NewNop()
	}
	return &canvasService{
		repo:      repo,
		orders:    orders,
		suppliers: suppliers,
		files:     files,
		engine:    engine,
		log:       log,
		now:       time.Now,
	}
}

// --- Implementation ---

func (s *canvasService) CreateCanvas(ctx context.Context, p Principal, req CreateCanvasRequest) (*CanvasResponse, error) {
	if err := requireRole(p, model.RolePurchasing); err != nil {
		return nil, err
	}
	orderID, err := parseOptionalID("order_id", req.OrderID)
	if err != nil {
		return nil, err
	}
	if orderID != nil {
		if _, err := s.orders.FindByID(ctx, *orderID); err != nil {
			if repository.IsNotFound(err) {
				return nil, invalid("order_id", "order does not exist")
			}
			return nil, err
		}
	}

	canvas := &model.Canvas{
		OrderID:   orderID,
		Title:     req.Title,
		Status:    model.CanvasDraft,
		CreatedBy: p.UserID,
	}
	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, canvas); err != nil {
			return fmt.Errorf("failed to create canvas: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogCanvas,
			SubjectType: model.LogCanvas,
			SubjectID:   canvas.ID,
			Actor:       &p.UserID,
			Message:     "canvas " + canvas.Title + " created",
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetCanvas(ctx, canvas.ID)
}

func (s *canvasService) GetCanvas(ctx context.Context, id uuid.UUID) (*CanvasResponse, error) {
	canvas, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("canvas", err)
	}
	return toCanvasResponse(canvas), nil
}

func (s *canvasService) ListCanvases(ctx context.Context, filter CanvasFilter) ([]CanvasResponse, int64, error) {
	canvases, total, err := s.repo.List(ctx, repository.ListFilter{
		Status: filter.Status,
		Search: filter.Search,
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list canvases: %w", err)
	}
	res := make([]CanvasResponse, 0, len(canvases))
	for i := range canvases {
		res = append(res, *toCanvasResponse(&canvases[i]))
	}
	return res, total, nil
}

// draft locks a canvas that may still be edited by the caller
func (s *canvasService) draft(ctx context.Context, p Principal, id uuid.UUID) (*model.Canvas, error) {
	if err := requireRole(p, model.RolePurchasing); err != nil {
		return nil, err
	}
	canvas, err := s.repo.LockByID(ctx, id)
	if err != nil {
		return nil, notFound("canvas", err)
	}
	if canvas.Status != model.CanvasDraft {
		return nil, fmt.Errorf("canvas is already %s: %w", canvas.Status, ErrStateConflict)
	}
	return canvas, nil
}

func (s *canvasService) DeleteCanvas(ctx context.Context, p Principal, id uuid.UUID) error {
	return s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		canvas, err := s.draft(txCtx, p, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete canvas: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogCanvas,
			SubjectType: model.LogCanvas,
			SubjectID:   id,
			Actor:       &p.UserID,
			Message:     "canvas " + canvas.Title + " deleted",
		})
	})
}

func (s *canvasService) UploadFile(ctx context.Context, p Principal, canvasID uuid.UUID, supplierID string, file FileUpload) (*CanvasFileResponse, error) {
	if file.Content == nil || file.Filename == "" {
		return nil, invalid("file", "is required")
	}
	supplier, err := parseOptionalID("supplier_id", supplierID)
	if err != nil {
		return nil, err
	}
	if supplier != nil {
		if _, err := s.suppliers.FindByID(ctx, *supplier); err != nil {
			if repository.IsNotFound(err) {
				return nil, invalid("supplier_id", "supplier does not exist")
			}
			return nil, err
		}
	}
	// fail fast before writing to the store
	if _, err := s.draft(ctx, p, canvasID); err != nil {
		return nil, err
	}

	key, err := s.files.Put(ctx, storage.GenerateKey("canvases", file.Filename, s.now()), file.Content, file.Size, file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	record := &model.CanvasFile{
		CanvasID:     canvasID,
		SupplierID:   supplier,
		StorageKey:   key,
		OriginalName: file.Filename,
		ContentType:  file.ContentType,
		Size:         file.Size,
		UploadedBy:   p.UserID,
	}
	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.draft(txCtx, p, canvasID); err != nil {
			return err
		}
		if err := s.repo.AddFile(txCtx, record); err != nil {
			return fmt.Errorf("failed to record file: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogCanvas,
			SubjectType: model.LogCanvas,
			SubjectID:   canvasID,
			Actor:       &p.UserID,
			Message:     "uploaded " + file.Filename,
			Properties:  map[string]any{"file_id": record.ID.String(), "storage_key": key},
		})
	})
	if err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.log.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	res := toCanvasFileResponse(*record)
	return &res, nil
}

func (s *canvasService) DownloadFile(ctx context.Context, canvasID, fileID uuid.UUID) (io.ReadCloser, *CanvasFileResponse, error) {
	file, err := s.repo.FindFile(ctx, canvasID, fileID)
	if err != nil {
		return nil, nil, notFound("canvas file", err)
	}
	body, err := s.files.Get(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("canvas file content %w", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	res := toCanvasFileResponse(*file)
	return body, &res, nil
}

func (s *canvasService) DeleteFile(ctx context.Context, p Principal, canvasID, fileID uuid.UUID) error {
	var key string
	err := s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.draft(txCtx, p, canvasID); err != nil {
			return err
		}
		file, err := s.repo.FindFile(txCtx, canvasID, fileID)
		if err != nil {
			return notFound("canvas file", err)
		}
		key = file.StorageKey
		if err := s.repo.DeleteFile(txCtx, fileID); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogCanvas,
			SubjectType: model.LogCanvas,
			SubjectID:   canvasID,
			Actor:       &p.UserID,
			Message:     "removed " + file.OriginalName,
			Properties:  map[string]any{"file_id": fileID.String()},
		})
	})
	if err != nil {
		return err
	}

	if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// TransitionCanvas drives the canvas sign-off. Canvas decisions are kept per
// (user, role) in canvas approvals rather than in an append-only history.
func (s *canvasService) TransitionCanvas(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error) {
	action := workflow.Action(req.Action)
	if action == workflow.ActionCreatePO {
		return nil, invalid("action", "canvases move to poCreated when a purchase order is created from them")
	}

	var selectedFile uuid.UUID
	if action == workflow.ActionApprove {
		if req.FileID == "" {
			return nil, invalid("selected_file_id", "is required to approve a canvas")
		}
		parsed, err := uuid.Parse(req.FileID)
		if err != nil {
			return nil, invalid("selected_file_id", "must be a valid UUID")
		}
		selectedFile = parsed
	}

	var canvas *model.Canvas
	return s.engine.run(ctx, p, id, req, transitionPlan{
		machine: workflow.CanvasFlow,
		logName: model.LogCanvas,
		lock: func(txCtx context.Context) (string, error) {
			c, err := s.repo.LockByID(txCtx, id)
			if err != nil {
				return "", notFound("canvas", err)
			}
			canvas = c
			return c.Status, nil
		},
		apply: func(txCtx context.Context, t workflow.Transition) error {
			switch t.Action {
			case workflow.ActionSubmit:
				if len(canvas.Files) == 0 {
					return invalid("files", "upload at least one quotation before submitting")
				}
			case workflow.ActionReview:
				favourable := req.Approved == nil || *req.Approved
				if _, err := s.decide(txCtx, p, t, id, favourable, req.Remarks); err != nil {
					return err
				}
			case workflow.ActionReject:
				if _, err := s.decide(txCtx, p, t, id, false, req.Remarks); err != nil {
					return err
				}
			case workflow.ActionApprove:
				if !lo.ContainsBy(canvas.Files, func(f model.CanvasFile) bool { return f.ID == selectedFile }) {
					return invalid("selected_file_id", "file does not belong to this canvas")
				}
				approval, err := s.decide(txCtx, p, t, id, true, req.Remarks)
				if err != nil {
					return err
				}
				err = s.repo.CreateSelectedFile(txCtx, &model.CanvasSelectedFile{
					CanvasID:         id,
					CanvasFileID:     selectedFile,
					CanvasApprovalID: approval.ID,
					Remarks:          req.Remarks,
				})
				if err != nil {
					return fmt.Errorf("failed to record selected file: %w", err)
				}
			}
			return s.repo.UpdateStatus(txCtx, id, t.To)
		},
	})
}

// decide records the actor's decision under the role that gates t, so an admin acting
// for the executive director leaves an executive_director row.
func (s *canvasService) decide(ctx context.Context, p Principal, t workflow.Transition, canvasID uuid.UUID, approved bool, comments string) (*model.CanvasApproval, error) {
	role := p.Role
	if p.IsAdmin() && len(t.Roles) > 0 {
		role = t.Roles[0]
	}
	stored, err := s.repo.UpsertApproval(ctx, &model.CanvasApproval{
		CanvasID:   canvasID,
		UserID:     p.UserID,
		Role:       role,
		Approved:   approved,
		Comments:   comments,
		ApprovedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record canvas decision: %w", err)
	}
	return stored, nil
}

func (s *canvasService) GetApprovals(ctx context.Context, id uuid.UUID) ([]CanvasApprovalResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound("canvas", err)
	}
	approvals, err := s.repo.LatestApprovalPerRole(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load canvas approvals: %w", err)
	}
	return lo.Map(approvals, func(a model.CanvasApproval, _ int) CanvasApprovalResponse { return toCanvasApprovalResponse(a) }), nil
}

// --- Helpers ---

func toCanvasFileResponse(f model.CanvasFile) CanvasFileResponse {
	var supplier *string
	if f.SupplierID != nil {
		supplier = lo.ToPtr(f.SupplierID.String())
	}
	return CanvasFileResponse{
		ID:           f.ID.String(),
		SupplierID:   supplier,
		OriginalName: f.OriginalName,
		ContentType:  f.ContentType,
		Size:         f.Size,
		UploadedBy:   f.UploadedBy.String(),
		CreatedAt:    f.CreatedAt.Format(time.RFC3339),
	}
}

func toCanvasApprovalResponse(a model.CanvasApproval) CanvasApprovalResponse {
	return CanvasApprovalResponse{
		ID:         a.ID.String(),
		UserID:     a.UserID.String(),
		Role:       a.Role,
		Approved:   a.Approved,
		Comments:   a.Comments,
		ApprovedAt: a.ApprovedAt.Format(time.RFC3339),
	}
}

func toCanvasResponse(c *model.Canvas) *CanvasResponse {
	res := &CanvasResponse{
		ID:        c.ID.String(),
		Title:     c.Title,
		Status:    c.Status,
		CreatedBy: c.CreatedBy.String(),
		Files:     lo.Map(c.Files, func(f model.CanvasFile, _ int) CanvasFileResponse { return toCanvasFileResponse(f) }),
		Approvals: lo.Map(c.Approvals, func(a model.CanvasApproval, _ int) CanvasApprovalResponse { return toCanvasApprovalResponse(a) }),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
	if c.OrderID != nil {
		res.OrderID = lo.ToPtr(c.OrderID.String())
	}
	if c.SelectedFile != nil {
		res.SelectedFile = &SelectedFileResponse{
			CanvasFileID:     c.SelectedFile.CanvasFileID.String(),
			CanvasApprovalID: c.SelectedFile.CanvasApprovalID.String(),
			Remarks:          c.SelectedFile.Remarks,
		}
	}
	return res
}
