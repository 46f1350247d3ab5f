package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type PurchaseOrderLineInput struct {
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
	Unit        string `json:"unit" binding:"required"`
	Description string `json:"description" binding:"required"`
	UnitPrice   string `json:"unit_price" binding:"required,decimal"`
	Amount      string `json:"amount" binding:"required,decimal"`
}

type CreatePurchaseOrderRequest struct {
	OrderID    string                   `json:"order_id" binding:"omitempty,uuid"`
	CanvasID   string                   `json:"canvas_id" binding:"omitempty,uuid"`
	SupplierID string                   `json:"supplier_id" binding:"omitempty,uuid"`
	Payee      string                   `json:"payee"`
	Details    []PurchaseOrderLineInput `json:"details" binding:"required,min=1,dive"`
}

type PurchaseOrderDetailResponse struct {
	ID          string `json:"id"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

type PurchaseOrderResponse struct {
	ID          string                        `json:"id"`
	PONo        string                        `json:"po_no"`
	Status      string                        `json:"status"`
	OrderID     *string                       `json:"order_id"`
	CanvasID    *string                       `json:"canvas_id"`
	SupplierID  *string                       `json:"supplier_id"`
	Supplier    string                        `json:"supplier"`
	Payee       string                        `json:"payee"`
	TotalAmount string                        `json:"total_amount"`
	CreatedBy   string                        `json:"created_by"`
	Details     []PurchaseOrderDetailResponse `json:"details"`
	CreatedAt   string                        `json:"created_at"`
	UpdatedAt   string                        `json:"updated_at"`
}

type PurchaseOrderFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// --- Interface ---

type PurchaseOrderService interface {
	CreatePurchaseOrder(ctx context.Context, p Principal, req CreatePurchaseOrderRequest) (*PurchaseOrderResponse, error)
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrderResponse, error)
	ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]PurchaseOrderResponse, int64, error)
	TransitionPurchaseOrder(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error)
	GetApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error)
}

type purchaseOrderService struct {
	repo      repository.PurchaseOrderRepository
	canvases  repository.CanvasRepository
	orders    repository.OrderRepository
	suppliers repository.SupplierRepository
	numberer  *Numberer
	engine    *Engine
}

func NewPurchaseOrderService(
	repo repository.PurchaseOrderRepository,
	canvases repository.CanvasRepository,
	orders repository.OrderRepository,
	suppliers repository.SupplierRepository,
	numberer *Numberer,
	engine *Engine,
) PurchaseOrderService {
	return &purchaseOrderService{
		repo:      repo,
		canvases:  canvases,
		orders:    orders,
		suppliers: suppliers,
		numberer:  numberer,
		engine:    engine,
	}
}

// --- Implementation ---

// buildPurchaseOrderLines checks amount == quantity * unit_price on every line
func buildPurchaseOrderLines(lines []PurchaseOrderLineInput) ([]model.PurchaseOrderDetail, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, invalid("details", "at least one line is required")
	}

	details := make([]model.PurchaseOrderDetail, 0, len(lines))
	total := decimal.Zero
	for i, line := range lines {
		field := fmt.Sprintf("details[%d]", i)
		if line.Quantity <= 0 {
			return nil, decimal.Zero, invalid(field+".quantity", "must be greater than 0")
		}
		unitPrice, err := parseMoney(field+".unit_price", line.UnitPrice)
		if err != nil {
			return nil, decimal.Zero, err
		}
		amount, err := parseMoney(field+".amount", line.Amount)
		if err != nil {
			return nil, decimal.Zero, err
		}
		expected := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		if !amount.Equal(expected) {
			return nil, decimal.Zero, invalid(field+".amount",
				fmt.Sprintf("must equal quantity x unit_price (%s)", expected.String()))
		}

		details = append(details, model.PurchaseOrderDetail{
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			Description: line.Description,
			UnitPrice:   unitPrice,
			Amount:      amount,
		})
		total = total.Add(amount)
	}
	return details, total, nil
}

func (s *purchaseOrderService) CreatePurchaseOrder(ctx context.Context, p Principal, req CreatePurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	if err := requireRole(p, model.RolePurchasing); err != nil {
		return nil, err
	}
	details, total, err := buildPurchaseOrderLines(req.Details)
	if err != nil {
		return nil, err
	}
	orderID, err := parseOptionalID("order_id", req.OrderID)
	if err != nil {
		return nil, err
	}
	canvasID, err := parseOptionalID("canvas_id", req.CanvasID)
	if err != nil {
		return nil, err
	}
	supplierID, err := parseOptionalID("supplier_id", req.SupplierID)
	if err != nil {
		return nil, err
	}

	payee := req.Payee
	if supplierID != nil {
		supplier, err := s.suppliers.FindByID(ctx, *supplierID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, invalid("supplier_id", "supplier does not exist")
			}
			return nil, err
		}
		if payee == "" {
			payee = supplier.Name
		}
	}
	if payee == "" {
		return nil, invalid("payee", "is required when no supplier is given")
	}
	if orderID != nil {
		if _, err := s.orders.FindByID(ctx, *orderID); err != nil {
			if repository.IsNotFound(err) {
				return nil, invalid("order_id", "order does not exist")
			}
			return nil, err
		}
	}

	po := &model.PurchaseOrder{
		Status:      model.PODraft,
		OrderID:     orderID,
		CanvasID:    canvasID,
		SupplierID:  supplierID,
		Payee:       payee,
		TotalAmount: total,
		CreatedBy:   p.UserID,
		Details:     details,
	}

	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if canvasID != nil {
			if err := s.consumeCanvas(txCtx, p, *canvasID); err != nil {
				return err
			}
		}

		_, err := s.numberer.Issue(txCtx, DocPurchaseOrder, func(number string) error {
			po.PONo = number
			return s.repo.Create(txCtx, po)
		})
		if err != nil {
			return fmt.Errorf("failed to create purchase order: %w", err)
		}

		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogPurchaseOrder,
			SubjectType: model.LogPurchaseOrder,
			SubjectID:   po.ID,
			Actor:       &p.UserID,
			Message:     "purchase order " + po.PONo + " created",
			Properties:  map[string]any{"total_amount": formatMoney(total), "payee": payee},
		})
	})
	if err != nil {
		return nil, err
	}

	if canvasID != nil {
		s.engine.events.transitioned(workflow.CanvasFlow.Entity(), *canvasID, string(workflow.ActionCreatePO), model.CanvasPOCreated)
	}
	return s.GetPurchaseOrder(ctx, po.ID)
}

// consumeCanvas moves an approved canvas to poCreated. A canvas backs at most one purchase order.
func (s *purchaseOrderService) consumeCanvas(ctx context.Context, p Principal, canvasID uuid.UUID) error {
	canvas, err := s.canvases.LockByID(ctx, canvasID)
	if err != nil {
		if repository.IsNotFound(err) {
			return invalid("canvas_id", "canvas does not exist")
		}
		return err
	}
	exists, err := s.repo.ExistsForCanvas(ctx, canvasID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("canvas already has a purchase order: %w", ErrStateConflict)
	}

	t, err := workflow.CanvasFlow.Resolve(canvas.Status, workflow.ActionCreatePO, p.Role)
	if err != nil {
		return err
	}
	if err := s.canvases.UpdateStatus(ctx, canvasID, t.To); err != nil {
		return fmt.Errorf("failed to update canvas status: %w", err)
	}
	return s.engine.activity.Record(ctx, Activity{
		LogName:     model.LogCanvas,
		SubjectType: model.LogCanvas,
		SubjectID:   canvasID,
		Actor:       &p.UserID,
		Message:     fmt.Sprintf("canvas %s %s: %s -> %s", canvas.Title, t.Action, t.From, t.To),
	})
}

func (s *purchaseOrderService) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrderResponse, error) {
	po, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("purchase order", err)
	}
	return toPurchaseOrderResponse(po), nil
}

func (s *purchaseOrderService) ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]PurchaseOrderResponse, int64, error) {
	pos, total, err := s.repo.List(ctx, repository.ListFilter{
		Status: filter.Status,
		Search: filter.Search,
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	res := make([]PurchaseOrderResponse, 0, len(pos))
	for i := range pos {
		res = append(res, *toPurchaseOrderResponse(&pos[i]))
	}
	return res, total, nil
}

func (s *purchaseOrderService) TransitionPurchaseOrder(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error) {
	return s.engine.run(ctx, p, id, req, transitionPlan{
		machine: workflow.PurchaseOrderFlow,
		subject: model.SubjectPurchaseOrder,
		logName: model.LogPurchaseOrder,
		lock: func(txCtx context.Context) (string, error) {
			po, err := s.repo.LockByID(txCtx, id)
			if err != nil {
				return "", notFound("purchase order", err)
			}
			return po.Status, nil
		},
		apply: func(txCtx context.Context, t workflow.Transition) error {
			return s.repo.UpdateStatus(txCtx, id, t.To)
		},
	})
}

func (s *purchaseOrderService) GetApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound("purchase order", err)
	}
	return s.engine.history(ctx, model.SubjectPurchaseOrder, id)
}

// --- Helpers ---

func optionalIDString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	return lo.ToPtr(id.String())
}

func toPurchaseOrderResponse(po *model.PurchaseOrder) *PurchaseOrderResponse {
	res := &PurchaseOrderResponse{
		ID:          po.ID.String(),
		PONo:        po.PONo,
		Status:      po.Status,
		OrderID:     optionalIDString(po.OrderID),
		CanvasID:    optionalIDString(po.CanvasID),
		SupplierID:  optionalIDString(po.SupplierID),
		Payee:       po.Payee,
		TotalAmount: formatMoney(po.TotalAmount),
		CreatedBy:   po.CreatedBy.String(),
		CreatedAt:   po.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   po.UpdatedAt.Format(time.RFC3339),
		Details: lo.Map(po.Details, func(d model.PurchaseOrderDetail, _ int) PurchaseOrderDetailResponse {
			return PurchaseOrderDetailResponse{
				ID:          d.ID.String(),
				Quantity:    d.Quantity,
				Unit:        d.Unit,
				Description: d.Description,
				UnitPrice:   formatMoney(d.UnitPrice),
				Amount:      formatMoney(d.Amount),
			}
		}),
	}
	if po.Supplier != nil {
		res.Supplier = po.Supplier.Name
	}
	return res
}
