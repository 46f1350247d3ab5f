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
)

// --- DTOs ---

// CreateOrderRequest consolidates approved request lines and/or free-form lines
type CreateOrderRequest struct {
	Remarks          string             `json:"remarks"`
	RequestDetailIDs []string           `json:"request_detail_ids" binding:"omitempty,dive,uuid"`
	Lines            []RequestLineInput `json:"lines" binding:"omitempty,dive"`
}

type OrderDetailResponse struct {
	ID              string  `json:"id"`
	RequestDetailID *string `json:"request_detail_id"`
	Quantity        int     `json:"quantity"`
	Unit            string  `json:"unit"`
	Description     string  `json:"description"`
	Released        int     `json:"released"`
	Remaining       int     `json:"remaining"`
}

type OrderResponse struct {
	ID        string                `json:"id"`
	OrderNo   string                `json:"order_no"`
	Status    string                `json:"status"`
	CreatedBy string                `json:"created_by"`
	Creator   string                `json:"creator"`
	Remarks   string                `json:"remarks"`
	Details   []OrderDetailResponse `json:"details"`
	CreatedAt string                `json:"created_at"`
	UpdatedAt string                `json:"updated_at"`
}

type OrderFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// --- Interface ---

type OrderService interface {
	CreateOrder(ctx context.Context, p Principal, req CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderResponse, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]OrderResponse, int64, error)
	TransitionOrder(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error)
	GetApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error)
}

type orderService struct {
	repo     repository.OrderRepository
	requests repository.RequestRepository
	numberer *Numberer
	engine   *Engine
}

func NewOrderService(
	repo repository.OrderRepository,
	requests repository.RequestRepository,
	numberer *Numberer,
	engine *Engine,
) OrderService {
	return &orderService{repo: repo, requests: requests, numberer: numberer, engine: engine}
}

// --- Implementation ---

func (s *orderService) CreateOrder(ctx context.Context, p Principal, req CreateOrderRequest) (*OrderResponse, error) {
	if err := requireRole(p, model.RolePurchasing); err != nil {
		return nil, err
	}
	if len(req.RequestDetailIDs) == 0 && len(req.Lines) == 0 {
		return nil, invalid("lines", "at least one request line or free-form line is required")
	}
	if len(req.Lines) > 0 {
		if err := validateRequestLines(req.Lines); err != nil {
			return nil, err
		}
	}

	detailIDs := make([]uuid.UUID, 0, len(req.RequestDetailIDs))
	for _, raw := range req.RequestDetailIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, invalid("request_detail_ids", "must contain valid UUIDs")
		}
		detailIDs = append(detailIDs, id)
	}
	if len(lo.Uniq(detailIDs)) != len(detailIDs) {
		return nil, invalid("request_detail_ids", "must not repeat a line")
	}

	order := &model.RequestToOrder{
		Status:    model.OrderPending,
		CreatedBy: p.UserID,
		Remarks:   req.Remarks,
	}

	var advanced []uuid.UUID
	err := s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		sourced, err := s.consumeRequestLines(txCtx, detailIDs)
		if err != nil {
			return err
		}
		order.Details = append(sourced, lo.Map(req.Lines, func(l RequestLineInput, _ int) model.RequestToOrderDetail {
			return model.RequestToOrderDetail{Quantity: l.Quantity, Unit: l.Unit, Description: l.Description}
		})...)

		_, err = s.numberer.Issue(txCtx, DocOrder, func(number string) error {
			order.OrderNo = number
			return s.repo.Create(txCtx, order)
		})
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		advanced, err = s.advanceRequests(txCtx, p, order, sourced)
		if err != nil {
			return err
		}

		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogOrder,
			SubjectType: model.LogOrder,
			SubjectID:   order.ID,
			Actor:       &p.UserID,
			Message:     "order " + order.OrderNo + " created",
			Properties: map[string]any{
				"lines":         len(order.Details),
				"request_lines": len(sourced),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	for _, requestID := range advanced {
		s.engine.events.transitioned(workflow.RequestFlow.Entity(), requestID, string(workflow.ActionOrder), model.RequestStatusToOrder)
	}
	return s.GetOrder(ctx, order.ID)
}

// consumeRequestLines checks the lines are orderable and tags them forPurchase
func (s *orderService) consumeRequestLines(ctx context.Context, ids []uuid.UUID) ([]model.RequestToOrderDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// the tag check must see the committed tag of a concurrent order
	details, err := s.requests.LockDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load request lines: %w", err)
	}
	byID := lo.KeyBy(details, func(d model.RequestDetail) uuid.UUID { return d.ID })

	lines := make([]model.RequestToOrderDetail, 0, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return nil, invalid("request_detail_ids", fmt.Sprintf("request line %s does not exist", id))
		}
		if d.Tagging != nil && *d.Tagging == model.TaggingForPurchase {
			return nil, fmt.Errorf("request line %q is already ordered: %w", d.Description, ErrStateConflict)
		}
		detailID := d.ID
		lines = append(lines, model.RequestToOrderDetail{
			RequestDetailID: &detailID,
			Quantity:        d.Quantity,
			Unit:            d.Unit,
			Description:     d.Description,
		})
	}

	if err := s.requests.TagDetails(ctx, ids, model.TaggingForPurchase); err != nil {
		return nil, fmt.Errorf("failed to tag request lines: %w", err)
	}
	return lines, nil
}

// advanceRequests moves every approved parent request of the consumed lines to to_order.
// Parents already in to_order stay there; any other status blocks the order.
func (s *orderService) advanceRequests(ctx context.Context, p Principal, order *model.RequestToOrder, lines []model.RequestToOrderDetail) ([]uuid.UUID, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	ids := lo.FilterMap(lines, func(l model.RequestToOrderDetail, _ int) (uuid.UUID, bool) {
		if l.RequestDetailID == nil {
			return uuid.Nil, false
		}
		return *l.RequestDetailID, true
	})
	details, err := s.requests.FindDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load request lines: %w", err)
	}
	var advanced []uuid.UUID
	parents := lo.Uniq(lo.Map(details, func(d model.RequestDetail, _ int) uuid.UUID { return d.RequestID }))

	for _, requestID := range parents {
		request, err := s.requests.LockByID(ctx, requestID)
		if err != nil {
			return nil, notFound("request", err)
		}
		if request.Status == model.RequestStatusToOrder {
			continue
		}

		t, err := workflow.RequestFlow.Resolve(request.Status, workflow.ActionOrder, p.Role)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", request.RequestNo, err)
		}
		if err := s.requests.UpdateStatus(ctx, requestID, t.To); err != nil {
			return nil, fmt.Errorf("failed to update request status: %w", err)
		}
		entry := model.ApprovalLog{UserID: p.UserID, Status: t.To, Remarks: "ordered in " + order.OrderNo}
		if err := s.engine.approvals.Append(ctx, model.SubjectRequest, requestID, entry); err != nil {
			return nil, fmt.Errorf("failed to append approval: %w", err)
		}
		err = s.engine.activity.Record(ctx, Activity{
			LogName:     model.LogRequest,
			SubjectType: model.LogRequest,
			SubjectID:   requestID,
			Actor:       &p.UserID,
			Message:     fmt.Sprintf("request %s order: %s -> %s", request.RequestNo, t.From, t.To),
			Properties:  map[string]any{"order_id": order.ID.String(), "order_no": order.OrderNo},
		})
		if err != nil {
			return nil, err
		}
		advanced = append(advanced, requestID)
	}
	return advanced, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("order", err)
	}
	released, err := s.repo.ReleasedByDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load releases: %w", err)
	}
	return toOrderResponse(order, released), nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderFilter) ([]OrderResponse, int64, error) {
	orders, total, err := s.repo.List(ctx, repository.ListFilter{
		Status: filter.Status,
		Search: filter.Search,
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	res := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		res = append(res, *toOrderResponse(&orders[i], nil))
	}
	return res, total, nil
}

func (s *orderService) TransitionOrder(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error) {
	return s.engine.run(ctx, p, id, req, transitionPlan{
		machine: workflow.OrderFlow,
		subject: model.SubjectOrder,
		logName: model.LogOrder,
		lock: func(txCtx context.Context) (string, error) {
			order, err := s.repo.LockByID(txCtx, id)
			if err != nil {
				return "", notFound("order", err)
			}
			return order.Status, nil
		},
		apply: func(txCtx context.Context, t workflow.Transition) error {
			return s.repo.UpdateStatus(txCtx, id, t.To)
		},
	})
}

func (s *orderService) GetApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound("order", err)
	}
	return s.engine.history(ctx, model.SubjectOrder, id)
}

// --- Helpers ---

func toOrderResponse(o *model.RequestToOrder, released map[uuid.UUID]int) *OrderResponse {
	res := &OrderResponse{
		ID:        o.ID.String(),
		OrderNo:   o.OrderNo,
		Status:    o.Status,
		CreatedBy: o.CreatedBy.String(),
		Remarks:   o.Remarks,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
		UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
	}
	if o.Creator != nil {
		res.Creator = o.Creator.Username
	}
	res.Details = lo.Map(o.Details, func(d model.RequestToOrderDetail, _ int) OrderDetailResponse {
		var source *string
		if d.RequestDetailID != nil {
			source = lo.ToPtr(d.RequestDetailID.String())
		}
		return OrderDetailResponse{
			ID:              d.ID.String(),
			RequestDetailID: source,
			Quantity:        d.Quantity,
			Unit:            d.Unit,
			Description:     d.Description,
			Released:        released[d.ID],
			Remaining:       d.Quantity - released[d.ID],
		}
	})
	return res
}
