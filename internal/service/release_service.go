package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// --- DTOs ---

type ReleaseItem struct {
	DetailID string `json:"detail_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Notes    string `json:"notes"`
}

// ReleaseBatch is one delivery against an order, possibly touching several lines
type ReleaseBatch struct {
	ReleaseDate string        `json:"release_date" binding:"omitempty,datetime=2006-01-02"`
	Items       []ReleaseItem `json:"items" binding:"required,min=1,dive"`
}

type ReleaseResponse struct {
	ID               string `json:"id"`
	OrderDetailID    string `json:"order_detail_id"`
	QuantityReleased int    `json:"quantity_released"`
	ReleaseDate      string `json:"release_date"`
	ReleasedBy       string `json:"released_by"`
	Notes            string `json:"notes"`
	CreatedAt        string `json:"created_at"`
}

type ReleaseLineSummary struct {
	DetailID    string `json:"detail_id"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Ordered     int    `json:"ordered"`
	Released    int    `json:"released"`
	Remaining   int    `json:"remaining"`
}

type ReleaseSummaryResponse struct {
	OrderID  string               `json:"order_id"`
	OrderNo  string               `json:"order_no"`
	Status   string               `json:"status"`
	Complete bool                 `json:"complete"`
	Lines    []ReleaseLineSummary `json:"lines"`
}

type ReleaseResult struct {
	Status   string            `json:"status"`
	Releases []ReleaseResponse `json:"releases"`
}

// --- Interface ---

type ReleaseService interface {
	Release(ctx context.Context, p Principal, orderID uuid.UUID, batch ReleaseBatch) (*ReleaseResult, error)
	ReleaseSummary(ctx context.Context, orderID uuid.UUID) (*ReleaseSummaryResponse, error)
	ListReleases(ctx context.Context, orderID uuid.UUID) ([]ReleaseResponse, error)
}

type releaseService struct {
	orders repository.OrderRepository
	engine *Engine
	now    func() time.Time
}

func NewReleaseService(orders repository.OrderRepository, engine *Engine) ReleaseService {
	return &releaseService{orders: orders, engine: engine, now: time.Now}
}

// --- Implementation ---

func progressOf(details []model.RequestToOrderDetail, released map[uuid.UUID]int) map[uuid.UUID]workflow.LineProgress {
	progress := make(map[uuid.UUID]workflow.LineProgress, len(details))
	for _, d := range details {
		progress[d.ID] = workflow.LineProgress{
			DetailID:    d.ID,
			Description: d.Description,
			Ordered:     d.Quantity,
			Released:    released[d.ID],
		}
	}
	return progress
}

// Release records a batch of partial deliveries. The batch is validated as a whole
// against what is already released, then the order's status is recomputed.
func (s *releaseService) Release(ctx context.Context, p Principal, orderID uuid.UUID, batch ReleaseBatch) (*ReleaseResult, error) {
	if err := requireRole(p, model.RolePurchasing, model.RolePropertyCustodian); err != nil {
		return nil, err
	}

	releaseDate := s.now()
	if batch.ReleaseDate != "" {
		parsed, err := time.Parse("2006-01-02", batch.ReleaseDate)
		if err != nil {
			return nil, invalid("release_date", "must be formatted as YYYY-MM-DD")
		}
		releaseDate = parsed
	}

	lines := make([]workflow.ReleaseLine, 0, len(batch.Items))
	for i, item := range batch.Items {
		id, err := uuid.Parse(item.DetailID)
		if err != nil {
			return nil, invalid(fmt.Sprintf("items[%d].detail_id", i), "must be a valid UUID")
		}
		lines = append(lines, workflow.ReleaseLine{DetailID: id, Quantity: item.Quantity})
	}

	var (
		result     ReleaseResult
		total      int
		statusFrom string
	)
	err := s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.LockByID(txCtx, orderID)
		if err != nil {
			return notFound("order", err)
		}
		if order.Status == model.OrderRejected || order.Status == model.OrderCompleted {
			return fmt.Errorf("order is already %s: cannot release: %w", order.Status, ErrStateConflict)
		}
		statusFrom = order.Status

		released, err := s.orders.ReleasedByDetail(txCtx, orderID)
		if err != nil {
			return fmt.Errorf("failed to load releases: %w", err)
		}
		progress := progressOf(order.Details, released)

		if err := workflow.CheckReleaseBatch(progress, lines); err != nil {
			if errors.Is(err, workflow.ErrInvalidLine) {
				return invalid("items", err.Error())
			}
			return err
		}

		rows := make([]model.RequestToOrderRelease, 0, len(lines))
		for i, line := range lines {
			rows = append(rows, model.RequestToOrderRelease{
				OrderID:          orderID,
				OrderDetailID:    line.DetailID,
				QuantityReleased: line.Quantity,
				ReleaseDate:      releaseDate,
				ReleasedBy:       p.UserID,
				Notes:            batch.Items[i].Notes,
			})
		}
		if err := s.orders.CreateReleases(txCtx, rows); err != nil {
			return fmt.Errorf("failed to record releases: %w", err)
		}

		summary := make([]string, 0, len(rows))
		for _, row := range rows {
			line := progress[row.OrderDetailID]
			summary = append(summary, fmt.Sprintf("%d x %s", row.QuantityReleased, line.Description))
			total += row.QuantityReleased

			err := s.engine.activity.Record(txCtx, Activity{
				LogName:     model.LogRelease,
				SubjectType: model.LogOrder,
				SubjectID:   orderID,
				Actor:       &p.UserID,
				Message:     fmt.Sprintf("released %d of %q", row.QuantityReleased, line.Description),
				Properties: map[string]any{
					"release_id":      row.ID.String(),
					"order_detail_id": row.OrderDetailID.String(),
					"quantity":        row.QuantityReleased,
					"release_date":    releaseDate.Format("2006-01-02"),
				},
			})
			if err != nil {
				return err
			}

			line.Released += row.QuantityReleased
			progress[row.OrderDetailID] = line
		}

		entry := model.ApprovalLog{
			UserID:  p.UserID,
			Status:  order.Status,
			Remarks: "Released " + strings.Join(summary, ", "),
		}
		if err := s.engine.approvals.Append(txCtx, model.SubjectOrder, orderID, entry); err != nil {
			return fmt.Errorf("failed to append approval: %w", err)
		}

		// completion is derived from the whole ledger and writes no approval row
		next := workflow.RecomputeOrderStatus(order.Status, lo.Values(progress))
		if next != order.Status {
			if err := s.orders.UpdateStatus(txCtx, orderID, next); err != nil {
				return fmt.Errorf("failed to update order status: %w", err)
			}
		}

		result = ReleaseResult{
			Status:   next,
			Releases: lo.Map(rows, func(r model.RequestToOrderRelease, _ int) ReleaseResponse { return toReleaseResponse(r) }),
		}
		return nil
	})
	if err != nil {
		var conflict *workflow.QuantityConflictError
		if errors.As(err, &conflict) {
			s.engine.events.released(conflict.Requested, false)
		}
		return nil, err
	}

	s.engine.events.released(total, true)
	if result.Status != statusFrom {
		s.engine.events.transitioned(workflow.OrderFlow.Entity(), orderID, "release", result.Status)
	}
	return &result, nil
}

func (s *releaseService) ReleaseSummary(ctx context.Context, orderID uuid.UUID) (*ReleaseSummaryResponse, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFound("order", err)
	}
	released, err := s.orders.ReleasedByDetail(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load releases: %w", err)
	}

	res := &ReleaseSummaryResponse{
		OrderID:  order.ID.String(),
		OrderNo:  order.OrderNo,
		Status:   order.Status,
		Complete: len(order.Details) > 0,
	}
	for _, d := range order.Details {
		line := ReleaseLineSummary{
			DetailID:    d.ID.String(),
			Description: d.Description,
			Unit:        d.Unit,
			Ordered:     d.Quantity,
			Released:    released[d.ID],
			Remaining:   d.Quantity - released[d.ID],
		}
		if line.Remaining != 0 {
			res.Complete = false
		}
		res.Lines = append(res.Lines, line)
	}
	return res, nil
}

func (s *releaseService) ListReleases(ctx context.Context, orderID uuid.UUID) ([]ReleaseResponse, error) {
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, notFound("order", err)
	}
	rows, err := s.orders.ListReleases(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	return lo.Map(rows, func(r model.RequestToOrderRelease, _ int) ReleaseResponse { return toReleaseResponse(r) }), nil
}

func toReleaseResponse(r model.RequestToOrderRelease) ReleaseResponse {
	return ReleaseResponse{
		ID:               r.ID.String(),
		OrderDetailID:    r.OrderDetailID.String(),
		QuantityReleased: r.QuantityReleased,
		ReleaseDate:      r.ReleaseDate.Format("2006-01-02"),
		ReleasedBy:       r.ReleasedBy.String(),
		Notes:            r.Notes,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
}
