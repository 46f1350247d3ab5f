package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"
)

// --- DTOs ---

type FamilySummary struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

type DashboardSummary struct {
	Families           map[string]FamilySummary `json:"families"`
	VouchersPaid       string                   `json:"vouchers_paid"`
	VouchersPaidMonth  string                   `json:"vouchers_paid_month"`
	PettyCashReleased  string                   `json:"petty_cash_released"`
	PurchaseOrderValue string                   `json:"purchase_order_value"`
	GeneratedAt        string                   `json:"generated_at"`
}

// --- Interface ---

type DashboardService interface {
	Summary(ctx context.Context) (*DashboardSummary, error)
}

type dashboardService struct {
	repo repository.DashboardRepository
	now  func() time.Time
}

func NewDashboardService(repo repository.DashboardRepository) DashboardService {
	return &dashboardService{repo: repo, now: time.Now}
}

// family name -> table
var dashboardTables = []struct{ family, table string }{
	{"requests", "requests"},
	{"orders", "request_to_orders"},
	{"canvases", "canvases"},
	{"purchase_orders", "purchase_orders"},
	{"vouchers", "vouchers"},
	{"petty_cash", "petty_cashes"},
}

// --- Implementation ---

func (s *dashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	now := s.now()
	res := &DashboardSummary{
		Families:    make(map[string]FamilySummary, len(dashboardTables)),
		GeneratedAt: now.Format(time.RFC3339),
	}

	for _, t := range dashboardTables {
		counts, err := s.repo.StatusCounts(ctx, t.table)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t.family, err)
		}
		summary := FamilySummary{ByStatus: make(map[string]int64, len(counts))}
		for _, c := range counts {
			summary.ByStatus[c.Status] = c.Count
			summary.Total += c.Count
		}
		res.Families[t.family] = summary
	}

	paid, err := s.repo.SumByStatus(ctx, "vouchers", "check_amount", []string{model.VoucherPaid}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to sum paid vouchers: %w", err)
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	paidMonth, err := s.repo.SumByStatus(ctx, "vouchers", "check_amount", []string{model.VoucherPaid}, monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to sum paid vouchers: %w", err)
	}
	pettyCash, err := s.repo.SumByStatus(ctx, "petty_cashes", "amount", []string{
		model.PettyCashReleased, model.PettyCashForLiquidation, model.PettyCashApprovedLiquidation,
	}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to sum petty cash: %w", err)
	}
	poValue, err := s.repo.SumByStatus(ctx, "purchase_orders", "total_amount", []string{model.POApproved, model.POCompleted}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to sum purchase orders: %w", err)
	}

	res.VouchersPaid = formatMoney(paid)
	res.VouchersPaidMonth = formatMoney(paidMonth)
	res.PettyCashReleased = formatMoney(pettyCash)
	res.PurchaseOrderValue = formatMoney(poValue)
	return res, nil
}
