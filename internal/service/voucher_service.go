package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/notification"
	"procurement/internal/printing"
	"procurement/internal/repository"
	"procurement/internal/storage"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type VoucherLineInput struct {
	AccountID   string `json:"account_id" binding:"omitempty,uuid"`
	ChargingTag string `json:"charging_tag"`
	Amount      string `json:"amount" binding:"required,decimal"`
}

type CreateVoucherRequest struct {
	PurchaseOrderID string             `json:"purchase_order_id" binding:"omitempty,uuid"`
	Payee           string             `json:"payee"`
	Particulars     string             `json:"particulars"`
	CheckAmount     string             `json:"check_amount" binding:"required,decimal"`
	Details         []VoucherLineInput `json:"details" binding:"required,min=1,dive"`
}

type VoucherDetailResponse struct {
	ID          string  `json:"id"`
	AccountID   *string `json:"account_id"`
	AccountCode string  `json:"account_code,omitempty"`
	AccountName string  `json:"account_name,omitempty"`
	ChargingTag string  `json:"charging_tag"`
	Amount      string  `json:"amount"`
}

type VoucherResponse struct {
	ID              string                  `json:"id"`
	VoucherNo       string                  `json:"voucher_no"`
	Status          string                  `json:"status"`
	PurchaseOrderID *string                 `json:"purchase_order_id"`
	PONo            string                  `json:"po_no,omitempty"`
	Payee           string                  `json:"payee"`
	Particulars     string                  `json:"particulars"`
	CheckNo         string                  `json:"check_no"`
	CheckAmount     string                  `json:"check_amount"`
	CreatedBy       string                  `json:"created_by"`
	Details         []VoucherDetailResponse `json:"details"`
	CreatedAt       string                  `json:"created_at"`
	UpdatedAt       string                  `json:"updated_at"`
}

type VoucherFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// --- Interface ---

type VoucherService interface {
	CreateVoucher(ctx context.Context, p Principal, req CreateVoucherRequest) (*VoucherResponse, error)
	GetVoucher(ctx context.Context, id uuid.UUID) (*VoucherResponse, error)
	ListVouchers(ctx context.Context, filter VoucherFilter) ([]VoucherResponse, int64, error)
	TransitionVoucher(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error)
	GetApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error)
	// RenderPDF prints the voucher and keeps a copy in the file store
	RenderPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error)
}

type voucherService struct {
	repo      repository.VoucherRepository
	pos       repository.PurchaseOrderRepository
	accounts  repository.AccountRepository
	suppliers repository.SupplierRepository
	numberer  *Numberer
	engine    *Engine
	renderer  printing.PDFRenderer
	files     storage.FileStore
	log       *zap.Logger
}

func NewVoucherService(
	repo repository.VoucherRepository,
	pos repository.PurchaseOrderRepository,
	accounts repository.AccountRepository,
	suppliers repository.SupplierRepository,
	numberer *Numberer,
	engine *Engine,
	renderer printing.PDFRenderer,
	files storage.FileStore,
	log *zap.Logger,
) VoucherService {
	if log == nil {
		log = zap.NewNop()
	}
	return &voucherService{
		repo:      repo,
		pos:       pos,
		accounts:  accounts,
		suppliers: suppliers,
		numberer:  numberer,
		engine:    engine,
		renderer:  renderer,
		files:     files,
		log:       log,
	}
}

// --- Implementation ---

// buildVoucherLines parses the charging lines and checks the check amount against their
// sum. The check happens at creation only; later edits to lines are not supported.
func (s *voucherService) buildVoucherLines(ctx context.Context, req CreateVoucherRequest) ([]model.VoucherDetail, decimal.Decimal, error) {
	checkAmount, err := parseMoney("check_amount", req.CheckAmount)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if len(req.Details) == 0 {
		return nil, decimal.Zero, invalid("details", "at least one line is required")
	}

	details := make([]model.VoucherDetail, 0, len(req.Details))
	sum := decimal.Zero
	var accountIDs []uuid.UUID
	for i, line := range req.Details {
		field := fmt.Sprintf("details[%d]", i)
		amount, err := parseMoney(field+".amount", line.Amount)
		if err != nil {
			return nil, decimal.Zero, err
		}
		accountID, err := parseOptionalID(field+".account_id", line.AccountID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if accountID != nil {
			accountIDs = append(accountIDs, *accountID)
		}
		details = append(details, model.VoucherDetail{
			AccountID:   accountID,
			ChargingTag: line.ChargingTag,
			Amount:      amount,
		})
		sum = sum.Add(amount)
	}

	if !withinTolerance(checkAmount, sum) {
		return nil, decimal.Zero, invalid("check_amount",
			fmt.Sprintf("must equal the sum of detail amounts (%s)", formatMoney(sum)))
	}

	accountIDs = lo.Uniq(accountIDs)
	if len(accountIDs) > 0 {
		found, err := s.accounts.CountByIDs(ctx, accountIDs)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to check accounts: %w", err)
		}
		if found != int64(len(accountIDs)) {
			return nil, decimal.Zero, invalid("details", "references an unknown account")
		}
	}
	return details, checkAmount, nil
}

func (s *voucherService) CreateVoucher(ctx context.Context, p Principal, req CreateVoucherRequest) (*VoucherResponse, error) {
	if err := requireRole(p, model.RoleAccounting); err != nil {
		return nil, err
	}
	details, checkAmount, err := s.buildVoucherLines(ctx, req)
	if err != nil {
		return nil, err
	}
	poID, err := parseOptionalID("purchase_order_id", req.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	if poID == nil && req.Payee == "" {
		return nil, invalid("payee", "is required when no purchase order is given")
	}

	voucher := &model.Voucher{
		Status:          model.VoucherPending,
		PurchaseOrderID: poID,
		Payee:           req.Payee,
		Particulars:     req.Particulars,
		CheckAmount:     checkAmount,
		CreatedBy:       p.UserID,
		Details:         details,
	}

	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if poID != nil {
			po, err := s.pos.LockByID(txCtx, *poID)
			if err != nil {
				if repository.IsNotFound(err) {
					return invalid("purchase_order_id", "purchase order does not exist")
				}
				return err
			}
			if po.Status != model.POApproved && po.Status != model.POCompleted {
				return fmt.Errorf("purchase order is %s, not approved: %w", po.Status, ErrStateConflict)
			}
			exists, err := s.repo.ExistsForPurchaseOrder(txCtx, *poID)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("purchase order already has a voucher: %w", ErrStateConflict)
			}
			if voucher.Payee == "" {
				voucher.Payee = po.Payee
			}
		}

		_, err := s.numberer.Issue(txCtx, DocVoucher, func(number string) error {
			voucher.VoucherNo = number
			return s.repo.Create(txCtx, voucher)
		})
		if err != nil {
			return fmt.Errorf("failed to create voucher: %w", err)
		}

		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogVoucher,
			SubjectType: model.LogVoucher,
			SubjectID:   voucher.ID,
			Actor:       &p.UserID,
			Message:     "voucher " + voucher.VoucherNo + " created",
			Properties:  map[string]any{"check_amount": formatMoney(checkAmount), "payee": voucher.Payee},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetVoucher(ctx, voucher.ID)
}

func (s *voucherService) GetVoucher(ctx context.Context, id uuid.UUID) (*VoucherResponse, error) {
	voucher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("voucher", err)
	}
	return toVoucherResponse(voucher), nil
}

func (s *voucherService) ListVouchers(ctx context.Context, filter VoucherFilter) ([]VoucherResponse, int64, error) {
	vouchers, total, err := s.repo.List(ctx, repository.ListFilter{
		Status: filter.Status,
		Search: filter.Search,
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vouchers: %w", err)
	}
	res := make([]VoucherResponse, 0, len(vouchers))
	for i := range vouchers {
		res = append(res, *toVoucherResponse(&vouchers[i]))
	}
	return res, total, nil
}

func (s *voucherService) TransitionVoucher(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error) {
	action := workflow.Action(req.Action)
	if action == workflow.ActionPrepareCheck && req.CheckNo == "" {
		return nil, invalid("check_no", "is required to prepare the check")
	}

	res, err := s.engine.run(ctx, p, id, req, transitionPlan{
		machine: workflow.VoucherFlow,
		subject: model.SubjectVoucher,
		logName: model.LogVoucher,
		lock: func(txCtx context.Context) (string, error) {
			voucher, err := s.repo.LockByID(txCtx, id)
			if err != nil {
				return "", notFound("voucher", err)
			}
			return voucher.Status, nil
		},
		apply: func(txCtx context.Context, t workflow.Transition) error {
			if t.Action == workflow.ActionPrepareCheck {
				if err := s.repo.UpdateCheckNo(txCtx, id, req.CheckNo); err != nil {
					return fmt.Errorf("failed to record check number: %w", err)
				}
			}
			return s.repo.UpdateStatus(txCtx, id, t.To)
		},
	})
	if err != nil {
		return nil, err
	}

	if res.Status == model.VoucherPaid {
		s.notifyPayee(ctx, id)
	}
	return res, nil
}

// notifyPayee emails the supplier behind the voucher's purchase order, when there is one
func (s *voucherService) notifyPayee(ctx context.Context, id uuid.UUID) {
	voucher, err := s.repo.FindByID(ctx, id)
	if err != nil || voucher.PurchaseOrder == nil || voucher.PurchaseOrder.SupplierID == nil {
		return
	}
	supplier, err := s.suppliers.FindByID(ctx, *voucher.PurchaseOrder.SupplierID)
	if err != nil || supplier.Email == "" {
		return
	}
	s.engine.events.notify(ctx, notification.Message{
		To:      supplier.Email,
		Subject: "Payment released for " + voucher.PurchaseOrder.PONo,
		Body: fmt.Sprintf("Voucher %s for %s has been paid with check %s.",
			voucher.VoucherNo, formatMoney(voucher.CheckAmount), voucher.CheckNo),
	})
}

func (s *voucherService) GetApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound("voucher", err)
	}
	return s.engine.history(ctx, model.SubjectVoucher, id)
}

func (s *voucherService) RenderPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	if s.renderer == nil {
		return nil, "", fmt.Errorf("voucher printing is not configured")
	}
	voucher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, "", notFound("voucher", err)
	}
	history, err := s.engine.history(ctx, model.SubjectVoucher, id)
	if err != nil {
		return nil, "", err
	}

	pdf, err := printing.RenderVoucher(ctx, s.renderer, voucherDocument(voucher, history))
	if err != nil {
		return nil, "", fmt.Errorf("failed to render voucher: %w", err)
	}

	filename := voucher.VoucherNo + ".pdf"
	if s.files != nil {
		key, err := s.files.Put(ctx, "vouchers/"+filename, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf")
		if err != nil {
			s.log.Warn("failed to archive voucher pdf", zap.String("voucher_no", voucher.VoucherNo), zap.Error(err))
		} else {
			s.log.Debug("voucher pdf archived", zap.String("key", key))
		}
	}
	return pdf, filename, nil
}

// --- Helpers ---

func voucherDocument(v *model.Voucher, history []ApprovalResponse) printing.VoucherDocument {
	doc := printing.VoucherDocument{
		VoucherNo:   v.VoucherNo,
		Date:        v.CreatedAt,
		Status:      v.Status,
		Payee:       v.Payee,
		Particulars: v.Particulars,
		CheckNo:     v.CheckNo,
		CheckAmount: formatMoney(v.CheckAmount),
		Lines: lo.Map(v.Details, func(d model.VoucherDetail, _ int) printing.VoucherLine {
			line := printing.VoucherLine{ChargingTag: d.ChargingTag, Amount: formatMoney(d.Amount)}
			if d.Account != nil {
				line.AccountCode = d.Account.Code
				line.AccountName = d.Account.Name
			}
			return line
		}),
		Signatories: lo.Map(history, func(a ApprovalResponse, _ int) printing.Signatory {
			return printing.Signatory{Name: a.Username, Status: a.Status, Date: a.ApprovedAt}
		}),
	}
	if v.PurchaseOrder != nil {
		doc.PONo = v.PurchaseOrder.PONo
	}
	return doc
}

func toVoucherResponse(v *model.Voucher) *VoucherResponse {
	res := &VoucherResponse{
		ID:              v.ID.String(),
		VoucherNo:       v.VoucherNo,
		Status:          v.Status,
		PurchaseOrderID: optionalIDString(v.PurchaseOrderID),
		Payee:           v.Payee,
		Particulars:     v.Particulars,
		CheckNo:         v.CheckNo,
		CheckAmount:     formatMoney(v.CheckAmount),
		CreatedBy:       v.CreatedBy.String(),
		CreatedAt:       v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       v.UpdatedAt.Format(time.RFC3339),
		Details: lo.Map(v.Details, func(d model.VoucherDetail, _ int) VoucherDetailResponse {
			line := VoucherDetailResponse{
				ID:          d.ID.String(),
				AccountID:   optionalIDString(d.AccountID),
				ChargingTag: d.ChargingTag,
				Amount:      formatMoney(d.Amount),
			}
			if d.Account != nil {
				line.AccountCode = d.Account.Code
				line.AccountName = d.Account.Name
			}
			return line
		}),
	}
	if v.PurchaseOrder != nil {
		res.PONo = v.PurchaseOrder.PONo
	}
	return res
}
