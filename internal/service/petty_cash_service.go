package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/storage"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type PettyCashItemInput struct {
	Particulars string `json:"particulars" binding:"required"`
	Amount      string `json:"amount" binding:"required,decimal"`
}

type DistributionInput struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	Amount    string `json:"amount" binding:"required,decimal"`
}

type CreatePettyCashRequest struct {
	Purpose       string               `json:"purpose" binding:"required"`
	Items         []PettyCashItemInput `json:"items" binding:"required,min=1,dive"`
	Distributions []DistributionInput  `json:"distributions" binding:"required,min=1,dive"`
}

type PettyCashItemResponse struct {
	ID          string `json:"id"`
	Particulars string `json:"particulars"`
	Amount      string `json:"amount"`
	HasReceipt  bool   `json:"has_receipt"`
}

type DistributionResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	AccountCode string `json:"account_code,omitempty"`
	AccountName string `json:"account_name,omitempty"`
	Amount      string `json:"amount"`
}

type PettyCashResponse struct {
	ID            string                  `json:"id"`
	PCVNo         string                  `json:"pcv_no"`
	Status        string                  `json:"status"`
	RequestedBy   string                  `json:"requested_by"`
	Requester     string                  `json:"requester"`
	CustodianID   *string                 `json:"custodian_id"`
	Purpose       string                  `json:"purpose"`
	Amount        string                  `json:"amount"`
	ReleasedAt    *string                 `json:"released_at"`
	Items         []PettyCashItemResponse `json:"items"`
	Distributions []DistributionResponse  `json:"distributions"`
	CreatedAt     string                  `json:"created_at"`
	UpdatedAt     string                  `json:"updated_at"`
}

type PettyCashFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type CreateFundRequest struct {
	CustodianID   string `json:"custodian_id" binding:"required,uuid"`
	InitialAmount string `json:"initial_amount" binding:"omitempty,decimal"`
}

type ReplenishFundRequest struct {
	Amount  string `json:"amount" binding:"required,decimal"`
	Remarks string `json:"remarks"`
}

type FundEntryResponse struct {
	ID           string  `json:"id"`
	PettyCashID  *string `json:"petty_cash_id"`
	EntryType    string  `json:"entry_type"`
	Amount       string  `json:"amount"`
	BalanceAfter string  `json:"balance_after"`
	UserID       string  `json:"user_id"`
	Remarks      string  `json:"remarks"`
	CreatedAt    string  `json:"created_at"`
}

type FundResponse struct {
	ID          string `json:"id"`
	CustodianID string `json:"custodian_id"`
	Custodian   string `json:"custodian"`
	FundAmount  string `json:"fund_amount"`
	UpdatedAt   string `json:"updated_at"`
}

type FundBalanceResponse struct {
	FundResponse
	Entries []FundEntryResponse `json:"entries"`
	Total   int64               `json:"total"`
}

// --- Interface ---

type PettyCashService interface {
	CreatePettyCash(ctx context.Context, p Principal, req CreatePettyCashRequest) (*PettyCashResponse, error)
	GetPettyCash(ctx context.Context, p Principal, id uuid.UUID) (*PettyCashResponse, error)
	ListPettyCash(ctx context.Context, p Principal, filter PettyCashFilter) ([]PettyCashResponse, int64, error)
	TransitionPettyCash(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error)
	GetApprovals(ctx context.Context, p Principal, id uuid.UUID) ([]ApprovalResponse, error)
	UploadReceipt(ctx context.Context, p Principal, id, itemID uuid.UUID, file FileUpload) (*PettyCashItemResponse, error)

	CreateFund(ctx context.Context, p Principal, req CreateFundRequest) (*FundResponse, error)
	Replenish(ctx context.Context, p Principal, custodianID uuid.UUID, req ReplenishFundRequest) (*FundResponse, error)
	Balance(ctx context.Context, custodianID uuid.UUID, page, limit int) (*FundBalanceResponse, error)
	ListFunds(ctx context.Context) ([]FundResponse, error)
}

type pettyCashService struct {
	repo     repository.PettyCashRepository
	funds    repository.FundRepository
	accounts repository.AccountRepository
	users    repository.UserRepository
	files    storage.FileStore
	numberer *Numberer
	engine   *Engine
	log      *zap.Logger
	now      func() time.Time
}

func NewPettyCashService(
	repo repository.PettyCashRepository,
	funds repository.FundRepository,
	accounts repository.AccountRepository,
	users repository.UserRepository,
	files storage.FileStore,
	numberer *Numberer,
	engine *Engine,
	log *zap.Logger,
) PettyCashService {
	if log == nil {
		log = zap.NewNop()
	}
	return &pettyCashService{
		repo:     repo,
		funds:    funds,
		accounts: accounts,
		users:    users,
		files:    files,
		numberer: numberer,
		engine:   engine,
		log:      log,
		now:      time.Now,
	}
}

// --- Implementation ---

func (s *pettyCashService) CreatePettyCash(ctx context.Context, p Principal, req CreatePettyCashRequest) (*PettyCashResponse, error) {
	if len(req.Items) == 0 {
		return nil, invalid("items", "at least one item is required")
	}
	if len(req.Distributions) == 0 {
		return nil, invalid("distributions", "at least one distribution is required")
	}

	total := decimal.Zero
	items := make([]model.PettyCashItem, 0, len(req.Items))
	for i, in := range req.Items {
		amount, err := parseMoney(fmt.Sprintf("items[%d].amount", i), in.Amount)
		if err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			return nil, invalid(fmt.Sprintf("items[%d].amount", i), "must be greater than zero")
		}
		items = append(items, model.PettyCashItem{Particulars: in.Particulars, Amount: amount})
		total = total.Add(amount)
	}

	distributed := decimal.Zero
	dists := make([]model.DistributionExpense, 0, len(req.Distributions))
	for i, in := range req.Distributions {
		field := fmt.Sprintf("distributions[%d]", i)
		accountID, err := uuid.Parse(in.AccountID)
		if err != nil {
			return nil, invalid(field+".account_id", "must be a valid UUID")
		}
		amount, err := parseMoney(field+".amount", in.Amount)
		if err != nil {
			return nil, err
		}
		dists = append(dists, model.DistributionExpense{AccountID: accountID, Amount: amount})
		distributed = distributed.Add(amount)
	}
	if !withinTolerance(total, distributed) {
		return nil, invalid("distributions",
			fmt.Sprintf("must sum to the petty cash amount (%s)", formatMoney(total)))
	}

	accountIDs := lo.Uniq(lo.Map(dists, func(d model.DistributionExpense, _ int) uuid.UUID { return d.AccountID }))
	found, err := s.accounts.CountByIDs(ctx, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check accounts: %w", err)
	}
	if found != int64(len(accountIDs)) {
		return nil, invalid("distributions", "references an unknown account")
	}

	pc := &model.PettyCash{
		Status:        model.PettyCashDraft,
		RequestedBy:   p.UserID,
		Purpose:       req.Purpose,
		Amount:        total,
		Items:         items,
		Distributions: dists,
	}
	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.numberer.Issue(txCtx, DocPettyCash, func(number string) error {
			pc.PCVNo = number
			return s.repo.Create(txCtx, pc)
		})
		if err != nil {
			return fmt.Errorf("failed to create petty cash: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogPettyCash,
			SubjectType: model.LogPettyCash,
			SubjectID:   pc.ID,
			Actor:       &p.UserID,
			Message:     "petty cash " + pc.PCVNo + " created",
			Properties:  map[string]any{"amount": formatMoney(total)},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetPettyCash(ctx, p, pc.ID)
}

func (s *pettyCashService) GetPettyCash(ctx context.Context, p Principal, id uuid.UUID) (*PettyCashResponse, error) {
	pc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("petty cash", err)
	}
	if p.Role == model.RoleStaff && pc.RequestedBy != p.UserID {
		return nil, ErrForbidden
	}
	return toPettyCashResponse(pc), nil
}

func (s *pettyCashService) ListPettyCash(ctx context.Context, p Principal, filter PettyCashFilter) ([]PettyCashResponse, int64, error) {
	var requestedBy *uuid.UUID
	if p.Role == model.RoleStaff {
		requestedBy = &p.UserID
	}
	rows, total, err := s.repo.List(ctx, repository.ListFilter{
		Status: filter.Status,
		Search: filter.Search,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}, requestedBy)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list petty cash: %w", err)
	}
	res := make([]PettyCashResponse, 0, len(rows))
	for i := range rows {
		res = append(res, *toPettyCashResponse(&rows[i]))
	}
	return res, total, nil
}

func (s *pettyCashService) TransitionPettyCash(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error) {
	var pc *model.PettyCash
	return s.engine.run(ctx, p, id, req, transitionPlan{
		machine: workflow.PettyCashFlow,
		subject: model.SubjectPettyCash,
		logName: model.LogPettyCash,
		lock: func(txCtx context.Context) (string, error) {
			locked, err := s.repo.LockByID(txCtx, id)
			if err != nil {
				return "", notFound("petty cash", err)
			}
			pc = locked
			return pc.Status, nil
		},
		apply: func(txCtx context.Context, t workflow.Transition) error {
			// rows open to any role (submit, liquidate) belong to the requester
			if len(t.Roles) == 0 && pc.RequestedBy != p.UserID && !p.IsAdmin() {
				return ErrForbidden
			}
			if t.Action == workflow.ActionRelease {
				return s.release(txCtx, p, id, req.Remarks)
			}
			return s.repo.Update(txCtx, id, map[string]any{"status": t.To})
		},
	})
}

// release debits the releasing bursar's fund and stamps the petty cash as released
func (s *pettyCashService) release(ctx context.Context, p Principal, id uuid.UUID, remarks string) error {
	pc, err := s.repo.LockByID(ctx, id)
	if err != nil {
		return notFound("petty cash", err)
	}
	fund, err := s.funds.LockByCustodian(ctx, p.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return fmt.Errorf("no petty cash fund is held by the releasing user: %w", ErrInsufficientFund)
		}
		return fmt.Errorf("failed to lock fund: %w", err)
	}
	balance := fund.FundAmount.Sub(pc.Amount)
	if balance.IsNegative() {
		return fmt.Errorf("fund holds %s, release needs %s: %w",
			formatMoney(fund.FundAmount), formatMoney(pc.Amount), ErrInsufficientFund)
	}

	if err := s.funds.SetBalance(ctx, fund.ID, balance); err != nil {
		return fmt.Errorf("failed to debit fund: %w", err)
	}
	err = s.funds.AddEntry(ctx, &model.PettyCashFundEntry{
		FundID:       fund.ID,
		PettyCashID:  &pc.ID,
		EntryType:    model.FundEntryDebit,
		Amount:       pc.Amount,
		BalanceAfter: balance,
		UserID:       p.UserID,
		Remarks:      lo.Ternary(remarks != "", remarks, "released "+pc.PCVNo),
	})
	if err != nil {
		return fmt.Errorf("failed to record fund entry: %w", err)
	}

	return s.repo.Update(ctx, id, map[string]any{
		"status":       model.PettyCashReleased,
		"released_at":  s.now(),
		"custodian_id": p.UserID,
	})
}

func (s *pettyCashService) GetApprovals(ctx context.Context, p Principal, id uuid.UUID) ([]ApprovalResponse, error) {
	pc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("petty cash", err)
	}
	if p.Role == model.RoleStaff && pc.RequestedBy != p.UserID {
		return nil, ErrForbidden
	}
	return s.engine.history(ctx, model.SubjectPettyCash, id)
}

func (s *pettyCashService) UploadReceipt(ctx context.Context, p Principal, id, itemID uuid.UUID, file FileUpload) (*PettyCashItemResponse, error) {
	pc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("petty cash", err)
	}
	if pc.RequestedBy != p.UserID && !p.IsAdmin() && p.Role != model.RoleBursar {
		return nil, ErrForbidden
	}
	item, err := s.repo.FindItem(ctx, id, itemID)
	if err != nil {
		return nil, notFound("petty cash item", err)
	}

	key := storage.GenerateKey("receipts/"+pc.PCVNo, file.Filename, s.now())
	if _, err := s.files.Put(ctx, key, file.Content, file.Size, file.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.SetItemReceipt(txCtx, item.ID, key); err != nil {
			return fmt.Errorf("failed to attach receipt: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogPettyCash,
			SubjectType: model.LogPettyCash,
			SubjectID:   pc.ID,
			Actor:       &p.UserID,
			Message:     "receipt uploaded for " + item.Particulars,
			Properties:  map[string]any{"item_id": item.ID.String(), "key": key},
		})
	})
	if err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			s.log.Warn("failed to remove orphaned receipt", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	if item.ReceiptKey != "" {
		if err := s.files.Delete(ctx, item.ReceiptKey); err != nil {
			s.log.Warn("failed to remove replaced receipt", zap.String("key", item.ReceiptKey), zap.Error(err))
		}
	}

	item.ReceiptKey = key
	res := toPettyCashItemResponse(*item)
	return &res, nil
}

func (s *pettyCashService) CreateFund(ctx context.Context, p Principal, req CreateFundRequest) (*FundResponse, error) {
	custodianID, err := uuid.Parse(req.CustodianID)
	if err != nil {
		return nil, invalid("custodian_id", "must be a valid UUID")
	}
	initial := decimal.Zero
	if req.InitialAmount != "" {
		if initial, err = parseMoney("initial_amount", req.InitialAmount); err != nil {
			return nil, err
		}
	}
	custodian, err := s.users.GetByID(ctx, custodianID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, invalid("custodian_id", "user does not exist")
		}
		return nil, err
	}

	fund := &model.PettyCashFund{CustodianID: custodianID, FundAmount: initial}
	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.funds.Create(txCtx, fund); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%s already holds a fund: %w", custodian.Username, ErrStateConflict)
			}
			return fmt.Errorf("failed to create fund: %w", err)
		}
		if initial.IsPositive() {
			err := s.funds.AddEntry(txCtx, &model.PettyCashFundEntry{
				FundID:       fund.ID,
				EntryType:    model.FundEntryReplenish,
				Amount:       initial,
				BalanceAfter: initial,
				UserID:       p.UserID,
				Remarks:      "opening balance",
			})
			if err != nil {
				return fmt.Errorf("failed to record fund entry: %w", err)
			}
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogPettyCash,
			SubjectType: "petty_cash_fund",
			SubjectID:   fund.ID,
			Actor:       &p.UserID,
			Message:     "fund opened for " + custodian.Username,
			Properties:  map[string]any{"amount": formatMoney(initial)},
		})
	})
	if err != nil {
		return nil, err
	}
	fund.Custodian = custodian
	res := toFundResponse(fund)
	return &res, nil
}

func (s *pettyCashService) Replenish(ctx context.Context, p Principal, custodianID uuid.UUID, req ReplenishFundRequest) (*FundResponse, error) {
	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}

	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		fund, err := s.funds.LockByCustodian(txCtx, custodianID)
		if err != nil {
			return notFound("fund", err)
		}
		balance := fund.FundAmount.Add(amount)
		if err := s.funds.SetBalance(txCtx, fund.ID, balance); err != nil {
			return fmt.Errorf("failed to replenish fund: %w", err)
		}
		err = s.funds.AddEntry(txCtx, &model.PettyCashFundEntry{
			FundID:       fund.ID,
			EntryType:    model.FundEntryReplenish,
			Amount:       amount,
			BalanceAfter: balance,
			UserID:       p.UserID,
			Remarks:      req.Remarks,
		})
		if err != nil {
			return fmt.Errorf("failed to record fund entry: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogPettyCash,
			SubjectType: "petty_cash_fund",
			SubjectID:   fund.ID,
			Actor:       &p.UserID,
			Message:     "fund replenished",
			Properties:  map[string]any{"amount": formatMoney(amount), "balance": formatMoney(balance)},
		})
	})
	if err != nil {
		return nil, err
	}

	fund, err := s.funds.FindByCustodian(ctx, custodianID)
	if err != nil {
		return nil, notFound("fund", err)
	}
	res := toFundResponse(fund)
	return &res, nil
}

func (s *pettyCashService) Balance(ctx context.Context, custodianID uuid.UUID, page, limit int) (*FundBalanceResponse, error) {
	fund, err := s.funds.FindByCustodian(ctx, custodianID)
	if err != nil {
		return nil, notFound("fund", err)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	entries, total, err := s.funds.ListEntries(ctx, fund.ID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fund entries: %w", err)
	}
	return &FundBalanceResponse{
		FundResponse: toFundResponse(fund),
		Entries:      lo.Map(entries, func(e model.PettyCashFundEntry, _ int) FundEntryResponse { return toFundEntryResponse(e) }),
		Total:        total,
	}, nil
}

func (s *pettyCashService) ListFunds(ctx context.Context) ([]FundResponse, error) {
	funds, err := s.funds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}
	return lo.Map(funds, func(f model.PettyCashFund, _ int) FundResponse { return toFundResponse(&f) }), nil
}

// --- Helpers ---

func toPettyCashItemResponse(i model.PettyCashItem) PettyCashItemResponse {
	return PettyCashItemResponse{
		ID:          i.ID.String(),
		Particulars: i.Particulars,
		Amount:      formatMoney(i.Amount),
		HasReceipt:  i.ReceiptKey != "",
	}
}

func toPettyCashResponse(pc *model.PettyCash) *PettyCashResponse {
	res := &PettyCashResponse{
		ID:          pc.ID.String(),
		PCVNo:       pc.PCVNo,
		Status:      pc.Status,
		RequestedBy: pc.RequestedBy.String(),
		CustodianID: optionalIDString(pc.CustodianID),
		Purpose:     pc.Purpose,
		Amount:      formatMoney(pc.Amount),
		Items:       lo.Map(pc.Items, func(i model.PettyCashItem, _ int) PettyCashItemResponse { return toPettyCashItemResponse(i) }),
		Distributions: lo.Map(pc.Distributions, func(d model.DistributionExpense, _ int) DistributionResponse {
			out := DistributionResponse{ID: d.ID.String(), AccountID: d.AccountID.String(), Amount: formatMoney(d.Amount)}
			if d.Account != nil {
				out.AccountCode = d.Account.Code
				out.AccountName = d.Account.Name
			}
			return out
		}),
		CreatedAt: pc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: pc.UpdatedAt.Format(time.RFC3339),
	}
	if pc.Requester != nil {
		res.Requester = pc.Requester.Username
	}
	if pc.ReleasedAt != nil {
		res.ReleasedAt = lo.ToPtr(pc.ReleasedAt.Format(time.RFC3339))
	}
	return res
}

func toFundResponse(f *model.PettyCashFund) FundResponse {
	res := FundResponse{
		ID:          f.ID.String(),
		CustodianID: f.CustodianID.String(),
		FundAmount:  formatMoney(f.FundAmount),
		UpdatedAt:   f.UpdatedAt.Format(time.RFC3339),
	}
	if f.Custodian != nil {
		res.Custodian = f.Custodian.Username
	}
	return res
}

func toFundEntryResponse(e model.PettyCashFundEntry) FundEntryResponse {
	return FundEntryResponse{
		ID:           e.ID.String(),
		PettyCashID:  optionalIDString(e.PettyCashID),
		EntryType:    e.EntryType,
		Amount:       formatMoney(e.Amount),
		BalanceAfter: formatMoney(e.BalanceAfter),
		UserID:       e.UserID.String(),
		Remarks:      e.Remarks,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
}
