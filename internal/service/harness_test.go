package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"procurement/internal/database/dbtest"
	"procurement/internal/model"
	"procurement/internal/notification"
	"procurement/internal/repository"
	"procurement/internal/storage"
)

const testPassword = "s3cret-pass"

type recordedTransition struct {
	Entity, Action, Status string
}

type fakeRecorder struct {
	mu          sync.Mutex
	transitions []recordedTransition
	released    int
	conflicts   int
	mailFailed  int
}

func (f *fakeRecorder) ObserveTransition(entity, action, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, recordedTransition{entity, action, status})
}

func (f *fakeRecorder) ObserveRelease(quantity int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.released += quantity
		return
	}
	f.conflicts++
}

func (f *fakeRecorder) ObserveNotification(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.mailFailed++
	}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []any
}

func (f *fakeBroadcaster) Publish(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, v)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (f *fakeNotifier) Notify(_ context.Context, msg notification.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

// harness wires every service against one migrated sqlite database
type harness struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB

	users     repository.UserRepository
	depts     repository.DepartmentRepository
	suppliers repository.SupplierRepository
	accounts  repository.AccountRepository
	approvals repository.ApprovalRepository
	audit     repository.AuditRepository
	orderRepo repository.OrderRepository
	funds     repository.FundRepository

	recorder    *fakeRecorder
	broadcaster *fakeBroadcaster
	notifier    *fakeNotifier
	files       storage.FileStore
	numberer    *Numberer

	requests   RequestService
	orders     OrderService
	releases   ReleaseService
	canvases   CanvasService
	pos        PurchaseOrderService
	vouchers   VoucherService
	pettyCash  PettyCashService
	masterData MasterDataService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.New(t)

	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		t:           t,
		ctx:         context.Background(),
		db:          db,
		users:       repository.NewUserRepository(db),
		depts:       repository.NewDepartmentRepository(db),
		suppliers:   repository.NewSupplierRepository(db),
		accounts:    repository.NewAccountRepository(db),
		approvals:   repository.NewApprovalRepository(db),
		audit:       repository.NewAuditRepository(db),
		orderRepo:   repository.NewOrderRepository(db),
		funds:       repository.NewFundRepository(db),
		recorder:    &fakeRecorder{},
		broadcaster: &fakeBroadcaster{},
		notifier:    &fakeNotifier{},
		files:       files,
	}

	tx := repository.NewTransactionManager(db)
	h.numberer = NewNumberer(repository.NewSequenceRepository(db), tx)
	userSvc := NewUserService(h.users, repository.NewRoleRepository(db), []byte("test-secret"), time.Hour)
	activity := NewAuditService(h.audit)
	events := NewEvents(h.broadcaster, h.recorder, h.notifier, nil)
	engine := NewEngine(tx, h.approvals, activity, userSvc, events)

	requestRepo := repository.NewRequestRepository(db)
	canvasRepo := repository.NewCanvasRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)

	h.requests = NewRequestService(requestRepo, h.users, h.depts, h.numberer, engine)
	h.orders = NewOrderService(h.orderRepo, requestRepo, h.numberer, engine)
	h.releases = NewReleaseService(h.orderRepo, engine)
	h.canvases = NewCanvasService(canvasRepo, h.orderRepo, h.suppliers, files, engine, nil)
	h.pos = NewPurchaseOrderService(poRepo, canvasRepo, h.orderRepo, h.suppliers, h.numberer, engine)
	h.vouchers = NewVoucherService(repository.NewVoucherRepository(db), poRepo, h.accounts, h.suppliers,
		h.numberer, engine, nil, files, nil)
	h.pettyCash = NewPettyCashService(repository.NewPettyCashRepository(db), h.funds, h.accounts, h.users,
		files, h.numberer, engine, nil)
	h.masterData = NewMasterDataService(h.depts, h.suppliers, h.accounts, activity)
	return h
}

// user creates a user with testPassword and returns its principal
func (h *harness) user(role string) Principal {
	h.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(h.t, err)

	name := role + "-" + uuid.NewString()[:8]
	u := &model.User{Username: name, Email: name + "@example.com", Password: string(hash), Role: role}
	require.NoError(h.t, h.users.Create(h.ctx, u))
	return Principal{UserID: u.ID, Role: role}
}

func (h *harness) staffWithDepartment() Principal {
	h.t.Helper()
	dept := &model.Department{Name: "Dept " + uuid.NewString()[:6], Code: uuid.NewString()[:6]}
	require.NoError(h.t, h.depts.Create(h.ctx, dept))

	p := h.user(model.RoleStaff)
	u, err := h.users.GetByID(h.ctx, p.UserID)
	require.NoError(h.t, err)
	u.DepartmentID = &dept.ID
	require.NoError(h.t, h.users.Update(h.ctx, u))
	return p
}

func (h *harness) account(code string) uuid.UUID {
	h.t.Helper()
	a := &model.Account{Code: code, Name: "Account " + code, Category: model.AccountExpense, IsActive: true}
	require.NoError(h.t, h.accounts.Create(h.ctx, a))
	return a.ID
}

func (h *harness) supplier(name, email string) uuid.UUID {
	h.t.Helper()
	s := &model.Supplier{Name: name, Email: email, IsActive: true}
	require.NoError(h.t, h.suppliers.Create(h.ctx, s))
	return s.ID
}

// order creates a free-form order with one line per quantity
func (h *harness) order(quantities ...int) *OrderResponse {
	h.t.Helper()
	lines := make([]RequestLineInput, 0, len(quantities))
	for i, q := range quantities {
		lines = append(lines, RequestLineInput{Quantity: q, Unit: "pc", Description: "item " + string(rune('A'+i))})
	}
	order, err := h.orders.CreateOrder(h.ctx, h.user(model.RolePurchasing), CreateOrderRequest{Lines: lines})
	require.NoError(h.t, err)
	return order
}

func (h *harness) approvalCount(subject model.ApprovalSubject, id string) int64 {
	h.t.Helper()
	n, err := h.approvals.Count(h.ctx, subject, uuid.MustParse(id))
	require.NoError(h.t, err)
	return n
}

func (h *harness) auditCount(subjectType, id string) int64 {
	h.t.Helper()
	n, err := h.audit.Count(h.ctx, subjectType, id)
	require.NoError(h.t, err)
	return n
}

func (h *harness) fundBalance(custodian uuid.UUID) decimal.Decimal {
	h.t.Helper()
	fund, err := h.funds.FindByCustodian(h.ctx, custodian)
	require.NoError(h.t, err)
	return fund.FundAmount
}
