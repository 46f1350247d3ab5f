package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"procurement/internal/database/dbtest"
	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/internal/storage"
)

const password = "s3cret-pass"

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	users    repository.UserRepository
	accounts repository.AccountRepository
	userSvc  service.UserService
	roleSvc  service.RoleService
	auth     *middleware.Auth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	db := dbtest.New(t)
	ctx := context.Background()
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tx := repository.NewTransactionManager(db)
	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	depts := repository.NewDepartmentRepository(db)
	suppliers := repository.NewSupplierRepository(db)
	accounts := repository.NewAccountRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	canvasRepo := repository.NewCanvasRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)

	roleSvc := service.NewRoleService(roles, tx)
	require.NoError(t, roleSvc.SeedDefaultRolesAndPermissions(ctx))

	userSvc := service.NewUserService(users, roles, []byte("test-secret"), time.Hour)
	audit := service.NewAuditService(repository.NewAuditRepository(db))
	numberer := service.NewNumberer(repository.NewSequenceRepository(db), tx)
	engine := service.NewEngine(tx, repository.NewApprovalRepository(db), audit, userSvc, service.NewEvents(nil, nil, nil, nil))

	auth := middleware.NewAuth([]byte("test-secret"), roleSvc, middleware.NewMemoryCache(time.Minute), zap.NewNop())
	r := gin.New()
	api := r.Group("/api")
	NewUserHandler(userSvc, time.Hour, false).RegisterRoutes(api, auth)
	NewRoleHandler(roleSvc, auth).RegisterRoutes(api, auth)
	NewAuditHandler(audit).RegisterRoutes(api, auth)
	NewRequestHandler(service.NewRequestService(requestRepo, users, depts, numberer, engine)).RegisterRoutes(api, auth)
	NewOrderHandler(service.NewOrderService(orderRepo, requestRepo, numberer, engine), service.NewReleaseService(orderRepo, engine)).RegisterRoutes(api, auth)
	NewCanvasHandler(service.NewCanvasService(canvasRepo, orderRepo, suppliers, files, engine, nil)).RegisterRoutes(api, auth)
	NewPurchaseOrderHandler(service.NewPurchaseOrderService(poRepo, canvasRepo, orderRepo, suppliers, numberer, engine)).RegisterRoutes(api, auth)
	NewVoucherHandler(service.NewVoucherService(repository.NewVoucherRepository(db), poRepo, accounts, suppliers, numberer, engine, nil, files, nil)).RegisterRoutes(api, auth)
	NewMasterDataHandler(service.NewMasterDataService(depts, suppliers, accounts, audit)).RegisterRoutes(api, auth)

	return &testServer{t: t, router: r, users: users, accounts: accounts, userSvc: userSvc, roleSvc: roleSvc, auth: auth}
}

// login creates a user with the given role and returns a bearer token for it
func (s *testServer) login(role string) string {
	s.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(s.t, err)
	name := role + "-" + uuid.NewString()[:8]
	require.NoError(s.t, s.users.Create(context.Background(), &model.User{
		Username: name, Email: name + "@example.com", Password: string(hash), Role: role,
	}))

	res, err := s.userSvc.Login(context.Background(), service.LoginUserRequest{Email: name + "@example.com", Password: password})
	require.NoError(s.t, err)
	return res.Token
}

func (s *testServer) account() string {
	s.t.Helper()
	a := &model.Account{Code: uuid.NewString()[:6], Name: "Supplies expense", Category: model.AccountExpense, IsActive: true}
	require.NoError(s.t, s.accounts.Create(context.Background(), a))
	return a.ID.String()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  map[string]any  `json:"errors"`
	Meta    map[string]any  `json:"meta"`
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.send(req, token)
}

func (s *testServer) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	s.login(model.RoleAccounting)

	w, env := s.do(http.MethodPost, "/api/login", "", service.LoginUserRequest{Email: "nobody@example.com", Password: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)

	token := s.login(model.RoleBursar)
	w, env = s.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[service.UserResponse](t, env.Data)
	assert.Equal(t, model.RoleBursar, me.Role)
	assert.Contains(t, me.Permissions, service.PermPettyCashRelease)

	w, _ = s.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateVoucher_StatusCodes(t *testing.T) {
	s := newTestServer(t)
	accounting := s.login(model.RoleAccounting)
	acct := s.account()

	body := func(check string, amounts ...string) gin.H {
		lines := make([]gin.H, 0, len(amounts))
		for _, a := range amounts {
			lines = append(lines, gin.H{"account_id": acct, "charging_tag": "OPS", "amount": a})
		}
		return gin.H{"payee": "Acme", "check_amount": check, "details": lines}
	}

	w, env := s.do(http.MethodPost, "/api/vouchers", accounting, body("100.00", "60.00", "30.00"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Errors, "check_amount")

	w, env = s.do(http.MethodPost, "/api/vouchers", accounting, body("abc", "60.00"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Errors, "check_amount", "the decimal binding tag rejects non-numbers")

	// staff hold no voucher permission at all
	w, _ = s.do(http.MethodPost, "/api/vouchers", s.login(model.RoleStaff), body("100.00", "100.00"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(http.MethodPost, "/api/vouchers", accounting, body("100.00", "60.00", "40.00"))
	require.Equal(t, http.StatusCreated, w.Code)
	v := decode[service.VoucherResponse](t, env.Data)
	assert.Equal(t, model.VoucherPending, v.Status)

	w, _ = s.do(http.MethodPost, "/api/vouchers/"+v.ID+"/transitions", accounting, gin.H{"action": "submit"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodPost, "/api/vouchers/"+v.ID+"/transitions", accounting, gin.H{"action": "audit", "password": "wrong"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Errors, "password")

	w, _ = s.do(http.MethodPost, "/api/vouchers/"+v.ID+"/transitions", accounting, gin.H{"action": "submit"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodPost, "/api/vouchers/"+v.ID+"/transitions", s.login(model.RoleBursar), gin.H{"action": "audit", "password": password})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(http.MethodGet, "/api/vouchers?status="+model.VoucherForAudit, accounting, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, env.Meta["total"])

	w, _ = s.do(http.MethodGet, "/api/vouchers/"+uuid.NewString(), accounting, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(http.MethodGet, "/api/vouchers/not-a-uuid", accounting, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoucherAudit_FollowsTheAuditPermission(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	accounting := s.login(model.RoleAccounting)
	acct := s.account()

	w, env := s.do(http.MethodPost, "/api/vouchers", accounting, gin.H{
		"payee": "Acme", "check_amount": "50.00",
		"details": []gin.H{{"account_id": acct, "charging_tag": "OPS", "amount": "50.00"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	v := decode[service.VoucherResponse](t, env.Data)
	w, _ = s.do(http.MethodPost, "/api/vouchers/"+v.ID+"/transitions", accounting, gin.H{"action": "submit"})
	require.Equal(t, http.StatusOK, w.Code)

	// an operator withdraws vouchers.audit from accounting
	roles, err := s.roleSvc.ListRoles(ctx)
	require.NoError(t, err)
	var role service.RoleResponse
	for _, r := range roles {
		if r.Name == model.RoleAccounting {
			role = r
		}
	}
	var codes []string
	for _, p := range role.Permissions {
		if p.Code != service.PermVouchersAudit {
			codes = append(codes, p.Code)
		}
	}
	_, err = s.roleSvc.UpdateRolePermissions(ctx, uuid.MustParse(role.ID), service.UpdateRolePermissionsRequest{PermissionCodes: codes})
	require.NoError(t, err)
	s.auth.ClearPermissionCache(ctx, model.RoleAccounting)

	w, env = s.do(http.MethodPost, "/api/vouchers/"+v.ID+"/transitions", accounting, gin.H{"action": "audit", "password": password})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, env.Message, service.PermVouchersAudit)

	w, env = s.do(http.MethodGet, "/api/vouchers/"+v.ID, accounting, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.VoucherForAudit, decode[service.VoucherResponse](t, env.Data).Status)
}

func TestRelease_OverReleaseIsUnprocessable(t *testing.T) {
	s := newTestServer(t)
	purchasing := s.login(model.RolePurchasing)

	w, env := s.do(http.MethodPost, "/api/orders", purchasing, gin.H{
		"lines": []gin.H{{"quantity": 10, "unit": "ream", "description": "bond paper"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[service.OrderResponse](t, env.Data)
	detail := order.Details[0].ID

	release := func(qty int) (*httptest.ResponseRecorder, envelope) {
		return s.do(http.MethodPost, "/api/orders/"+order.ID+"/releases", purchasing, gin.H{
			"items": []gin.H{{"detail_id": detail, "quantity": qty}},
		})
	}

	w, _ = release(6)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = release(5)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.EqualValues(t, 4, env.Errors["remaining"])

	w, env = release(4)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, model.OrderCompleted, decode[service.ReleaseResult](t, env.Data).Status)

	w, env = s.do(http.MethodGet, "/api/orders/"+order.ID+"/releases/summary", purchasing, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[service.ReleaseSummaryResponse](t, env.Data)
	assert.True(t, summary.Complete)
	assert.Equal(t, 0, summary.Lines[0].Remaining)

	w, _ = release(1)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCanvas_UploadAndDownloadQuotation(t *testing.T) {
	s := newTestServer(t)
	purchasing := s.login(model.RolePurchasing)

	w, env := s.do(http.MethodPost, "/api/canvases", purchasing, gin.H{"title": "Office chairs"})
	require.Equal(t, http.StatusCreated, w.Code)
	canvas := decode[service.CanvasResponse](t, env.Data)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "quote.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF quotation"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/canvases/"+canvas.ID+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env = s.send(req, purchasing)
	require.Equal(t, http.StatusCreated, w.Code)
	file := decode[service.CanvasFileResponse](t, env.Data)
	assert.Equal(t, "quote.pdf", file.OriginalName)

	req = httptest.NewRequest(http.MethodGet, "/api/canvases/"+canvas.ID+"/files/"+file.ID, nil)
	w, _ = s.send(req, purchasing)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF quotation", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `"quote.pdf"`)

	req = httptest.NewRequest(http.MethodPost, "/api/canvases/"+canvas.ID+"/files", nil)
	w, _ = s.send(req, purchasing)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMasterData_AccountCategoryIsValidated(t *testing.T) {
	s := newTestServer(t)
	accounting := s.login(model.RoleAccounting)

	w, env := s.do(http.MethodPost, "/api/accounts", accounting, gin.H{"code": "5-01", "name": "Supplies", "category": "REVENUE"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Errors, "category")

	w, _ = s.do(http.MethodPost, "/api/accounts", accounting, gin.H{"code": "5-01", "name": "Supplies", "category": "EXPENSE"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, env = s.do(http.MethodGet, "/api/accounts?category=EXPENSE", s.login(model.RoleStaff), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]service.AccountResponse](t, env.Data), 1)

	w, _ = s.do(http.MethodPost, "/api/accounts", s.login(model.RoleStaff), gin.H{"code": "5-02", "name": "Fuel", "category": "EXPENSE"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
