package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// --- DTOs ---

type DepartmentRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required,max=30"`
}

type DepartmentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	CreatedAt string `json:"created_at"`
}

type SupplierRequest struct {
	Name          string `json:"name" binding:"required"`
	TIN           string `json:"tin"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" binding:"omitempty,email"`
	Address       string `json:"address"`
	IsActive      *bool  `json:"is_active"`
}

type SupplierResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TIN           string `json:"tin"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at"`
}

type AccountRequest struct {
	Code     string `json:"code" binding:"required,max=30"`
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required,oneof=ASSET LIABILITY EXPENSE"`
	IsActive *bool  `json:"is_active"`
}

type AccountResponse struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	IsActive bool   `json:"is_active"`
}

// --- Interface ---

// MasterDataService manages the reference tables the workflows point at
type MasterDataService interface {
	ListDepartments(ctx context.Context) ([]DepartmentResponse, error)
	CreateDepartment(ctx context.Context, p Principal, req DepartmentRequest) (*DepartmentResponse, error)
	UpdateDepartment(ctx context.Context, p Principal, id uuid.UUID, req DepartmentRequest) (*DepartmentResponse, error)
	DeleteDepartment(ctx context.Context, p Principal, id uuid.UUID) error

	ListSuppliers(ctx context.Context, search string, page, limit int) ([]SupplierResponse, int64, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (*SupplierResponse, error)
	CreateSupplier(ctx context.Context, p Principal, req SupplierRequest) (*SupplierResponse, error)
	UpdateSupplier(ctx context.Context, p Principal, id uuid.UUID, req SupplierRequest) (*SupplierResponse, error)
	DeleteSupplier(ctx context.Context, p Principal, id uuid.UUID) error

	ListAccounts(ctx context.Context, category string) ([]AccountResponse, error)
	CreateAccount(ctx context.Context, p Principal, req AccountRequest) (*AccountResponse, error)
	UpdateAccount(ctx context.Context, p Principal, id uuid.UUID, req AccountRequest) (*AccountResponse, error)
	DeleteAccount(ctx context.Context, p Principal, id uuid.UUID) error
}

type masterDataService struct {
	departments repository.DepartmentRepository
	suppliers   repository.SupplierRepository
	accounts    repository.AccountRepository
	activity    ActivityRecorder
}

func NewMasterDataService(
	departments repository.DepartmentRepository,
	suppliers repository.SupplierRepository,
	accounts repository.AccountRepository,
	activity ActivityRecorder,
) MasterDataService {
	return &masterDataService{
		departments: departments,
		suppliers:   suppliers,
		accounts:    accounts,
		activity:    activity,
	}
}

// --- Departments ---

func (s *masterDataService) ListDepartments(ctx context.Context) ([]DepartmentResponse, error) {
	depts, err := s.departments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return lo.Map(depts, func(d model.Department, _ int) DepartmentResponse { return toDepartmentResponse(&d) }), nil
}

func (s *masterDataService) CreateDepartment(ctx context.Context, p Principal, req DepartmentRequest) (*DepartmentResponse, error) {
	dept := &model.Department{Name: strings.TrimSpace(req.Name), Code: strings.ToUpper(strings.TrimSpace(req.Code))}
	if err := s.departments.Create(ctx, dept); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, invalid("code", "department name or code already exists")
		}
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	s.record(ctx, p, "department", dept.ID, "department "+dept.Code+" created")
	res := toDepartmentResponse(dept)
	return &res, nil
}

func (s *masterDataService) UpdateDepartment(ctx context.Context, p Principal, id uuid.UUID, req DepartmentRequest) (*DepartmentResponse, error) {
	dept, err := s.departments.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("department", err)
	}
	dept.Name = strings.TrimSpace(req.Name)
	dept.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.departments.Update(ctx, dept); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, invalid("code", "department name or code already exists")
		}
		return nil, fmt.Errorf("failed to update department: %w", err)
	}
	s.record(ctx, p, "department", dept.ID, "department "+dept.Code+" updated")
	res := toDepartmentResponse(dept)
	return &res, nil
}

func (s *masterDataService) DeleteDepartment(ctx context.Context, p Principal, id uuid.UUID) error {
	if _, err := s.departments.FindByID(ctx, id); err != nil {
		return notFound("department", err)
	}
	if err := s.departments.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	s.record(ctx, p, "department", id, "department deleted")
	return nil
}

// --- Suppliers ---

func (s *masterDataService) ListSuppliers(ctx context.Context, search string, page, limit int) ([]SupplierResponse, int64, error) {
	suppliers, total, err := s.suppliers.List(ctx, repository.ListFilter{Search: search, Page: page, Limit: limit})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list suppliers: %w", err)
	}
	return lo.Map(suppliers, func(sp model.Supplier, _ int) SupplierResponse { return toSupplierResponse(&sp) }), total, nil
}

func (s *masterDataService) GetSupplier(ctx context.Context, id uuid.UUID) (*SupplierResponse, error) {
	supplier, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("supplier", err)
	}
	res := toSupplierResponse(supplier)
	return &res, nil
}

func (s *masterDataService) CreateSupplier(ctx context.Context, p Principal, req SupplierRequest) (*SupplierResponse, error) {
	supplier := &model.Supplier{IsActive: true}
	applySupplier(supplier, req)
	if err := s.suppliers.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}
	s.record(ctx, p, "supplier", supplier.ID, "supplier "+supplier.Name+" created")
	res := toSupplierResponse(supplier)
	return &res, nil
}

func (s *masterDataService) UpdateSupplier(ctx context.Context, p Principal, id uuid.UUID, req SupplierRequest) (*SupplierResponse, error) {
	supplier, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("supplier", err)
	}
	applySupplier(supplier, req)
	if err := s.suppliers.Update(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to update supplier: %w", err)
	}
	s.record(ctx, p, "supplier", supplier.ID, "supplier "+supplier.Name+" updated")
	res := toSupplierResponse(supplier)
	return &res, nil
}

func (s *masterDataService) DeleteSupplier(ctx context.Context, p Principal, id uuid.UUID) error {
	if _, err := s.suppliers.FindByID(ctx, id); err != nil {
		return notFound("supplier", err)
	}
	if err := s.suppliers.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete supplier: %w", err)
	}
	s.record(ctx, p, "supplier", id, "supplier deleted")
	return nil
}

// --- Accounts ---

func (s *masterDataService) ListAccounts(ctx context.Context, category string) ([]AccountResponse, error) {
	accounts, err := s.accounts.List(ctx, strings.ToUpper(category))
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return lo.Map(accounts, func(a model.Account, _ int) AccountResponse { return toAccountResponse(&a) }), nil
}

func (s *masterDataService) CreateAccount(ctx context.Context, p Principal, req AccountRequest) (*AccountResponse, error) {
	account := &model.Account{
		Code:     strings.TrimSpace(req.Code),
		Name:     req.Name,
		Category: req.Category,
		IsActive: lo.FromPtrOr(req.IsActive, true),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, invalid("code", "account code already exists")
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	s.record(ctx, p, "account", account.ID, "account "+account.Code+" created")
	res := toAccountResponse(account)
	return &res, nil
}

func (s *masterDataService) UpdateAccount(ctx context.Context, p Principal, id uuid.UUID, req AccountRequest) (*AccountResponse, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("account", err)
	}
	account.Code = strings.TrimSpace(req.Code)
	account.Name = req.Name
	account.Category = req.Category
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, invalid("code", "account code already exists")
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	s.record(ctx, p, "account", account.ID, "account "+account.Code+" updated")
	res := toAccountResponse(account)
	return &res, nil
}

func (s *masterDataService) DeleteAccount(ctx context.Context, p Principal, id uuid.UUID) error {
	if _, err := s.accounts.FindByID(ctx, id); err != nil {
		return notFound("account", err)
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	s.record(ctx, p, "account", id, "account deleted")
	return nil
}

// --- Helpers ---

// record writes a master-data activity entry. Failures are not surfaced; the change is already saved.
func (s *masterDataService) record(ctx context.Context, p Principal, subject string, id uuid.UUID, msg string) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, Activity{
		LogName:     model.LogMasterData,
		SubjectType: subject,
		SubjectID:   id,
		Actor:       &p.UserID,
		Message:     msg,
	})
}

func applySupplier(s *model.Supplier, req SupplierRequest) {
	s.Name = strings.TrimSpace(req.Name)
	s.TIN = req.TIN
	s.ContactPerson = req.ContactPerson
	s.Phone = req.Phone
	s.Email = req.Email
	s.Address = req.Address
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
}

func toDepartmentResponse(d *model.Department) DepartmentResponse {
	return DepartmentResponse{ID: d.ID.String(), Name: d.Name, Code: d.Code, CreatedAt: d.CreatedAt.Format(time.RFC3339)}
}

func toSupplierResponse(s *model.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:            s.ID.String(),
		Name:          s.Name,
		TIN:           s.TIN,
		ContactPerson: s.ContactPerson,
		Phone:         s.Phone,
		Email:         s.Email,
		Address:       s.Address,
		IsActive:      s.IsActive,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
}

func toAccountResponse(a *model.Account) AccountResponse {
	return AccountResponse{ID: a.ID.String(), Code: a.Code, Name: a.Name, Category: a.Category, IsActive: a.IsActive}
}
