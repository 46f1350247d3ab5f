package service

import (
	"context"
	"fmt"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Permission codes checked by the route layer
const (
	PermDashboardRead    = "dashboard.read"
	PermUsersRead        = "users.read"
	PermUsersWrite       = "users.write"
	PermUsersDelete      = "users.delete"
	PermRolesManage      = "roles.manage"
	PermAuditRead        = "audit.read"
	PermMasterDataRead   = "master_data.read"
	PermMasterDataWrite  = "master_data.write"
	PermRequestsRead     = "requests.read"
	PermRequestsWrite    = "requests.write"
	PermRequestsApprove  = "requests.approve"
	PermOrdersRead       = "orders.read"
	PermOrdersWrite      = "orders.write"
	PermOrdersRelease    = "orders.release"
	PermCanvasRead       = "canvases.read"
	PermCanvasWrite      = "canvases.write"
	PermCanvasApprove    = "canvases.approve"
	PermPORead           = "purchase_orders.read"
	PermPOWrite          = "purchase_orders.write"
	PermVouchersRead     = "vouchers.read"
	PermVouchersWrite    = "vouchers.write"
	PermVouchersAudit    = "vouchers.audit"
	PermPettyCashRead    = "petty_cash.read"
	PermPettyCashWrite   = "petty_cash.write"
	PermPettyCashRelease = "petty_cash.release"
	PermFundsManage      = "petty_cash.funds"
)

// --- DTOs ---

type UpdateRolePermissionsRequest struct {
	PermissionCodes []string `json:"permission_codes" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID uuid.UUID, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo repository.RoleRepository
	tx   repository.TransactionManager
}

func NewRoleService(repo repository.RoleRepository, tx repository.TransactionManager) RoleService {
	return &roleService{repo: repo, tx: tx}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	return lo.Map(roles, func(r model.Role, _ int) RoleResponse { return toRoleResponse(r) }), nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	return lo.Map(perms, func(p model.Permission, _ int) PermissionResponse { return toPermissionResponse(p) }), nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID uuid.UUID, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	known, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	knownCodes := lo.Map(known, func(p model.Permission, _ int) string { return p.Code })
	if unknown, _ := lo.Difference(req.PermissionCodes, knownCodes); len(unknown) > 0 {
		return nil, invalid("permission_codes", fmt.Sprintf("unknown permission codes %v", unknown))
	}

	var updated *model.Role
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.ReplacePermissions(txCtx, roleID, lo.Uniq(req.PermissionCodes)); err != nil {
			return notFound("role", err)
		}
		roles, err := s.repo.ListAll(txCtx)
		if err != nil {
			return err
		}
		role, ok := lo.Find(roles, func(r model.Role) bool { return r.ID == roleID })
		if !ok {
			return fmt.Errorf("role %w", ErrNotFound)
		}
		updated = &role
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toRoleResponse(*updated)
	return &resp, nil
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.repo.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("role '%s' not found: %w", roleName, err)
	}
	return codes, nil
}

var defaultPermissions = []model.Permission{
	{Code: PermDashboardRead, Name: "View dashboard", Group: "dashboard"},
	{Code: PermUsersRead, Name: "View users", Group: "users"},
	{Code: PermUsersWrite, Name: "Manage users", Group: "users"},
	{Code: PermUsersDelete, Name: "Delete users", Group: "users"},
	{Code: PermRolesManage, Name: "Manage role permissions", Group: "roles"},
	{Code: PermAuditRead, Name: "View activity log", Group: "audit"},
	{Code: PermMasterDataRead, Name: "View departments, suppliers and accounts", Group: "master_data"},
	{Code: PermMasterDataWrite, Name: "Manage departments, suppliers and accounts", Group: "master_data"},
	{Code: PermRequestsRead, Name: "View requests", Group: "requests"},
	{Code: PermRequestsWrite, Name: "Create and edit requests", Group: "requests"},
	{Code: PermRequestsApprove, Name: "Approve or reject requests", Group: "requests"},
	{Code: PermOrdersRead, Name: "View orders", Group: "orders"},
	{Code: PermOrdersWrite, Name: "Create and progress orders", Group: "orders"},
	{Code: PermOrdersRelease, Name: "Release ordered items", Group: "orders"},
	{Code: PermCanvasRead, Name: "View canvasses", Group: "canvases"},
	{Code: PermCanvasWrite, Name: "Create canvasses and upload quotations", Group: "canvases"},
	{Code: PermCanvasApprove, Name: "Review and approve canvasses", Group: "canvases"},
	{Code: PermPORead, Name: "View purchase orders", Group: "purchase_orders"},
	{Code: PermPOWrite, Name: "Create and progress purchase orders", Group: "purchase_orders"},
	{Code: PermVouchersRead, Name: "View vouchers", Group: "vouchers"},
	{Code: PermVouchersWrite, Name: "Create and progress vouchers", Group: "vouchers"},
	{Code: PermVouchersAudit, Name: "Audit vouchers", Group: "vouchers"},
	{Code: PermPettyCashRead, Name: "View petty cash", Group: "petty_cash"},
	{Code: PermPettyCashWrite, Name: "Create and progress petty cash", Group: "petty_cash"},
	{Code: PermPettyCashRelease, Name: "Release petty cash", Group: "petty_cash"},
	{Code: PermFundsManage, Name: "Manage petty cash funds", Group: "petty_cash"},
}

type roleDefinition struct {
	Description string
	PermCodes   []string
}

var readAll = []string{
	PermRequestsRead, PermOrdersRead, PermCanvasRead, PermPORead,
	PermVouchersRead, PermPettyCashRead, PermMasterDataRead,
}

var defaultRoles = map[string]roleDefinition{
	model.RoleAdmin: {
		Description: "Administrator with every permission",
		PermCodes:   lo.Map(defaultPermissions, func(p model.Permission, _ int) string { return p.Code }),
	},
	model.RoleStaff: {
		Description: "Department staff raising requests and petty cash",
		PermCodes: []string{
			PermRequestsRead, PermRequestsWrite, PermPettyCashRead, PermPettyCashWrite, PermMasterDataRead,
		},
	},
	model.RolePurchasing: {
		Description: "Consolidates requests, canvasses suppliers and issues purchase orders",
		PermCodes: append([]string{
			PermDashboardRead, PermRequestsWrite, PermOrdersWrite, PermOrdersRelease,
			PermCanvasWrite, PermPOWrite, PermPettyCashWrite, PermMasterDataWrite,
		}, readAll...),
	},
	model.RoleAccounting: {
		Description: "Reviews canvasses, audits vouchers and petty cash",
		PermCodes: append([]string{
			PermDashboardRead, PermCanvasApprove, PermPOWrite, PermVouchersWrite, PermVouchersAudit,
			PermPettyCashWrite, PermMasterDataWrite, PermAuditRead,
		}, readAll...),
	},
	model.RolePropertyCustodian: {
		Description: "Approves requests and takes custody of delivered items",
		PermCodes: append([]string{
			PermRequestsApprove, PermOrdersRelease, PermPettyCashWrite,
		}, readAll...),
	},
	model.RoleExecutiveDirector: {
		Description: "Final approver for orders, canvasses, purchase orders and vouchers",
		PermCodes: append([]string{
			PermDashboardRead, PermRequestsApprove, PermOrdersWrite, PermCanvasApprove, PermPOWrite,
			PermVouchersWrite, PermPettyCashWrite, PermAuditRead,
		}, readAll...),
	},
	model.RoleBursar: {
		Description: "Releases checks and petty cash from the revolving fund",
		PermCodes: append([]string{
			PermDashboardRead, PermVouchersWrite, PermPettyCashWrite, PermPettyCashRelease, PermFundsManage,
		}, readAll...),
	},
}

// SeedDefaultRolesAndPermissions creates the default permissions and roles if not already present
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, def := range defaultPermissions {
			p := def
			if err := s.repo.FindOrCreatePermission(txCtx, &p); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
		}

		for name, def := range defaultRoles {
			role := model.Role{Name: name, Description: def.Description, IsSystem: true}
			if err := s.repo.FirstOrCreate(txCtx, &role); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", name, err)
			}
			// existing roles keep operator-edited permissions
			existing, err := s.repo.GetPermissionsByRoleName(txCtx, name)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				continue
			}
			if err := s.repo.ReplacePermissions(txCtx, role.ID, lo.Uniq(def.PermCodes)); err != nil {
				return fmt.Errorf("failed to assign permissions to role '%s': %w", name, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: lo.Map(r.Permissions, func(p model.Permission, _ int) PermissionResponse { return toPermissionResponse(p) }),
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
