package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type RoleRepository interface {
	FindByName(ctx context.Context, name string) (*model.Role, error)
	FirstOrCreate(ctx context.Context, role *model.Role) error
	ListAll(ctx context.Context) ([]model.Role, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	ReplacePermissions(ctx context.Context, roleID uuid.UUID, codes []string) error
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	FindOrCreatePermission(ctx context.Context, perm *model.Permission) error
	AssociatePermissions(ctx context.Context, roleID uuid.UUID, permIDs []uuid.UUID) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FirstOrCreate(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Where("name = ?", role.Name).FirstOrCreate(role).Error
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Order("name asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := GetDB(ctx, r.db).Order("\"group\" asc, code asc").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// ReplacePermissions swaps the role's permission set for the given codes
func (r *roleRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, codes []string) error {
	return r.linkPermissions(ctx, roleID, "code IN ?", codes, true)
}

func (r *roleRepository) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	role, err := r.FindByName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	return lo.Map(role.Permissions, func(p model.Permission, _ int) string { return p.Code }), nil
}

// FindOrCreatePermission upserts by code; name and group are only set on insert
func (r *roleRepository) FindOrCreatePermission(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Where(model.Permission{Code: perm.Code}).Attrs(model.Permission{
		Name: perm.Name, Group: perm.Group,
	}).FirstOrCreate(perm).Error
}

// AssociatePermissions adds to the role's set, keeping what is already linked
func (r *roleRepository) AssociatePermissions(ctx context.Context, roleID uuid.UUID, permIDs []uuid.UUID) error {
	return r.linkPermissions(ctx, roleID, "id IN ?", permIDs, false)
}

func (r *roleRepository) linkPermissions(ctx context.Context, roleID uuid.UUID, cond string, arg any, replace bool) error {
	db := GetDB(ctx, r.db)
	role := model.Role{}
	if err := db.Take(&role, "id = ?", roleID).Error; err != nil {
		return err
	}

	var perms []model.Permission
	if err := db.Where(cond, arg).Find(&perms).Error; err != nil {
		return err
	}

	assoc := db.Model(&role).Association("Permissions")
	if replace {
		return assoc.Replace(perms)
	}
	return assoc.Append(perms)
}
