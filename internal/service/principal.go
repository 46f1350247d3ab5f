package service

import (
	"slices"

	"procurement/internal/model"

	"github.com/google/uuid"
)

// Principal is the authenticated actor of an operation. Handlers build it from the
// token; services never read identity from ambient state.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

// requireRole lets admin and any of roles through
func requireRole(p Principal, roles ...string) error {
	if p.IsAdmin() || slices.Contains(roles, p.Role) {
		return nil
	}
	return ErrForbidden
}
