package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrStateConflict is wrapped by every rejected transition.
	ErrStateConflict = errors.New("state conflict")
	// ErrRoleNotAllowed is wrapped when the actor's role may not fire the action.
	ErrRoleNotAllowed = errors.New("role not allowed")
	// ErrInvalidLine marks a release line that is malformed or foreign to the order.
	ErrInvalidLine = errors.New("invalid release line")
)

// TransitionError reports an action that has no row for the entity's current status.
type TransitionError struct {
	Entity string
	From   string
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is already %s: cannot %s", e.Entity, e.From, e.Action)
}

func (e *TransitionError) Unwrap() error { return ErrStateConflict }

type RoleError struct {
	Entity string
	Role   string
	Action Action
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("role %q may not %s a %s", e.Role, e.Action, e.Entity)
}

func (e *RoleError) Unwrap() error { return ErrRoleNotAllowed }

// QuantityConflictError aborts a release batch that would exceed what remains on a line.
type QuantityConflictError struct {
	DetailID    uuid.UUID
	Description string
	Remaining   int
	Requested   int
}

func (e *QuantityConflictError) Error() string {
	return fmt.Sprintf("cannot release %d of %q (detail %s): only %d remaining",
		e.Requested, e.Description, e.DetailID, e.Remaining)
}
