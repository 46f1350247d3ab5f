// Package workflow declares the status machines of every ledger family and the pure
// functions derived from them. Nothing in here touches the database.
package workflow

import (
	"fmt"
	"slices"

	"procurement/internal/model"
)

type Action string

const (
	ActionSubmit             Action = "submit"
	ActionApprove            Action = "approve"
	ActionReject             Action = "reject"
	ActionOrder              Action = "order"
	ActionCustody            Action = "custody"
	ActionSubmitEOD          Action = "submit_eod"
	ActionSubmitPO           Action = "submit_po"
	ActionReview             Action = "review"
	ActionCreatePO           Action = "create_po"
	ActionComplete           Action = "complete"
	ActionAudit              Action = "audit"
	ActionPrepareCheck       Action = "prepare_check"
	ActionRelease            Action = "release"
	ActionPay                Action = "pay"
	ActionLiquidate          Action = "liquidate"
	ActionApproveLiquidation Action = "approve_liquidation"
	ActionReturn             Action = "return"
)

// Transition is one row of a status table: from a source status, an action leads to a
// target status. Roles lists who may fire it (empty means any authenticated user) and
// Reauth marks transitions that need the actor's password again.
type Transition struct {
	From   string
	Action Action
	To     string
	Roles  []string
	Reauth bool
}

type transitionKey struct {
	from   string
	action Action
}

// Machine is an immutable transition table for one entity family.
type Machine struct {
	entity      string
	statuses    []string
	transitions map[transitionKey]Transition
}

// NewMachine builds a machine over the given statuses. It panics on a row that names an
// undeclared status or repeats a (from, action) pair, since tables are package-level literals.
func NewMachine(entity string, statuses []string, rows ...Transition) *Machine {
	m := &Machine{
		entity:      entity,
		statuses:    statuses,
		transitions: make(map[transitionKey]Transition, len(rows)),
	}
	for _, row := range rows {
		if !slices.Contains(statuses, row.From) || !slices.Contains(statuses, row.To) {
			panic(fmt.Sprintf("workflow: %s transition %s -> %s uses an undeclared status", entity, row.From, row.To))
		}
		key := transitionKey{from: row.From, action: row.Action}
		if _, dup := m.transitions[key]; dup {
			panic(fmt.Sprintf("workflow: %s declares %s from %s twice", entity, row.Action, row.From))
		}
		m.transitions[key] = row
	}
	return m
}

// from expands one row per source status
func from(sources []string, action Action, to string, roles []string, reauth bool) []Transition {
	rows := make([]Transition, 0, len(sources))
	for _, src := range sources {
		rows = append(rows, Transition{From: src, Action: action, To: to, Roles: roles, Reauth: reauth})
	}
	return rows
}

func (m *Machine) Entity() string { return m.entity }

func (m *Machine) Statuses() []string { return slices.Clone(m.statuses) }

// Resolve returns the transition for firing action on an entity currently in status current.
func (m *Machine) Resolve(current string, action Action, role string) (Transition, error) {
	t, ok := m.transitions[transitionKey{from: current, action: action}]
	if !ok {
		return Transition{}, &TransitionError{Entity: m.entity, From: current, Action: action}
	}
	if !roleAllowed(t.Roles, role) {
		return Transition{}, &RoleError{Entity: m.entity, Role: role, Action: action}
	}
	return t, nil
}

// RequiresReauth reports whether any row for action demands re-authentication. Callers check
// this before opening a transaction so a bad password leaves no trace.
func (m *Machine) RequiresReauth(action Action) bool {
	for key, t := range m.transitions {
		if key.action == action && t.Reauth {
			return true
		}
	}
	return false
}

// Available lists the actions role can fire from current, in a stable order.
func (m *Machine) Available(current, role string) []Action {
	var actions []Action
	for key, t := range m.transitions {
		if key.from == current && roleAllowed(t.Roles, role) {
			actions = append(actions, key.action)
		}
	}
	slices.Sort(actions)
	return actions
}

// IsTerminal reports whether no action leaves status.
func (m *Machine) IsTerminal(status string) bool {
	for key := range m.transitions {
		if key.from == status {
			return false
		}
	}
	return true
}

func roleAllowed(roles []string, role string) bool {
	if role == model.RoleAdmin || len(roles) == 0 {
		return true
	}
	return slices.Contains(roles, role)
}
