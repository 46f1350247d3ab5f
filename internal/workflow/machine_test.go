package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/model"
)

func TestResolve(t *testing.T) {
	t.Run("valid transition", func(t *testing.T) {
		tr, err := VoucherFlow.Resolve(model.VoucherForAudit, ActionAudit, model.RoleAccounting)
		require.NoError(t, err)
		assert.Equal(t, model.VoucherForCheck, tr.To)
		assert.True(t, tr.Reauth)
	})

	t.Run("auditing a voucher already forCheck is a state conflict", func(t *testing.T) {
		_, err := VoucherFlow.Resolve(model.VoucherForCheck, ActionAudit, model.RoleAccounting)
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.True(t, errors.Is(err, ErrStateConflict))
		assert.Equal(t, model.VoucherForCheck, te.From)
	})

	t.Run("auditing a rejected voucher is a state conflict", func(t *testing.T) {
		_, err := VoucherFlow.Resolve(model.VoucherRejected, ActionAudit, model.RoleAccounting)
		assert.ErrorIs(t, err, ErrStateConflict)
	})

	t.Run("wrong role", func(t *testing.T) {
		_, err := CanvasFlow.Resolve(model.CanvasSubmitted, ActionApprove, model.RoleAccounting)
		var re *RoleError
		require.ErrorAs(t, err, &re)
		assert.ErrorIs(t, err, ErrRoleNotAllowed)
	})

	t.Run("admin passes role gates", func(t *testing.T) {
		_, err := CanvasFlow.Resolve(model.CanvasSubmitted, ActionApprove, model.RoleAdmin)
		assert.NoError(t, err)
	})

	t.Run("open transitions accept any role", func(t *testing.T) {
		_, err := PettyCashFlow.Resolve(model.PettyCashDraft, ActionSubmit, model.RoleStaff)
		assert.NoError(t, err)
	})
}

func TestCanvasRoleGates(t *testing.T) {
	// purchasing may only submit a draft
	assert.Equal(t, []Action{ActionSubmit}, CanvasFlow.Available(model.CanvasDraft, model.RolePurchasing))
	assert.Empty(t, CanvasFlow.Available(model.CanvasSubmitted, model.RolePurchasing))

	// accounting never reaches approved
	for _, status := range CanvasFlow.Statuses() {
		for _, action := range CanvasFlow.Available(status, model.RoleAccounting) {
			tr, err := CanvasFlow.Resolve(status, action, model.RoleAccounting)
			require.NoError(t, err)
			assert.NotEqual(t, model.CanvasApproved, tr.To)
		}
	}

	// accounting records its decision through review only
	_, err := CanvasFlow.Resolve(model.CanvasSubmitted, ActionReject, model.RoleAccounting)
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
	_, err = CanvasFlow.Resolve(model.CanvasPendingApproval, ActionReject, model.RoleAccounting)
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	rejected, err := CanvasFlow.Resolve(model.CanvasSubmitted, ActionReject, model.RoleExecutiveDirector)
	require.NoError(t, err)
	assert.Equal(t, model.CanvasRejected, rejected.To)

	// only the executive director moves a canvas to approved
	tr, err := CanvasFlow.Resolve(model.CanvasPendingApproval, ActionApprove, model.RoleExecutiveDirector)
	require.NoError(t, err)
	assert.Equal(t, model.CanvasApproved, tr.To)
}

func TestRequiresReauth(t *testing.T) {
	assert.True(t, OrderFlow.RequiresReauth(ActionSubmitEOD))
	assert.True(t, OrderFlow.RequiresReauth(ActionSubmitPO))
	assert.False(t, OrderFlow.RequiresReauth(ActionReject))
	assert.True(t, VoucherFlow.RequiresReauth(ActionAudit))
	assert.False(t, VoucherFlow.RequiresReauth(ActionSubmit))
}

func TestTerminalStatuses(t *testing.T) {
	cases := []struct {
		machine  *Machine
		terminal []string
	}{
		{RequestFlow, []string{model.RequestStatusRejected, model.RequestStatusPropertyCustodian}},
		{OrderFlow, []string{model.OrderCompleted, model.OrderRejected}},
		{CanvasFlow, []string{model.CanvasRejected, model.CanvasPOCreated}},
		{PurchaseOrderFlow, []string{model.POCompleted, model.PORejected}},
		{VoucherFlow, []string{model.VoucherPaid, model.VoucherRejected}},
		{PettyCashFlow, []string{model.PettyCashApprovedLiquidation}},
	}

	for _, tc := range cases {
		t.Run(tc.machine.Entity(), func(t *testing.T) {
			for _, status := range tc.machine.Statuses() {
				want := false
				for _, s := range tc.terminal {
					if s == status {
						want = true
					}
				}
				assert.Equal(t, want, tc.machine.IsTerminal(status), status)
			}
		})
	}
}

func TestNoRowTargetsOrderCompleted(t *testing.T) {
	for _, status := range OrderFlow.Statuses() {
		for _, action := range OrderFlow.Available(status, model.RoleAdmin) {
			tr, err := OrderFlow.Resolve(status, action, model.RoleAdmin)
			require.NoError(t, err)
			assert.NotEqual(t, model.OrderCompleted, tr.To)
		}
	}
}

func TestRejectReachableFromOpenStates(t *testing.T) {
	for _, status := range []string{model.VoucherPending, model.VoucherForAudit, model.VoucherForCheck, model.VoucherForEOD, model.VoucherUnreleased} {
		tr, err := VoucherFlow.Resolve(status, ActionReject, model.RoleExecutiveDirector)
		require.NoError(t, err, status)
		assert.Equal(t, model.VoucherRejected, tr.To)
	}
	_, err := VoucherFlow.Resolve(model.VoucherPaid, ActionReject, model.RoleExecutiveDirector)
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestNewMachinePanicsOnBadTable(t *testing.T) {
	assert.Panics(t, func() {
		NewMachine("x", []string{"a", "b"},
			Transition{From: "a", Action: ActionSubmit, To: "b"},
			Transition{From: "a", Action: ActionSubmit, To: "b"},
		)
	})
	assert.Panics(t, func() {
		NewMachine("x", []string{"a"}, Transition{From: "a", Action: ActionSubmit, To: "zzz"})
	})
}
