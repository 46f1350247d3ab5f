package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/model"
)

func voucherLines(accountID uuid.UUID, amounts ...string) []VoucherLineInput {
	lines := make([]VoucherLineInput, 0, len(amounts))
	for _, a := range amounts {
		lines = append(lines, VoucherLineInput{AccountID: accountID.String(), ChargingTag: "OPS", Amount: a})
	}
	return lines
}

func TestCreateVoucher_CheckAmountTolerance(t *testing.T) {
	h := newHarness(t)
	accounting := h.user(model.RoleAccounting)
	acct := h.account("5-01")

	cases := []struct {
		name    string
		check   string
		amounts []string
		ok      bool
	}{
		{"exact", "100.00", []string{"60.00", "40.00"}, true},
		{"half a cent off", "100.00", []string{"60.00", "39.995"}, true},
		{"one cent off", "100.00", []string{"60.00", "40.01"}, false},
		{"short by a peso", "100.00", []string{"60.00", "39.00"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := h.vouchers.CreateVoucher(h.ctx, accounting, CreateVoucherRequest{
				Payee:       "Acme Trading",
				CheckAmount: tc.check,
				Details:     voucherLines(acct, tc.amounts...),
			})
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, model.VoucherPending, v.Status)
				assert.Equal(t, "100.00", v.CheckAmount)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "check_amount")
		})
	}
}

func TestCreateVoucher_RejectsUnknownAccountAndWrongRole(t *testing.T) {
	h := newHarness(t)

	_, err := h.vouchers.CreateVoucher(h.ctx, h.user(model.RoleAccounting), CreateVoucherRequest{
		Payee:       "Acme",
		CheckAmount: "10",
		Details:     voucherLines(uuid.New(), "10"),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "details")

	_, err = h.vouchers.CreateVoucher(h.ctx, h.user(model.RolePurchasing), CreateVoucherRequest{
		Payee:       "Acme",
		CheckAmount: "10",
		Details:     voucherLines(h.account("5-02"), "10"),
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVoucher_FullLifecycleFromPurchaseOrder(t *testing.T) {
	h := newHarness(t)
	purchasing := h.user(model.RolePurchasing)
	director := h.user(model.RoleExecutiveDirector)
	accounting := h.user(model.RoleAccounting)
	bursar := h.user(model.RoleBursar)
	supplierID := h.supplier("Acme Trading", "billing@acme.test")
	acct := h.account("5-10")

	po, err := h.pos.CreatePurchaseOrder(h.ctx, purchasing, CreatePurchaseOrderRequest{
		SupplierID: supplierID.String(),
		Details: []PurchaseOrderLineInput{
			{Quantity: 4, Unit: "box", Description: "bond paper", UnitPrice: "250.00", Amount: "1000.00"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Trading", po.Payee)
	poID := uuid.MustParse(po.ID)

	// a draft purchase order cannot be vouchered yet
	_, err = h.vouchers.CreateVoucher(h.ctx, accounting, CreateVoucherRequest{
		PurchaseOrderID: po.ID, CheckAmount: "1000.00", Details: voucherLines(acct, "1000.00"),
	})
	require.ErrorIs(t, err, ErrStateConflict)

	_, err = h.pos.TransitionPurchaseOrder(h.ctx, purchasing, poID, TransitionRequest{Action: "submit"})
	require.NoError(t, err)
	_, err = h.pos.TransitionPurchaseOrder(h.ctx, director, poID, TransitionRequest{Action: "approve"})
	require.NoError(t, err)

	v, err := h.vouchers.CreateVoucher(h.ctx, accounting, CreateVoucherRequest{
		PurchaseOrderID: po.ID, CheckAmount: "1000.00", Details: voucherLines(acct, "600.00", "400.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Trading", v.Payee)
	assert.Equal(t, po.PONo, v.PONo)
	assert.Regexp(t, `^V-\d{4}-0001$`, v.VoucherNo)

	_, err = h.vouchers.CreateVoucher(h.ctx, accounting, CreateVoucherRequest{
		PurchaseOrderID: po.ID, CheckAmount: "1.00", Details: voucherLines(acct, "1.00"),
	})
	require.ErrorIs(t, err, ErrStateConflict, "one voucher per purchase order")

	id := uuid.MustParse(v.ID)
	step := func(p Principal, req TransitionRequest) *TransitionResponse {
		t.Helper()
		res, err := h.vouchers.TransitionVoucher(h.ctx, p, id, req)
		require.NoError(t, err)
		return res
	}

	step(accounting, TransitionRequest{Action: "submit"})

	_, err = h.vouchers.TransitionVoucher(h.ctx, accounting, id, TransitionRequest{Action: "audit"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")

	step(accounting, TransitionRequest{Action: "audit", Password: testPassword})

	_, err = h.vouchers.TransitionVoucher(h.ctx, accounting, id, TransitionRequest{Action: "audit", Password: testPassword})
	require.ErrorIs(t, err, ErrStateConflict, "auditing twice is a state conflict")

	_, err = h.vouchers.TransitionVoucher(h.ctx, accounting, id, TransitionRequest{Action: "prepare_check"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "check_no")

	step(accounting, TransitionRequest{Action: "prepare_check", CheckNo: "CHK-000123"})
	step(director, TransitionRequest{Action: "approve"})
	step(bursar, TransitionRequest{Action: "release"})
	res := step(bursar, TransitionRequest{Action: "pay", Remarks: "handed over"})
	assert.Equal(t, model.VoucherPaid, res.Status)

	got, err := h.vouchers.GetVoucher(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "CHK-000123", got.CheckNo)
	assert.Equal(t, model.VoucherPaid, got.Status)

	history, err := h.vouchers.GetApprovals(h.ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, model.VoucherPaid, history[5].Status)
	assert.Equal(t, "handed over", history[5].Remarks)

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, "billing@acme.test", h.notifier.sent[0].To)
	assert.Contains(t, h.notifier.sent[0].Body, "CHK-000123")
	assert.Zero(t, h.recorder.mailFailed)
}

func TestVoucher_RejectedIsTerminal(t *testing.T) {
	h := newHarness(t)
	accounting := h.user(model.RoleAccounting)
	v, err := h.vouchers.CreateVoucher(h.ctx, accounting, CreateVoucherRequest{
		Payee: "Walk-in", CheckAmount: "50", Details: voucherLines(h.account("5-20"), "50"),
	})
	require.NoError(t, err)
	id := uuid.MustParse(v.ID)

	_, err = h.vouchers.TransitionVoucher(h.ctx, h.user(model.RoleExecutiveDirector), id, TransitionRequest{Action: "reject"})
	require.NoError(t, err)

	_, err = h.vouchers.TransitionVoucher(h.ctx, accounting, id, TransitionRequest{Action: "submit"})
	assert.ErrorIs(t, err, ErrStateConflict)
}
