package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/model"
	"procurement/internal/repository"
)

func TestDashboard_CountsPerFamilyAndStatus(t *testing.T) {
	h := newHarness(t)
	accounting := h.user(model.RoleAccounting)
	acct := h.account("5-40")

	for i := 0; i < 2; i++ {
		_, err := h.vouchers.CreateVoucher(h.ctx, accounting, CreateVoucherRequest{
			Payee: "Payee", CheckAmount: "25.00", Details: voucherLines(acct, "25.00"),
		})
		require.NoError(t, err)
	}
	h.order(3)

	summary, err := NewDashboardService(repository.NewDashboardRepository(h.db)).Summary(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.Families["vouchers"].Total)
	assert.Equal(t, int64(2), summary.Families["vouchers"].ByStatus[model.VoucherPending])
	assert.Equal(t, int64(1), summary.Families["orders"].ByStatus[model.OrderPending])
	assert.Zero(t, summary.Families["canvases"].Total)
	// nothing is paid or released yet
	assert.Equal(t, "0.00", summary.VouchersPaid)
	assert.Equal(t, "0.00", summary.PettyCashReleased)
	assert.NotEmpty(t, summary.GeneratedAt)
}
