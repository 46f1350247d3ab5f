package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/model"
	"procurement/internal/repository"
)

func TestDocumentKind_Prefix(t *testing.T) {
	at := time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "REQ-20260209-", DocRequest.Prefix(at))
	assert.Equal(t, "ORD-202602", DocOrder.Prefix(at))
	assert.Equal(t, "PO-2026-", DocPurchaseOrder.Prefix(at))
	assert.Equal(t, "V-2026-", DocVoucher.Prefix(at))
	assert.Equal(t, "PCV-2026-", DocPettyCash.Prefix(at))

	assert.Equal(t, "V-2026-0042", FormatNumber("V-2026-", 42))
	assert.Equal(t, "V-2026-12345", FormatNumber("V-2026-", 12345))
}

func TestNumberer_MonotonicWithinPrefix(t *testing.T) {
	h := newHarness(t)
	h.numberer.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }
	accounting := h.user(model.RoleAccounting)
	acct := h.account("5-30")

	var numbers []string
	for i := 0; i < 3; i++ {
		v, err := h.vouchers.CreateVoucher(h.ctx, accounting, CreateVoucherRequest{
			Payee: "Payee", CheckAmount: "1.00", Details: voucherLines(acct, "1.00"),
		})
		require.NoError(t, err)
		numbers = append(numbers, v.VoucherNo)
	}
	assert.Equal(t, []string{"V-2026-0001", "V-2026-0002", "V-2026-0003"}, numbers)
}

func TestNumberer_RetriesPastATakenNumber(t *testing.T) {
	h := newHarness(t)
	h.numberer.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }
	purchasing := h.user(model.RolePurchasing)

	// a row imported outside the counter already holds the first number
	taken := &model.RequestToOrder{OrderNo: "ORD-2026050001", Status: model.OrderPending, CreatedBy: purchasing.UserID}
	require.NoError(t, h.orderRepo.Create(h.ctx, taken))

	order, err := h.orders.CreateOrder(h.ctx, purchasing, CreateOrderRequest{
		Lines: []RequestLineInput{{Quantity: 1, Unit: "pc", Description: "mouse"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026050002", order.OrderNo)
}

func TestNumberer_ReturnsOtherInsertErrorsAtOnce(t *testing.T) {
	h := newHarness(t)
	tx := repository.NewTransactionManager(h.db)

	calls := 0
	err := tx.RunInTx(h.ctx, func(txCtx context.Context) error {
		_, err := h.numberer.Issue(txCtx, DocVoucher, func(string) error {
			calls++
			return repository.ErrNotFound
		})
		return err
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, calls)
}
