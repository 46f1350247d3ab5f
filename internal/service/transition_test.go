package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/model"
	"procurement/internal/workflow"
)

func TestEngine_WrongPasswordLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	order := h.order(3)
	purchasing := h.user(model.RolePurchasing)
	id := uuid.MustParse(order.ID)
	auditBefore := h.auditCount(model.LogOrder, order.ID)

	_, err := h.orders.TransitionOrder(h.ctx, purchasing, id, TransitionRequest{Action: "submit_eod", Password: "wrong"})
	var reauth *ReauthError
	require.ErrorAs(t, err, &reauth)
	assert.Equal(t, "password", reauth.Field)

	got, err := h.orders.GetOrder(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, got.Status)
	assert.Equal(t, int64(0), h.approvalCount(model.SubjectOrder, order.ID))
	assert.Equal(t, auditBefore, h.auditCount(model.LogOrder, order.ID))
	assert.Empty(t, h.broadcaster.events)
	assert.Empty(t, h.recorder.transitions)

	res, err := h.orders.TransitionOrder(h.ctx, purchasing, id, TransitionRequest{Action: "submit_eod", Password: testPassword, Remarks: "for EOD"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, res.From)
	assert.Equal(t, model.OrderForEOD, res.Status)
	assert.Equal(t, int64(1), h.approvalCount(model.SubjectOrder, order.ID))
	assert.Equal(t, auditBefore+1, h.auditCount(model.LogOrder, order.ID))

	require.Len(t, h.broadcaster.events, 1)
	event := h.broadcaster.events[0].(TransitionEvent)
	assert.Equal(t, "workflow.transition", event.Type)
	assert.Equal(t, id, event.ID)
	assert.Equal(t, model.OrderForEOD, event.Status)
}

func TestEngine_RoleAndStateErrorsAreDistinct(t *testing.T) {
	h := newHarness(t)
	order := h.order(1)
	id := uuid.MustParse(order.ID)

	_, err := h.orders.TransitionOrder(h.ctx, h.user(model.RoleStaff), id, TransitionRequest{Action: "submit_eod", Password: testPassword})
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = h.orders.TransitionOrder(h.ctx, h.user(model.RoleExecutiveDirector), id, TransitionRequest{Action: "approve"})
	var terr *workflow.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, ErrStateConflict)

	_, err = h.orders.TransitionOrder(h.ctx, h.user(model.RoleAdmin), id, TransitionRequest{Action: "reject"})
	require.NoError(t, err)
	_, err = h.orders.TransitionOrder(h.ctx, h.user(model.RoleAdmin), id, TransitionRequest{Action: "reject"})
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestRequest_ApprovalThenOrderingMovesRequestToOrder(t *testing.T) {
	h := newHarness(t)
	staff := h.staffWithDepartment()
	director := h.user(model.RoleExecutiveDirector)
	purchasing := h.user(model.RolePurchasing)

	req, err := h.requests.CreateRequest(h.ctx, staff, CreateRequestRequest{
		Purpose: "quarterly supplies",
		Details: []RequestLineInput{
			{Quantity: 10, Unit: "ream", Description: "bond paper"},
			{Quantity: 5, Unit: "box", Description: "ballpen"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, req.Status)
	assert.Regexp(t, `^REQ-\d{8}-\d{4}$`, req.RequestNo)
	id := uuid.MustParse(req.ID)

	// to_order is reached only by building an order from the lines
	_, err = h.requests.TransitionRequest(h.ctx, purchasing, id, TransitionRequest{Action: "order"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = h.requests.TransitionRequest(h.ctx, director, id, TransitionRequest{Action: "approve", Remarks: "ok"})
	require.NoError(t, err)
	require.Len(t, h.notifier.sent, 1)
	assert.Contains(t, h.notifier.sent[0].To, "staff-")

	_, err = h.requests.UpdateRequest(h.ctx, staff, id, UpdateRequestRequest{Purpose: strPtr("changed")})
	require.ErrorIs(t, err, ErrStateConflict, "approved requests are read-only")

	order, err := h.orders.CreateOrder(h.ctx, purchasing, CreateOrderRequest{
		RequestDetailIDs: []string{req.Details[0].ID, req.Details[1].ID},
	})
	require.NoError(t, err)
	assert.Len(t, order.Details, 2)

	got, err := h.requests.GetRequest(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusToOrder, got.Status)
	for _, d := range got.Details {
		require.NotNil(t, d.Tagging)
		assert.Equal(t, model.TaggingForPurchase, *d.Tagging)
	}

	history, err := h.requests.GetApprovals(h.ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RequestStatusToOrder, history[1].Status)
	assert.Equal(t, "ordered in "+order.OrderNo, history[1].Remarks)

	_, err = h.orders.CreateOrder(h.ctx, purchasing, CreateOrderRequest{RequestDetailIDs: []string{req.Details[0].ID}})
	assert.ErrorIs(t, err, ErrStateConflict, "a line can only be ordered once")
}

func TestRequest_PendingLinesCannotBeOrdered(t *testing.T) {
	h := newHarness(t)
	staff := h.staffWithDepartment()
	req, err := h.requests.CreateRequest(h.ctx, staff, CreateRequestRequest{
		Details: []RequestLineInput{{Quantity: 1, Unit: "pc", Description: "stapler"}},
	})
	require.NoError(t, err)

	_, err = h.orders.CreateOrder(h.ctx, h.user(model.RolePurchasing), CreateOrderRequest{
		RequestDetailIDs: []string{req.Details[0].ID},
	})
	assert.ErrorIs(t, err, ErrStateConflict)

	got, err := h.requests.GetRequest(h.ctx, uuid.MustParse(req.ID))
	require.NoError(t, err)
	assert.Nil(t, got.Details[0].Tagging, "the failed order must not tag the line")
}

func strPtr(s string) *string {
	return &s
}
