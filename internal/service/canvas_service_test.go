package service

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/model"
)

func upload(name, body string) FileUpload {
	return FileUpload{Filename: name, ContentType: "application/pdf", Size: int64(len(body)), Content: strings.NewReader(body)}
}

func TestCanvas_DirectorSelectsWinningQuotation(t *testing.T) {
	h := newHarness(t)
	purchasing := h.user(model.RolePurchasing)
	accounting := h.user(model.RoleAccounting)
	director := h.user(model.RoleExecutiveDirector)
	supplierA := h.supplier("Alpha Supplies", "")
	supplierB := h.supplier("Beta Traders", "")

	canvas, err := h.canvases.CreateCanvas(h.ctx, purchasing, CreateCanvasRequest{Title: "Office chairs"})
	require.NoError(t, err)
	id := uuid.MustParse(canvas.ID)

	_, err = h.canvases.TransitionCanvas(h.ctx, purchasing, id, TransitionRequest{Action: "submit"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr, "a canvas without quotations cannot be submitted")

	_, err = h.canvases.UploadFile(h.ctx, purchasing, id, supplierA.String(), upload("alpha.pdf", "quote A"))
	require.NoError(t, err)
	fileB, err := h.canvases.UploadFile(h.ctx, purchasing, id, supplierB.String(), upload("beta.pdf", "quote B"))
	require.NoError(t, err)

	_, err = h.canvases.TransitionCanvas(h.ctx, purchasing, id, TransitionRequest{Action: "submit"})
	require.NoError(t, err)

	// uploads close once the canvas leaves draft
	_, err = h.canvases.UploadFile(h.ctx, purchasing, id, "", upload("late.pdf", "late"))
	require.ErrorIs(t, err, ErrStateConflict)

	res, err := h.canvases.TransitionCanvas(h.ctx, accounting, id, TransitionRequest{Action: "review", Remarks: "prices checked"})
	require.NoError(t, err)
	assert.Equal(t, model.CanvasPendingApproval, res.Status)

	_, err = h.canvases.TransitionCanvas(h.ctx, accounting, id, TransitionRequest{Action: "approve", FileID: fileB.ID})
	require.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = h.canvases.TransitionCanvas(h.ctx, director, id, TransitionRequest{Action: "approve"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "selected_file_id")

	res, err = h.canvases.TransitionCanvas(h.ctx, director, id, TransitionRequest{Action: "approve", FileID: fileB.ID, Remarks: "best value"})
	require.NoError(t, err)
	assert.Equal(t, model.CanvasApproved, res.Status)

	got, err := h.canvases.GetCanvas(h.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.SelectedFile)
	assert.Equal(t, fileB.ID, got.SelectedFile.CanvasFileID)

	approvals, err := h.canvases.GetApprovals(h.ctx, id)
	require.NoError(t, err)
	roles := lo.Map(approvals, func(a CanvasApprovalResponse, _ int) string { return a.Role })
	assert.ElementsMatch(t, []string{model.RoleAccounting, model.RoleExecutiveDirector}, roles)

	// create, submit, review and approve at least; failed attempts leave nothing
	assert.GreaterOrEqual(t, h.auditCount(model.LogCanvas, canvas.ID), int64(4))

	rc, meta, err := h.canvases.DownloadFile(h.ctx, id, uuid.MustParse(fileB.ID))
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "quote B", string(body))
	assert.Equal(t, "beta.pdf", meta.OriginalName)
}

func TestCanvas_ReviewTwiceOverwritesTheRoleDecision(t *testing.T) {
	h := newHarness(t)
	purchasing := h.user(model.RolePurchasing)
	accounting := h.user(model.RoleAccounting)

	canvas, err := h.canvases.CreateCanvas(h.ctx, purchasing, CreateCanvasRequest{Title: "Printer toner"})
	require.NoError(t, err)
	id := uuid.MustParse(canvas.ID)
	_, err = h.canvases.UploadFile(h.ctx, purchasing, id, "", upload("q.pdf", "q"))
	require.NoError(t, err)
	_, err = h.canvases.TransitionCanvas(h.ctx, purchasing, id, TransitionRequest{Action: "submit"})
	require.NoError(t, err)

	_, err = h.canvases.TransitionCanvas(h.ctx, accounting, id, TransitionRequest{Action: "review", Remarks: "first"})
	require.NoError(t, err)
	res, err := h.canvases.TransitionCanvas(h.ctx, accounting, id, TransitionRequest{
		Action: "review", Remarks: "second", Approved: lo.ToPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, model.CanvasPendingApproval, res.Status, "an unfavourable review is not terminal")

	approvals, err := h.canvases.GetApprovals(h.ctx, id)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "second", approvals[0].Comments)
	assert.False(t, approvals[0].Approved)
}

func TestCanvas_OnlyTheDirectorRejects(t *testing.T) {
	h := newHarness(t)
	purchasing := h.user(model.RolePurchasing)
	accounting := h.user(model.RoleAccounting)
	director := h.user(model.RoleExecutiveDirector)

	canvas, err := h.canvases.CreateCanvas(h.ctx, purchasing, CreateCanvasRequest{Title: "Projector"})
	require.NoError(t, err)
	id := uuid.MustParse(canvas.ID)
	_, err = h.canvases.UploadFile(h.ctx, purchasing, id, "", upload("q.pdf", "q"))
	require.NoError(t, err)
	_, err = h.canvases.TransitionCanvas(h.ctx, purchasing, id, TransitionRequest{Action: "submit"})
	require.NoError(t, err)

	_, err = h.canvases.TransitionCanvas(h.ctx, accounting, id, TransitionRequest{Action: "reject"})
	require.ErrorIs(t, err, ErrRoleNotAllowed)

	got, err := h.canvases.GetCanvas(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.CanvasSubmitted, got.Status)

	res, err := h.canvases.TransitionCanvas(h.ctx, director, id, TransitionRequest{Action: "reject", Remarks: "over budget"})
	require.NoError(t, err)
	assert.Equal(t, model.CanvasRejected, res.Status)
}

func TestCanvas_AdminApprovalIsRecordedForTheDirector(t *testing.T) {
	h := newHarness(t)
	purchasing := h.user(model.RolePurchasing)
	admin := h.user(model.RoleAdmin)

	canvas, err := h.canvases.CreateCanvas(h.ctx, purchasing, CreateCanvasRequest{Title: "Laptops"})
	require.NoError(t, err)
	id := uuid.MustParse(canvas.ID)
	file, err := h.canvases.UploadFile(h.ctx, purchasing, id, "", upload("q.pdf", "q"))
	require.NoError(t, err)
	_, err = h.canvases.TransitionCanvas(h.ctx, purchasing, id, TransitionRequest{Action: "submit"})
	require.NoError(t, err)

	_, err = h.canvases.TransitionCanvas(h.ctx, admin, id, TransitionRequest{Action: "approve", FileID: file.ID})
	require.NoError(t, err)

	approvals, err := h.canvases.GetApprovals(h.ctx, id)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, model.RoleExecutiveDirector, approvals[0].Role)
	assert.Equal(t, admin.UserID.String(), approvals[0].UserID)
}

func TestCanvas_PurchaseOrderConsumesApprovedCanvasOnce(t *testing.T) {
	h := newHarness(t)
	purchasing := h.user(model.RolePurchasing)
	director := h.user(model.RoleExecutiveDirector)

	canvas, err := h.canvases.CreateCanvas(h.ctx, purchasing, CreateCanvasRequest{Title: "Laptops"})
	require.NoError(t, err)
	id := uuid.MustParse(canvas.ID)
	file, err := h.canvases.UploadFile(h.ctx, purchasing, id, "", upload("q.pdf", "q"))
	require.NoError(t, err)
	_, err = h.canvases.TransitionCanvas(h.ctx, purchasing, id, TransitionRequest{Action: "submit"})
	require.NoError(t, err)

	_, err = h.canvases.TransitionCanvas(h.ctx, purchasing, id, TransitionRequest{Action: "create_po"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = h.canvases.TransitionCanvas(h.ctx, director, id, TransitionRequest{Action: "approve", FileID: file.ID})
	require.NoError(t, err)

	req := CreatePurchaseOrderRequest{
		CanvasID: canvas.ID,
		Payee:    "Gamma Computers",
		Details: []PurchaseOrderLineInput{
			{Quantity: 2, Unit: "unit", Description: "laptop", UnitPrice: "45000.00", Amount: "90000.00"},
		},
	}
	po, err := h.pos.CreatePurchaseOrder(h.ctx, purchasing, req)
	require.NoError(t, err)
	assert.Equal(t, "90000.00", po.TotalAmount)

	got, err := h.canvases.GetCanvas(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.CanvasPOCreated, got.Status)

	_, err = h.pos.CreatePurchaseOrder(h.ctx, purchasing, req)
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestCreatePurchaseOrder_LineAmountMustMatch(t *testing.T) {
	h := newHarness(t)
	_, err := h.pos.CreatePurchaseOrder(h.ctx, h.user(model.RolePurchasing), CreatePurchaseOrderRequest{
		Payee: "Delta",
		Details: []PurchaseOrderLineInput{
			{Quantity: 3, Unit: "pc", Description: "stapler", UnitPrice: "100.00", Amount: "250.00"},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
