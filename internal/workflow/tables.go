package workflow

import "procurement/internal/model"

var (
	approvers      = []string{model.RoleExecutiveDirector, model.RolePropertyCustodian}
	purchasing     = []string{model.RolePurchasing}
	accounting     = []string{model.RoleAccounting}
	director       = []string{model.RoleExecutiveDirector}
	bursar         = []string{model.RoleBursar}
	custodian      = []string{model.RolePropertyCustodian}
	financeSignoff = []string{model.RoleAccounting, model.RoleExecutiveDirector}
)

// RequestFlow: pending -> approved -> to_order -> propertyCustodian, or rejected from pending.
var RequestFlow = NewMachine("request",
	[]string{
		model.RequestStatusPending, model.RequestStatusApproved, model.RequestStatusToOrder,
		model.RequestStatusPropertyCustodian, model.RequestStatusRejected,
	},
	Transition{From: model.RequestStatusPending, Action: ActionApprove, To: model.RequestStatusApproved, Roles: approvers},
	Transition{From: model.RequestStatusPending, Action: ActionReject, To: model.RequestStatusRejected, Roles: approvers},
	Transition{From: model.RequestStatusApproved, Action: ActionOrder, To: model.RequestStatusToOrder, Roles: purchasing},
	Transition{From: model.RequestStatusToOrder, Action: ActionCustody, To: model.RequestStatusPropertyCustodian, Roles: custodian},
)

// OrderFlow: pending -> forEOD -> forPO -> approved. Completed is reached only through
// RecomputeOrderStatus, so no row targets it.
var OrderFlow = NewMachine("order",
	[]string{
		model.OrderPending, model.OrderForEOD, model.OrderForPO,
		model.OrderApproved, model.OrderCompleted, model.OrderRejected,
	},
	append([]Transition{
		{From: model.OrderPending, Action: ActionSubmitEOD, To: model.OrderForEOD, Roles: purchasing, Reauth: true},
		{From: model.OrderForEOD, Action: ActionSubmitPO, To: model.OrderForPO, Roles: director, Reauth: true},
		{From: model.OrderForPO, Action: ActionApprove, To: model.OrderApproved, Roles: director},
	}, from(
		[]string{model.OrderPending, model.OrderForEOD, model.OrderForPO, model.OrderApproved},
		ActionReject, model.OrderRejected, []string{model.RoleExecutiveDirector, model.RolePurchasing}, false,
	)...)...,
)

// CanvasFlow is role-gated: purchasing submits, accounting reviews (favourably or not)
// without reaching a terminal status, and only the executive director approves or rejects.
var CanvasFlow = NewMachine("canvas",
	[]string{
		model.CanvasDraft, model.CanvasSubmitted, model.CanvasPendingApproval,
		model.CanvasApproved, model.CanvasRejected, model.CanvasPOCreated,
	},
	append(append([]Transition{
		{From: model.CanvasDraft, Action: ActionSubmit, To: model.CanvasSubmitted, Roles: purchasing},
		{From: model.CanvasSubmitted, Action: ActionReview, To: model.CanvasPendingApproval, Roles: accounting},
		{From: model.CanvasPendingApproval, Action: ActionReview, To: model.CanvasPendingApproval, Roles: accounting},
		{From: model.CanvasApproved, Action: ActionCreatePO, To: model.CanvasPOCreated, Roles: purchasing},
	}, from(
		[]string{model.CanvasSubmitted, model.CanvasPendingApproval},
		ActionApprove, model.CanvasApproved, director, false,
	)...), from(
		[]string{model.CanvasSubmitted, model.CanvasPendingApproval},
		ActionReject, model.CanvasRejected, director, false,
	)...)...,
)

// PurchaseOrderFlow: draft -> forEOD -> approved -> completed, rejected from any open status.
var PurchaseOrderFlow = NewMachine("purchase order",
	[]string{model.PODraft, model.POForEOD, model.POApproved, model.POCompleted, model.PORejected},
	append([]Transition{
		{From: model.PODraft, Action: ActionSubmit, To: model.POForEOD, Roles: purchasing},
		{From: model.POForEOD, Action: ActionApprove, To: model.POApproved, Roles: director},
		{From: model.POApproved, Action: ActionComplete, To: model.POCompleted, Roles: accounting},
	}, from(
		[]string{model.PODraft, model.POForEOD, model.POApproved},
		ActionReject, model.PORejected, financeSignoff, false,
	)...)...,
)

// VoucherFlow: pending -> forAudit -> forCheck -> forEOD -> unreleased -> released -> paid.
// The audit step requires re-authentication.
var VoucherFlow = NewMachine("voucher",
	[]string{
		model.VoucherPending, model.VoucherForAudit, model.VoucherForCheck, model.VoucherForEOD,
		model.VoucherUnreleased, model.VoucherReleased, model.VoucherPaid, model.VoucherRejected,
	},
	append([]Transition{
		{From: model.VoucherPending, Action: ActionSubmit, To: model.VoucherForAudit, Roles: accounting},
		{From: model.VoucherForAudit, Action: ActionAudit, To: model.VoucherForCheck, Roles: accounting, Reauth: true},
		{From: model.VoucherForCheck, Action: ActionPrepareCheck, To: model.VoucherForEOD, Roles: accounting},
		{From: model.VoucherForEOD, Action: ActionApprove, To: model.VoucherUnreleased, Roles: director},
		{From: model.VoucherUnreleased, Action: ActionRelease, To: model.VoucherReleased, Roles: bursar},
		{From: model.VoucherReleased, Action: ActionPay, To: model.VoucherPaid, Roles: bursar},
	}, from(
		[]string{model.VoucherPending, model.VoucherForAudit, model.VoucherForCheck, model.VoucherForEOD, model.VoucherUnreleased},
		ActionReject, model.VoucherRejected, financeSignoff, false,
	)...)...,
)

// PettyCashFlow: draft -> submitted -> audited -> approved -> released, then the cash
// advance branch released -> for liquidation -> approved liquidation.
var PettyCashFlow = NewMachine("petty cash",
	[]string{
		model.PettyCashDraft, model.PettyCashSubmitted, model.PettyCashAudited, model.PettyCashApproved,
		model.PettyCashReleased, model.PettyCashForLiquidation, model.PettyCashApprovedLiquidation,
	},
	append([]Transition{
		{From: model.PettyCashDraft, Action: ActionSubmit, To: model.PettyCashSubmitted},
		{From: model.PettyCashSubmitted, Action: ActionAudit, To: model.PettyCashAudited, Roles: accounting},
		{From: model.PettyCashAudited, Action: ActionApprove, To: model.PettyCashApproved, Roles: director},
		{From: model.PettyCashApproved, Action: ActionRelease, To: model.PettyCashReleased, Roles: bursar},
		{From: model.PettyCashReleased, Action: ActionLiquidate, To: model.PettyCashForLiquidation},
		{From: model.PettyCashForLiquidation, Action: ActionApproveLiquidation, To: model.PettyCashApprovedLiquidation, Roles: accounting},
	}, from(
		[]string{model.PettyCashSubmitted, model.PettyCashAudited},
		ActionReturn, model.PettyCashDraft, financeSignoff, false,
	)...)...,
)
