package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
)

// TransitionRequest is the operator input for a status change
type TransitionRequest struct {
	Action   string `json:"action" binding:"required"`
	Remarks  string `json:"remarks"`
	Password string `json:"password"`
	// FileID selects the winning quotation when approving a canvas
	FileID string `json:"selected_file_id"`
	// Approved carries an accounting canvas review; omitted means favourable
	Approved *bool `json:"approved"`
	// CheckNo is recorded when a voucher's check is prepared
	CheckNo string `json:"check_no"`
}

type TransitionResponse struct {
	ID      uuid.UUID `json:"id"`
	Action  string    `json:"action"`
	From    string    `json:"from"`
	Status  string    `json:"status"`
	Remarks string    `json:"remarks,omitempty"`
}

// PasswordVerifier re-authenticates the actor of a sensitive transition
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, userID uuid.UUID, password string) error
}

// transitionPlan describes how one family locks, updates and records a transition
type transitionPlan struct {
	machine *workflow.Machine
	// subject selects the approval-history table. Empty skips the history row.
	subject model.ApprovalSubject
	logName string
	// lock reads the current status under a row lock
	lock func(ctx context.Context) (string, error)
	// apply persists t.To and any side records
	apply func(ctx context.Context, t workflow.Transition) error
}

// Engine runs status transitions for every workflow family. Each transition is a
// single transaction: lock, resolve against the family's table, apply, append one
// approval row and one activity entry. Events go out only after commit.
type Engine struct {
	tx        repository.TransactionManager
	approvals repository.ApprovalRepository
	activity  ActivityRecorder
	verifier  PasswordVerifier
	events    *Events
}

func NewEngine(tx repository.TransactionManager, approvals repository.ApprovalRepository, activity ActivityRecorder, verifier PasswordVerifier, events *Events) *Engine {
	return &Engine{tx: tx, approvals: approvals, activity: activity, verifier: verifier, events: events}
}

// ApprovalResponse is one row of an entity's approval history
type ApprovalResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Status     string `json:"status"`
	Remarks    string `json:"remarks"`
	ApprovedAt string `json:"approved_at"`
}

func (e *Engine) history(ctx context.Context, subject model.ApprovalSubject, id uuid.UUID) ([]ApprovalResponse, error) {
	entries, err := e.approvals.History(ctx, subject, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load approvals: %w", err)
	}
	res := make([]ApprovalResponse, 0, len(entries))
	for _, a := range entries {
		res = append(res, ApprovalResponse{
			ID:         a.ID.String(),
			UserID:     a.UserID.String(),
			Username:   a.Username,
			Status:     a.Status,
			Remarks:    a.Remarks,
			ApprovedAt: a.ApprovedAt.Format(time.RFC3339),
		})
	}
	return res, nil
}

func (e *Engine) run(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest, plan transitionPlan) (*TransitionResponse, error) {
	action := workflow.Action(req.Action)

	if plan.machine.RequiresReauth(action) {
		if req.Password == "" {
			return nil, invalid("password", "is required for this action")
		}
		if err := e.verifier.VerifyPassword(ctx, p.UserID, req.Password); err != nil {
			return nil, err
		}
	}

	var res TransitionResponse
	err := e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := plan.lock(txCtx)
		if err != nil {
			return err
		}

		t, err := plan.machine.Resolve(current, action, p.Role)
		if err != nil {
			return err
		}

		if err := plan.apply(txCtx, t); err != nil {
			return err
		}

		if plan.subject != "" {
			entry := model.ApprovalLog{UserID: p.UserID, Status: t.To, Remarks: req.Remarks}
			if err := e.approvals.Append(txCtx, plan.subject, id, entry); err != nil {
				return fmt.Errorf("failed to append approval: %w", err)
			}
		}

		err = e.activity.Record(txCtx, Activity{
			LogName:     plan.logName,
			SubjectType: plan.logName,
			SubjectID:   id,
			Actor:       &p.UserID,
			Message:     fmt.Sprintf("%s %s: %s -> %s", plan.machine.Entity(), action, t.From, t.To),
			Properties: map[string]any{
				"action":  string(action),
				"from":    t.From,
				"to":      t.To,
				"remarks": req.Remarks,
			},
		})
		if err != nil {
			return err
		}

		res = TransitionResponse{ID: id, Action: string(action), From: t.From, Status: t.To, Remarks: req.Remarks}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.events.transitioned(plan.machine.Entity(), id, res.Action, res.Status)
	return &res, nil
}
