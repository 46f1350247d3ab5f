package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/notification"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// --- DTOs ---

type RequestLineInput struct {
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
	Unit        string `json:"unit" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type CreateRequestRequest struct {
	DepartmentID string             `json:"department_id" binding:"omitempty,uuid"`
	Purpose      string             `json:"purpose"`
	Details      []RequestLineInput `json:"details" binding:"required,min=1,dive"`
}

type UpdateRequestRequest struct {
	Purpose *string            `json:"purpose"`
	Details []RequestLineInput `json:"details" binding:"omitempty,dive"`
}

type TagDetailRequest struct {
	Tagging string `json:"tagging" binding:"required,tagging"`
}

type RequestFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type RequestDetailResponse struct {
	ID          string  `json:"id"`
	Quantity    int     `json:"quantity"`
	Unit        string  `json:"unit"`
	Description string  `json:"description"`
	Tagging     *string `json:"tagging"`
}

type RequestResponse struct {
	ID           string                  `json:"id"`
	RequestNo    string                  `json:"request_no"`
	Status       string                  `json:"status"`
	DepartmentID string                  `json:"department_id"`
	Department   string                  `json:"department"`
	UserID       string                  `json:"user_id"`
	Requester    string                  `json:"requester"`
	Purpose      string                  `json:"purpose"`
	Details      []RequestDetailResponse `json:"details"`
	CreatedAt    string                  `json:"created_at"`
	UpdatedAt    string                  `json:"updated_at"`
}

// --- Interface ---

type RequestService interface {
	CreateRequest(ctx context.Context, p Principal, req CreateRequestRequest) (*RequestResponse, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*RequestResponse, error)
	ListRequests(ctx context.Context, p Principal, filter RequestFilter) ([]RequestResponse, int64, error)
	UpdateRequest(ctx context.Context, p Principal, id uuid.UUID, req UpdateRequestRequest) (*RequestResponse, error)
	DeleteRequest(ctx context.Context, p Principal, id uuid.UUID) error
	TransitionRequest(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error)
	TagDetail(ctx context.Context, p Principal, requestID, detailID uuid.UUID, req TagDetailRequest) (*RequestDetailResponse, error)
	GetApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error)
}

type requestService struct {
	repo     repository.RequestRepository
	users    repository.UserRepository
	depts    repository.DepartmentRepository
	numberer *Numberer
	engine   *Engine
}

func NewRequestService(
	repo repository.RequestRepository,
	users repository.UserRepository,
	depts repository.DepartmentRepository,
	numberer *Numberer,
	engine *Engine,
) RequestService {
	return &requestService{repo: repo, users: users, depts: depts, numberer: numberer, engine: engine}
}

// --- Implementation ---

func validateRequestLines(lines []RequestLineInput) error {
	if len(lines) == 0 {
		return invalid("details", "at least one line is required")
	}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return invalid(fmt.Sprintf("details[%d].quantity", i), "must be greater than 0")
		}
		if line.Unit == "" || line.Description == "" {
			return invalid(fmt.Sprintf("details[%d]", i), "unit and description are required")
		}
	}
	return nil
}

func toRequestDetails(lines []RequestLineInput) []model.RequestDetail {
	return lo.Map(lines, func(l RequestLineInput, _ int) model.RequestDetail {
		return model.RequestDetail{Quantity: l.Quantity, Unit: l.Unit, Description: l.Description}
	})
}

func (s *requestService) CreateRequest(ctx context.Context, p Principal, req CreateRequestRequest) (*RequestResponse, error) {
	if err := validateRequestLines(req.Details); err != nil {
		return nil, err
	}

	deptID, err := s.resolveDepartment(ctx, p, req.DepartmentID)
	if err != nil {
		return nil, err
	}

	request := &model.Request{
		Status:       model.RequestStatusPending,
		DepartmentID: deptID,
		UserID:       p.UserID,
		Purpose:      req.Purpose,
		Details:      toRequestDetails(req.Details),
	}

	err = s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.numberer.Issue(txCtx, DocRequest, func(number string) error {
			request.RequestNo = number
			return s.repo.Create(txCtx, request)
		})
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogRequest,
			SubjectType: model.LogRequest,
			SubjectID:   request.ID,
			Actor:       &p.UserID,
			Message:     "request " + request.RequestNo + " created",
			Properties:  map[string]any{"lines": len(request.Details)},
		})
	})
	if err != nil {
		return nil, err
	}

	return s.GetRequest(ctx, request.ID)
}

// resolveDepartment falls back to the requester's own department
func (s *requestService) resolveDepartment(ctx context.Context, p Principal, raw string) (uuid.UUID, error) {
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, invalid("department_id", "must be a valid UUID")
		}
		if _, err := s.depts.FindByID(ctx, id); err != nil {
			if repository.IsNotFound(err) {
				return uuid.Nil, invalid("department_id", "department does not exist")
			}
			return uuid.Nil, err
		}
		return id, nil
	}

	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return uuid.Nil, notFound("user", err)
	}
	if user.DepartmentID == nil {
		return uuid.Nil, invalid("department_id", "is required when the requester has no department")
	}
	return *user.DepartmentID, nil
}

func (s *requestService) GetRequest(ctx context.Context, id uuid.UUID) (*RequestResponse, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("request", err)
	}
	return toRequestResponse(request), nil
}

func (s *requestService) ListRequests(ctx context.Context, p Principal, filter RequestFilter) ([]RequestResponse, int64, error) {
	var deptID *uuid.UUID
	// staff only see their own department's requests
	if p.Role == model.RoleStaff {
		user, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return nil, 0, notFound("user", err)
		}
		deptID = user.DepartmentID
		if deptID == nil {
			return []RequestResponse{}, 0, nil
		}
	}

	requests, total, err := s.repo.List(ctx, repository.ListFilter{
		Status: filter.Status,
		Search: filter.Search,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}, deptID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}

	res := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		res = append(res, *toRequestResponse(&requests[i]))
	}
	return res, total, nil
}

// editable loads a request the caller may still change
func (s *requestService) editable(ctx context.Context, p Principal, id uuid.UUID) (*model.Request, error) {
	request, err := s.repo.LockByID(ctx, id)
	if err != nil {
		return nil, notFound("request", err)
	}
	if request.UserID != p.UserID && !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if request.Status != model.RequestStatusPending {
		return nil, fmt.Errorf("request is already %s: %w", request.Status, ErrStateConflict)
	}
	return request, nil
}

func (s *requestService) UpdateRequest(ctx context.Context, p Principal, id uuid.UUID, req UpdateRequestRequest) (*RequestResponse, error) {
	if req.Details != nil {
		if err := validateRequestLines(req.Details); err != nil {
			return nil, err
		}
	}

	err := s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.editable(txCtx, p, id)
		if err != nil {
			return err
		}
		if req.Purpose != nil {
			if err := s.repo.UpdatePurpose(txCtx, id, *req.Purpose); err != nil {
				return fmt.Errorf("failed to update request: %w", err)
			}
		}
		if req.Details != nil {
			if err := s.repo.ReplaceDetails(txCtx, request, toRequestDetails(req.Details)); err != nil {
				return fmt.Errorf("failed to replace request lines: %w", err)
			}
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogRequest,
			SubjectType: model.LogRequest,
			SubjectID:   id,
			Actor:       &p.UserID,
			Message:     "request " + request.RequestNo + " updated",
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetRequest(ctx, id)
}

func (s *requestService) DeleteRequest(ctx context.Context, p Principal, id uuid.UUID) error {
	return s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.editable(txCtx, p, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete request: %w", err)
		}
		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogRequest,
			SubjectType: model.LogRequest,
			SubjectID:   id,
			Actor:       &p.UserID,
			Message:     "request " + request.RequestNo + " deleted",
		})
	})
}

func (s *requestService) TransitionRequest(ctx context.Context, p Principal, id uuid.UUID, req TransitionRequest) (*TransitionResponse, error) {
	// moving to to_order happens only when an order consumes the request
	if workflow.Action(req.Action) == workflow.ActionOrder {
		return nil, invalid("action", "requests move to to_order when an order is created from them")
	}

	res, err := s.engine.run(ctx, p, id, req, transitionPlan{
		machine: workflow.RequestFlow,
		subject: model.SubjectRequest,
		logName: model.LogRequest,
		lock: func(txCtx context.Context) (string, error) {
			request, err := s.repo.LockByID(txCtx, id)
			if err != nil {
				return "", notFound("request", err)
			}
			return request.Status, nil
		},
		apply: func(txCtx context.Context, t workflow.Transition) error {
			return s.repo.UpdateStatus(txCtx, id, t.To)
		},
	})
	if err != nil {
		return nil, err
	}

	if res.Status == model.RequestStatusApproved || res.Status == model.RequestStatusRejected {
		s.notifyRequester(ctx, id, res)
	}
	return res, nil
}

func (s *requestService) notifyRequester(ctx context.Context, id uuid.UUID, res *TransitionResponse) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil || request.User == nil {
		return
	}
	body := fmt.Sprintf("Your request %s has been %s.", request.RequestNo, res.Status)
	if res.Remarks != "" {
		body += "\n\nRemarks: " + res.Remarks
	}
	s.engine.events.notify(ctx, notification.Message{
		To:      request.User.Email,
		Subject: fmt.Sprintf("Request %s %s", request.RequestNo, res.Status),
		Body:    body,
	})
}

var operatorTaggings = []string{model.TaggingNoCanvas, model.TaggingWithCanvas}

func (s *requestService) TagDetail(ctx context.Context, p Principal, requestID, detailID uuid.UUID, req TagDetailRequest) (*RequestDetailResponse, error) {
	if err := requireRole(p, model.RolePurchasing); err != nil {
		return nil, err
	}
	if !lo.Contains(operatorTaggings, req.Tagging) {
		return nil, invalid("tagging", "must be no_canvas or with_canvas")
	}

	var tagged model.RequestDetail
	err := s.engine.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.repo.LockByID(txCtx, requestID)
		if err != nil {
			return notFound("request", err)
		}
		detail, ok := lo.Find(request.Details, func(d model.RequestDetail) bool { return d.ID == detailID })
		if !ok {
			return fmt.Errorf("request line %w", ErrNotFound)
		}
		if detail.Tagging != nil && *detail.Tagging == model.TaggingForPurchase {
			return fmt.Errorf("line is already ordered: %w", ErrStateConflict)
		}
		if err := s.repo.TagDetails(txCtx, []uuid.UUID{detailID}, req.Tagging); err != nil {
			return fmt.Errorf("failed to tag line: %w", err)
		}
		detail.Tagging = &req.Tagging
		tagged = detail

		return s.engine.activity.Record(txCtx, Activity{
			LogName:     model.LogRequest,
			SubjectType: model.LogRequest,
			SubjectID:   requestID,
			Actor:       &p.UserID,
			Message:     fmt.Sprintf("line %q tagged %s", detail.Description, req.Tagging),
			Properties:  map[string]any{"detail_id": detailID.String(), "tagging": req.Tagging},
		})
	})
	if err != nil {
		return nil, err
	}

	res := toRequestDetailResponse(tagged)
	return &res, nil
}

func (s *requestService) GetApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound("request", err)
	}
	return s.engine.history(ctx, model.SubjectRequest, id)
}

// --- Helpers ---

func toRequestDetailResponse(d model.RequestDetail) RequestDetailResponse {
	return RequestDetailResponse{
		ID:          d.ID.String(),
		Quantity:    d.Quantity,
		Unit:        d.Unit,
		Description: d.Description,
		Tagging:     d.Tagging,
	}
}

func toRequestResponse(r *model.Request) *RequestResponse {
	res := &RequestResponse{
		ID:           r.ID.String(),
		RequestNo:    r.RequestNo,
		Status:       r.Status,
		DepartmentID: r.DepartmentID.String(),
		UserID:       r.UserID.String(),
		Purpose:      r.Purpose,
		Details:      lo.Map(r.Details, func(d model.RequestDetail, _ int) RequestDetailResponse { return toRequestDetailResponse(d) }),
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Department != nil {
		res.Department = r.Department.Name
	}
	if r.User != nil {
		res.Requester = r.User.Username
	}
	return res
}
