package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
)

// Activity is one entry for the activity trail
type Activity struct {
	LogName     string
	SubjectType string
	SubjectID   uuid.UUID
	Actor       *uuid.UUID
	Message     string
	Properties  map[string]any
}

// ActivityRecorder writes the activity trail. Record joins the caller's transaction.
type ActivityRecorder interface {
	Record(ctx context.Context, a Activity) error
}

type AuditLogResponse struct {
	ID          string         `json:"id"`
	LogName     string         `json:"log_name"`
	SubjectType string         `json:"subject_type"`
	SubjectID   string         `json:"subject_id"`
	UserID      string         `json:"user_id"`
	Username    string         `json:"username"`
	Message     string         `json:"message"`
	Properties  map[string]any `json:"properties"`
	CreatedAt   string         `json:"created_at"`
}

type AuditService interface {
	ActivityRecorder
	GetAuditLogs(ctx context.Context, filter repository.AuditFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) Record(ctx context.Context, a Activity) error {
	props := a.Properties
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to encode activity properties: %w", err)
	}

	entry := &model.AuditLog{
		LogName:     a.LogName,
		SubjectType: a.SubjectType,
		SubjectID:   a.SubjectID.String(),
		UserID:      a.Actor,
		Message:     a.Message,
		Properties:  string(raw),
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

func (s *auditService) GetAuditLogs(ctx context.Context, filter repository.AuditFilter) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		props := map[string]any{}
		_ = json.Unmarshal([]byte(l.Properties), &props)

		res = append(res, AuditLogResponse{
			ID:          l.ID.String(),
			LogName:     l.LogName,
			SubjectType: l.SubjectType,
			SubjectID:   l.SubjectID,
			UserID:      userID,
			Username:    username,
			Message:     l.Message,
			Properties:  props,
			CreatedAt:   l.CreatedAt.Format(time.RFC3339),
		})
	}
	return res, total, nil
}
