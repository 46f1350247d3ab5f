package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"procurement/internal/repository"
	"procurement/internal/workflow"
)

var (
	// ErrNotFound is wrapped by every lookup that matches nothing
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller's role may not perform a non-workflow operation
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned by Login for any wrong email/password pair
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInsufficientFund is returned when a petty cash release would overdraw the fund
	ErrInsufficientFund = errors.New("insufficient petty cash fund balance")
)

// Re-exported so handlers only need this package to classify errors
var (
	ErrStateConflict  = workflow.ErrStateConflict
	ErrRoleNotAllowed = workflow.ErrRoleNotAllowed
)

// ValidationError carries per-field messages
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// ReauthError is returned when the password supplied for a sensitive transition is wrong
type ReauthError struct {
	Field string
}

func (e *ReauthError) Error() string {
	return "re-authentication failed: incorrect " + e.Field
}

func notFound(entity string, err error) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}
