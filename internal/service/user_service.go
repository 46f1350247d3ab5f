package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username     string `json:"username" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone"`
	Password     string `json:"password" binding:"required,min=6"`
	Role         string `json:"role" binding:"required"`
	DepartmentID string `json:"department_id" binding:"omitempty,uuid"`
}

type UpdateUserRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email" binding:"omitempty,email"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id" binding:"omitempty,uuid"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt string        `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Role         string     `json:"role"`
	DepartmentID *uuid.UUID `json:"department_id"`
	Department   string     `json:"department,omitempty"`
	Permissions  []string   `json:"permissions,omitempty"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	PasswordVerifier
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	ListUsers(ctx context.Context, role string, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo      repository.UserRepository
	roles     repository.RoleRepository
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, roles repository.RoleRepository, secret []byte, accessTTL time.Duration) UserService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &userService{repo: repo, roles: roles, secret: secret, accessTTL: accessTTL, now: time.Now}
}

// Roles users can be assigned
var assignableRoles = []string{
	model.RoleAdmin, model.RoleStaff, model.RolePurchasing, model.RoleAccounting,
	model.RolePropertyCustodian, model.RoleExecutiveDirector, model.RoleBursar,
}

func validateRole(role string) error {
	if !slices.Contains(assignableRoles, role) {
		return invalid("role", fmt.Sprintf("must be one of %v", assignableRoles))
	}
	return nil
}

func parseOptionalID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalid(field, "must be a valid UUID")
	}
	return &id, nil
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Phone:        user.Phone,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    user.UpdatedAt.Format(time.RFC3339),
	}
	if user.Department != nil {
		res.Department = user.Department.Name
	}
	return res
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if err := validateRole(req.Role); err != nil {
		return nil, err
	}
	deptID, err := parseOptionalID("department_id", req.DepartmentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, invalid("username", "already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, invalid("email", "already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     string(hashedPassword),
		Role:         req.Role,
		DepartmentID: deptID,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := s.now().Add(s.accessTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  expiresAt.Unix(),
		"iat":  s.now().Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResponse{
		Token:     tokenString,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      mapToResponse(user),
	}, nil
}

// VerifyPassword re-checks the actor's password before a sensitive transition
func (s *userService) VerifyPassword(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return notFound("user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return &ReauthError{Field: "password"}
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}

func (s *userService) Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound("user", err)
	}
	res := mapToResponse(user)

	perms, err := s.roles.GetPermissionsByRoleName(ctx, user.Role)
	if err != nil && !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	res.Permissions = perms
	return res, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("user", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, role string, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.repo.List(ctx, role, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}

	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("user", err)
	}

	if req.Role != "" {
		if err := validateRole(req.Role); err != nil {
			return nil, err
		}
		user.Role = req.Role
	}

	if req.Username != "" && req.Username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
			return nil, invalid("username", "already exists")
		}
		user.Username = req.Username
	}

	if req.Email != "" && req.Email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
			return nil, invalid("email", "already exists")
		}
		user.Email = req.Email
	}

	if req.Phone != "" {
		user.Phone = req.Phone
	}

	if req.DepartmentID != "" {
		deptID, err := parseOptionalID("department_id", req.DepartmentID)
		if err != nil {
			return nil, err
		}
		user.DepartmentID = deptID
		user.Department = nil
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return notFound("user", err)
	}
	return s.repo.Delete(ctx, id)
}
