package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"requisiciones/internal/model"
	"requisiciones/internal/repository"
	"requisiciones/pkg/pagination"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("username or email already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	FullName string `json:"full_name" validate:"max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required"`
	Area     string `json:"area" validate:"max=120"`
}

type LoginUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	Area      string     `json:"area"`
	CreatedAt string     `json:"created_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	ListUsers(ctx context.Context, role, area string, page, limit int) ([]UserResponse, int64, error)
	SeedAdmin(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
}

type userService struct {
	repo     repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, secret []byte, tokenTTL time.Duration) UserService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &userService{repo: repo, secret: secret, tokenTTL: tokenTTL}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      user.Role,
		Area:      user.Area,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	errs := fieldErrors{}
	checkStruct(req, errs)
	role, err := model.ParseRole(req.Role)
	if req.Role != "" && err != nil {
		errs.add("role", "rol desconocido")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	// Double check username/email uniqueness via repo directly
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUserExists
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username: strings.TrimSpace(req.Username),
		FullName: strings.TrimSpace(req.FullName),
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     role,
		Area:     strings.TrimSpace(req.Area),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": string(user.Role),
		"name": user.DisplayName(),
		"exp":  expiresAt.Unix(),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &TokenResponse{
		Token:     tokenString,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		User:      *mapToResponse(user),
	}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return mapToResponse(user), nil
}

// ListUsers pages through users, optionally restricted to one role and an area substring.
func (s *userService) ListUsers(ctx context.Context, role, area string, page, limit int) ([]UserResponse, int64, error) {
	filter := repository.UserFilter{Area: strings.TrimSpace(area)}
	if role != "" {
		parsed, err := model.ParseRole(role)
		if err != nil {
			errs := fieldErrors{}
			errs.add("role", "rol desconocido")
			return nil, 0, errs.err()
		}
		filter.Role = parsed
	}

	p := pagination.Normalize(page, limit)
	users, total, err := s.repo.List(ctx, filter, p.Page, p.Limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}

// SeedAdmin creates req as an admin account when none exists yet, so a fresh
// database has someone able to log in and create the other users. It returns
// nil when an admin is already present.
func (s *userService) SeedAdmin(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	_, total, err := s.repo.List(ctx, repository.UserFilter{Role: model.RoleAdmin}, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("look up admins: %w", err)
	}
	if total > 0 {
		return nil, nil
	}
	req.Role = string(model.RoleAdmin)
	return s.CreateUser(ctx, req)
}
