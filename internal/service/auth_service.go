package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/flowbit/ticket-service/internal/auth"
	"github.com/flowbit/ticket-service/internal/config"
	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/repository"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// uniqueViolation is the postgres SQLSTATE for a unique index breach.
const uniqueViolation = "23505"

// AuthService coordinates registration and login flows. It plays the role
// of the external identity provider: it issues the signed session tokens
// that embed the caller's tenant.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// RegisterInput describes a new account request.
type RegisterInput struct {
	Email     string
	Password  string
	TenantID  string
	Role      domain.Role
	FirstName string
	LastName  string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a new account bound to a tenant. Duplicate emails are a
// conflict.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, time.Time, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || len(input.Password) < 6 || input.TenantID == "" {
		return nil, "", time.Time{}, errorutil.NewValidationError(
			"email, password (min 6 chars) and customerId required", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return nil, "", time.Time{}, errorutil.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, errorutil.NewConflict("user already exists", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}

	user := &domain.User{
		TenantID:     input.TenantID,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The pre-check above races with concurrent registrations; the
		// unique index on email is the authority.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, "", time.Time{}, errorutil.NewConflict("user already exists", nil)
		}
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Login authenticates an account and issues a fresh session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}
	if !user.IsActive {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}
	return user, token, exp, nil
}

// GetUser loads a user by id for the /me surface.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("user")
		}
		return nil, errorutil.NewInternalError(err)
	}
	return user, nil
}

// Refresh issues a new token for an authenticated caller.
func (s *AuthService) Refresh(ctx context.Context, userID string) (string, time.Time, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return "", time.Time{}, errorutil.NewInternalError(err)
	}
	return token, exp, nil
}
