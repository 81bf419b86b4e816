package dto

import (
	"time"

	"github.com/flowbit/ticket-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	CustomerID string      `json:"customerId"`
	Role       domain.Role `json:"role"`
	FirstName  string      `json:"firstName"`
	LastName   string      `json:"lastName"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public user representation.
type UserResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	CustomerID string `json:"customerId"`
	Role       string `json:"role"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
}

// AuthResponse carries a session token with its user.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}
