package dto

import (
	"time"

	"github.com/flowbit/ticket-service/internal/domain"
)

// CreateTicketRequest payload. A tenant id in the body is ignored; the
// stored tenant always comes from the caller's token.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    domain.TicketCategory `json:"category"`
	Tags        []string              `json:"tags"`
}

// UpdateTicketRequest payload; nil fields are untouched.
type UpdateTicketRequest struct {
	Title            *string                `json:"title"`
	Description      *string                `json:"description"`
	Status           *domain.TicketStatus   `json:"status"`
	Priority         *domain.TicketPriority `json:"priority"`
	Category         *domain.TicketCategory `json:"category"`
	Resolution       *string                `json:"resolution"`
	AssignedToUserID *string                `json:"assignedTo"`
	Tags             []string               `json:"tags"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID               string            `json:"id"`
	TenantID         string            `json:"tenantId"`
	OwnerUserID      string            `json:"ownerUserId"`
	AssignedToUserID *string           `json:"assignedTo,omitempty"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Status           string            `json:"status"`
	Priority         string            `json:"priority"`
	Category         string            `json:"category"`
	WorkflowStatus   string            `json:"workflowStatus"`
	Resolution       *string           `json:"resolution,omitempty"`
	Tags             []string          `json:"tags"`
	Comments         []CommentResponse `json:"comments,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	ResolvedAt       *time.Time        `json:"resolvedAt,omitempty"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID           string    `json:"id"`
	AuthorUserID string    `json:"authorUserId"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// Pagination describes list positioning.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Tickets    []TicketResponse `json:"tickets"`
	Pagination Pagination       `json:"pagination"`
}

// StatsResponse aggregates dashboard counters.
type StatsResponse struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByPriority map[string]int64 `json:"byPriority"`
}
