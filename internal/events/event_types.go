package events

import (
	"time"

	"github.com/flowbit/ticket-service/internal/domain"
)

// EventType enumerates supported event identifiers. The values double as
// the wire-level event names pushed to realtime clients.
type EventType string

const (
	EventTicketCreated          EventType = "ticket-created"
	EventTicketUpdated          EventType = "ticket-updated"
	EventTicketDeleted          EventType = "ticket-deleted"
	EventTicketCommentAdded     EventType = "ticket-comment-added"
	EventTicketWebhookProcessed EventType = "ticket-webhook-processed"
)

// Event represents a domain event emitted by services. TenantID decides the
// broadcast group; it always comes from the stored ticket, never from
// request input.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"-"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketPayload carries enough of a ticket for a client to apply the
// change without a follow-up fetch.
type TicketPayload struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenantId"`
	OwnerUserID      string     `json:"ownerUserId"`
	AssignedToUserID *string    `json:"assignedToUserId,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	Priority         string     `json:"priority"`
	Category         string     `json:"category"`
	WorkflowStatus   string     `json:"workflowStatus"`
	Resolution       *string    `json:"resolution,omitempty"`
	Tags             []string   `json:"tags"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
}

// NewTicketPayload maps a ticket to its event representation.
func NewTicketPayload(t *domain.Ticket) TicketPayload {
	return TicketPayload{
		ID:               t.ID,
		TenantID:         t.TenantID,
		OwnerUserID:      t.OwnerUserID,
		AssignedToUserID: t.AssignedToUserID,
		Title:            t.Title,
		Description:      t.Description,
		Status:           string(t.Status),
		Priority:         string(t.Priority),
		Category:         string(t.Category),
		WorkflowStatus:   string(t.WorkflowStatus),
		Resolution:       t.Resolution,
		Tags:             t.Tags,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		ResolvedAt:       t.ResolvedAt,
	}
}

// CommentPayload carries an appended comment.
type CommentPayload struct {
	ID           string    `json:"id"`
	AuthorUserID string    `json:"authorUserId"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CommentAddedPayload pairs a comment with its ticket.
type CommentAddedPayload struct {
	TicketID string         `json:"ticketId"`
	Comment  CommentPayload `json:"comment"`
}

// TicketDeletedPayload carries just the id of a removed ticket.
type TicketDeletedPayload struct {
	ID string `json:"id"`
}

// WebhookProcessedPayload summarizes a workflow callback's outcome.
type WebhookProcessedPayload struct {
	TicketID       string    `json:"ticketId"`
	Status         string    `json:"status"`
	WorkflowStatus string    `json:"workflowStatus"`
	Timestamp      time.Time `json:"timestamp"`
}
