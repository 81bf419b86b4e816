package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// TicketCategory enumerates request categories.
type TicketCategory string

const (
	TicketCategoryTechnical      TicketCategory = "Technical"
	TicketCategoryBilling        TicketCategory = "Billing"
	TicketCategoryGeneral        TicketCategory = "General"
	TicketCategoryFeatureRequest TicketCategory = "Feature Request"
)

// WorkflowStatus tracks the external workflow engine's progress on a ticket.
// It is driven only by the workflow bridge, never by a direct user update.
type WorkflowStatus string

const (
	WorkflowStatusNotStarted WorkflowStatus = "Not Started"
	WorkflowStatusInProgress WorkflowStatus = "In Progress"
	WorkflowStatusCompleted  WorkflowStatus = "Completed"
	WorkflowStatusFailed     WorkflowStatus = "Failed"
)

const (
	// TitleMaxLength bounds ticket titles.
	TitleMaxLength = 200
	// DescriptionMaxLength bounds ticket descriptions.
	DescriptionMaxLength = 2000
)

// Ticket is the aggregate for support requests. TenantID is the sole
// isolation key: every read and write is scoped by it.
type Ticket struct {
	ID               string
	TenantID         string
	OwnerUserID      string
	AssignedToUserID *string
	Title            string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	Category         TicketCategory
	WorkflowStatus   WorkflowStatus
	Resolution       *string
	Tags             []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResolvedAt       *time.Time
}

// Comment is an append-only entry in a ticket's discussion thread.
type Comment struct {
	ID           string
	TicketID     string
	AuthorUserID string
	Content      string
	CreatedAt    time.Time
}

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c TicketCategory) bool {
	switch c {
	case TicketCategoryTechnical, TicketCategoryBilling, TicketCategoryGeneral, TicketCategoryFeatureRequest:
		return true
	}
	return false
}

// ValidWorkflowStatus reports whether w is a known workflow status.
func ValidWorkflowStatus(w WorkflowStatus) bool {
	switch w {
	case WorkflowStatusNotStarted, WorkflowStatusInProgress, WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	}
	return false
}
