package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/flowbit/ticket-service/internal/auth"
	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/events"
	"github.com/flowbit/ticket-service/internal/repository"
	"github.com/flowbit/ticket-service/internal/tenant"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// WorkflowDispatcher triggers the external workflow engine for a new ticket.
type WorkflowDispatcher interface {
	Dispatch(ctx context.Context, ticket *domain.Ticket) error
}

// TicketService is the lifecycle engine: it composes the tenant scope, the
// store adapter, the workflow bridge and the event fanout into the
// externally visible ticket operations.
type TicketService struct {
	tickets    repository.TicketRepository
	workflow   WorkflowDispatcher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Workflow   WorkflowDispatcher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload. Any tenant id a
// client smuggles into the payload is ignored: the stored tenant is always
// the caller's.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	Tags        []string
}

// TicketUpdateInput describes a partial update. Workflow status is not
// settable here.
type TicketUpdateInput struct {
	Title            *string
	Description      *string
	Status           *domain.TicketStatus
	Priority         *domain.TicketPriority
	Category         *domain.TicketCategory
	Resolution       *string
	AssignedToUserID *string
	Tags             []string
}

// TicketListInput carries list filters and pagination.
type TicketListInput struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Category *domain.TicketCategory
	Page     int
	Limit    int
}

// TicketStats aggregates dashboard counters for one tenant.
type TicketStats struct {
	Total      int64
	ByStatus   map[string]int64
	ByPriority map[string]int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		workflow:   deps.Workflow,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket creates a ticket owned by the caller within the caller's
// tenant, then triggers the workflow engine. Engine failure never fails the
// creation; it is recorded as workflowStatus=Failed.
func (s *TicketService) CreateTicket(ctx context.Context, identity *auth.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	scope, err := tenant.NewScope(identity.TenantID)
	if err != nil {
		return nil, errorutil.NewUnauthorized("missing tenant")
	}

	ticket := &domain.Ticket{
		OwnerUserID:    identity.UserID,
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		Status:         domain.TicketStatusOpen,
		Priority:       input.Priority,
		Category:       input.Category,
		WorkflowStatus: domain.WorkflowStatusNotStarted,
		Tags:           input.Tags,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Category == "" {
		ticket.Category = domain.TicketCategoryGeneral
	}
	if err := s.validateCreate(ticket); err != nil {
		return nil, err
	}

	if err := s.tickets.Create(ctx, scope, ticket); err != nil {
		return nil, errorutil.NewInternalError(err)
	}

	ticket = s.dispatchWorkflow(ctx, ticket)

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Payload:  events.NewTicketPayload(ticket),
	})
	return ticket, nil
}

// dispatchWorkflow performs the single best-effort engine call and records
// the outcome. The ticket itself is never rolled back.
func (s *TicketService) dispatchWorkflow(ctx context.Context, ticket *domain.Ticket) *domain.Ticket {
	if s.workflow == nil {
		return ticket
	}

	next := domain.WorkflowStatusInProgress
	if err := s.workflow.Dispatch(ctx, ticket); err != nil {
		next = domain.WorkflowStatusFailed
	}

	updated, err := s.tickets.ApplyWorkflowTransition(ctx, ticket.ID, repository.WorkflowPatch{
		WorkflowStatus: &next,
	})
	if err != nil {
		s.logger.Error("failed to record workflow dispatch outcome",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		ticket.WorkflowStatus = next
		return ticket
	}
	return updated
}

// GetTicket fetches a ticket with its comments. A cross-tenant id yields
// not-found, indistinguishable from a missing ticket.
func (s *TicketService) GetTicket(ctx context.Context, identity *auth.Identity, id string) (*domain.Ticket, []domain.Comment, error) {
	scope, err := tenant.NewScope(identity.TenantID)
	if err != nil {
		return nil, nil, errorutil.NewUnauthorized("missing tenant")
	}

	ticket, err := s.tickets.GetByID(ctx, scope, id)
	if err != nil {
		return nil, nil, mapTicketErr(err)
	}
	if ticket, err = scope.Guard(ticket); err != nil {
		return nil, nil, err
	}

	comments, err := s.tickets.ListComments(ctx, scope, ticket.ID)
	if err != nil {
		return nil, nil, errorutil.NewInternalError(err)
	}
	return ticket, comments, nil
}

// ListTickets returns the caller tenant's tickets with pagination metadata.
func (s *TicketService) ListTickets(ctx context.Context, identity *auth.Identity, input TicketListInput) ([]domain.Ticket, int, error) {
	scope, err := tenant.NewScope(identity.TenantID)
	if err != nil {
		return nil, 0, errorutil.NewUnauthorized("missing tenant")
	}

	tickets, total, err := s.tickets.List(ctx, scope, repository.TicketFilter{
		Status:   input.Status,
		Priority: input.Priority,
		Category: input.Category,
		Page:     input.Page,
		Limit:    input.Limit,
	})
	if err != nil {
		return nil, 0, errorutil.NewInternalError(err)
	}
	return scope.Filter(tickets), total, nil
}

// UpdateTicket applies a partial update within the caller's tenant.
func (s *TicketService) UpdateTicket(ctx context.Context, identity *auth.Identity, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	scope, err := tenant.NewScope(identity.TenantID)
	if err != nil {
		return nil, errorutil.NewUnauthorized("missing tenant")
	}
	if err := s.validateUpdate(input); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Update(ctx, scope, id, repository.TicketPatch{
		Title:            trimmed(input.Title),
		Description:      trimmed(input.Description),
		Status:           input.Status,
		Priority:         input.Priority,
		Category:         input.Category,
		Resolution:       input.Resolution,
		AssignedToUserID: input.AssignedToUserID,
		Tags:             input.Tags,
	})
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if ticket, err = scope.Guard(ticket); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Payload:  events.NewTicketPayload(ticket),
	})
	return ticket, nil
}

// DeleteTicket removes a ticket. The admin requirement is checked here in
// addition to the route gate, and independently of tenant scoping.
func (s *TicketService) DeleteTicket(ctx context.Context, identity *auth.Identity, id string) error {
	if !identity.IsAdmin() {
		return errorutil.NewForbidden("admin access required")
	}
	scope, err := tenant.NewScope(identity.TenantID)
	if err != nil {
		return errorutil.NewUnauthorized("missing tenant")
	}

	deleted, err := s.tickets.Delete(ctx, scope, id)
	if err != nil {
		return errorutil.NewInternalError(err)
	}
	if !deleted {
		return errorutil.NewNotFound("ticket")
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TenantID: scope.TenantID(),
		TicketID: id,
		Payload:  events.TicketDeletedPayload{ID: id},
	})
	return nil
}

// AddComment appends an immutable comment to a ticket's thread.
func (s *TicketService) AddComment(ctx context.Context, identity *auth.Identity, ticketID, content string) (*domain.Comment, error) {
	scope, err := tenant.NewScope(identity.TenantID)
	if err != nil {
		return nil, errorutil.NewUnauthorized("missing tenant")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errorutil.NewValidationError("comment content is required", map[string]any{"content": "required"})
	}

	comment := &domain.Comment{
		AuthorUserID: identity.UserID,
		Content:      content,
	}
	if err := s.tickets.AppendComment(ctx, scope, ticketID, comment); err != nil {
		return nil, mapTicketErr(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TenantID: scope.TenantID(),
		TicketID: ticketID,
		Payload: events.CommentAddedPayload{
			TicketID: ticketID,
			Comment: events.CommentPayload{
				ID:           comment.ID,
				AuthorUserID: comment.AuthorUserID,
				Content:      comment.Content,
				CreatedAt:    comment.CreatedAt,
			},
		},
	})
	return comment, nil
}

// GetStats returns per-status and per-priority counts for dashboards.
func (s *TicketService) GetStats(ctx context.Context, identity *auth.Identity) (*TicketStats, error) {
	scope, err := tenant.NewScope(identity.TenantID)
	if err != nil {
		return nil, errorutil.NewUnauthorized("missing tenant")
	}

	stats := &TicketStats{
		ByStatus:   map[string]int64{},
		ByPriority: map[string]int64{},
	}

	statusCounts, err := s.tickets.AggregateCounts(ctx, scope, "status")
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	for _, group := range statusCounts {
		stats.ByStatus[group.Key] = group.Count
		stats.Total += group.Count
	}

	priorityCounts, err := s.tickets.AggregateCounts(ctx, scope, "priority")
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	for _, group := range priorityCounts {
		stats.ByPriority[group.Key] = group.Count
	}

	return stats, nil
}

func (s *TicketService) validateCreate(ticket *domain.Ticket) error {
	details := map[string]any{}
	if ticket.Title == "" {
		details["title"] = "required"
	} else if len(ticket.Title) > domain.TitleMaxLength {
		details["title"] = "too long"
	}
	if ticket.Description == "" {
		details["description"] = "required"
	} else if len(ticket.Description) > domain.DescriptionMaxLength {
		details["description"] = "too long"
	}
	if !domain.ValidPriority(ticket.Priority) {
		details["priority"] = "invalid value"
	}
	if !domain.ValidCategory(ticket.Category) {
		details["category"] = "invalid value"
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid ticket", details)
	}
	return nil
}

func (s *TicketService) validateUpdate(input TicketUpdateInput) error {
	details := map[string]any{}
	if input.Title != nil {
		if t := strings.TrimSpace(*input.Title); t == "" || len(t) > domain.TitleMaxLength {
			details["title"] = "must be 1-200 characters"
		}
	}
	if input.Description != nil {
		if d := strings.TrimSpace(*input.Description); d == "" || len(d) > domain.DescriptionMaxLength {
			details["description"] = "must be 1-2000 characters"
		}
	}
	if input.Status != nil && !domain.ValidStatus(*input.Status) {
		details["status"] = "invalid value"
	}
	if input.Priority != nil && !domain.ValidPriority(*input.Priority) {
		details["priority"] = "invalid value"
	}
	if input.Category != nil && !domain.ValidCategory(*input.Category) {
		details["category"] = "invalid value"
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid ticket update", details)
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func mapTicketErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound("ticket")
	}
	var domainErr *errorutil.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return errorutil.NewInternalError(err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
