package service

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowbit/ticket-service/internal/config"
	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/events"
	"github.com/flowbit/ticket-service/internal/repository"
	"github.com/flowbit/ticket-service/internal/workflow"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// WebhookService applies workflow engine callbacks to ticket state. The
// shared secret is the trust boundary: callbacks carry no usable tenant,
// and the ticket's stored tenant drives the fanout.
type WebhookService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	secret     string
	logger     *zap.Logger
}

// NewWebhookService constructs the service.
func NewWebhookService(cfg config.WorkflowConfig, tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		tickets:    tickets,
		dispatcher: dispatcher,
		secret:     cfg.SharedSecret,
		logger:     logger,
	}
}

// VerifySecret checks the secret presented by a callback. An unconfigured
// server-side secret fails closed.
func (s *WebhookService) VerifySecret(presented string) error {
	if s.secret == "" {
		s.logger.Error("webhook secret not configured")
		return errorutil.NewDomainError("CONFIG_ERROR", "server configuration error", http.StatusInternalServerError, nil)
	}
	if presented != s.secret {
		return errorutil.NewUnauthorized("invalid webhook secret")
	}
	return nil
}

// Apply executes a normalized callback command. Applying the same command
// twice leaves the ticket in the same state as applying it once.
func (s *WebhookService) Apply(ctx context.Context, cmd workflow.Command) (*domain.Ticket, error) {
	if _, err := s.tickets.GetForWorkflow(ctx, cmd.TicketID); err != nil {
		return nil, mapTicketErr(err)
	}

	ticket, err := s.tickets.ApplyWorkflowTransition(ctx, cmd.TicketID, cmd.Patch())
	if err != nil {
		return nil, mapTicketErr(err)
	}

	s.logger.Info("webhook applied",
		zap.String("ticket_id", ticket.ID),
		zap.String("status", string(ticket.Status)),
		zap.String("workflow_status", string(ticket.WorkflowStatus)))

	now := time.Now()
	s.publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Payload:  events.NewTicketPayload(ticket),
	})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketWebhookProcessed,
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Payload: events.WebhookProcessedPayload{
			TicketID:       ticket.ID,
			Status:         string(ticket.Status),
			WorkflowStatus: string(ticket.WorkflowStatus),
			Timestamp:      now,
		},
	})
	return ticket, nil
}

func (s *WebhookService) publish(ctx context.Context, event events.Event) {
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
