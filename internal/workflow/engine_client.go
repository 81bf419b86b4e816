package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flowbit/ticket-service/internal/config"
	"github.com/flowbit/ticket-service/internal/domain"
)

// EngineClient issues the outbound notification to the external workflow
// engine when a ticket is created. The call is best-effort: a single
// attempt bounded by the configured timeout, no retries.
type EngineClient struct {
	cfg    config.WorkflowConfig
	client *http.Client
	logger *zap.Logger
}

// NewEngineClient builds a client with the configured timeout.
func NewEngineClient(cfg config.WorkflowConfig, logger *zap.Logger) *EngineClient {
	return &EngineClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

// dispatchPayload is the body posted to the workflow engine.
type dispatchPayload struct {
	TicketID    string    `json:"ticketId"`
	TenantID    string    `json:"tenantId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Category    string    `json:"category"`
	CreatorID   string    `json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
	CallbackURL string    `json:"callbackUrl"`
	Secret      string    `json:"secret"`
}

// Dispatch notifies the engine about a new ticket. A non-2xx response,
// timeout or network error is returned to the caller, which records it as
// workflowStatus=Failed without failing the creation itself.
func (c *EngineClient) Dispatch(ctx context.Context, ticket *domain.Ticket) error {
	payload := dispatchPayload{
		TicketID:    ticket.ID,
		TenantID:    ticket.TenantID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Priority:    string(ticket.Priority),
		Category:    string(ticket.Category),
		CreatorID:   ticket.OwnerUserID,
		CreatedAt:   ticket.CreatedAt,
		CallbackURL: c.cfg.CallbackURL,
		Secret:      c.cfg.SharedSecret,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EngineURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("workflow engine unreachable", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("workflow engine rejected dispatch",
			zap.String("ticket_id", ticket.ID),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("workflow engine returned status %d", resp.StatusCode)
	}

	c.logger.Info("workflow dispatched", zap.String("ticket_id", ticket.ID))
	return nil
}
