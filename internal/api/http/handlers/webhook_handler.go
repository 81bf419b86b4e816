package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/flowbit/ticket-service/internal/api/dto"
	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/service"
	"github.com/flowbit/ticket-service/internal/workflow"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

const webhookSecretHeader = "X-Webhook-Secret"

// WebhookHandler receives workflow engine callbacks. Both payload shapes
// normalize into one command before touching ticket state.
type WebhookHandler struct {
	service *service.WebhookService
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: webhookService}
}

// TicketDone handles POST /webhook/ticket-done (field-patch shape).
func (h *WebhookHandler) TicketDone(c *fiber.Ctx) error {
	var req dto.TicketDoneRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if err := h.service.VerifySecret(presentedSecret(c, req.Secret)); err != nil {
		return err
	}

	cmd, err := workflow.NormalizeFields(req.TicketID, statusField(req.Status), workflowStatusField(req.WorkflowStatus), req.Resolution)
	if err != nil {
		return err
	}

	ticket, err := h.service.Apply(c.UserContext(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(webhookResponse(ticket))
}

// TicketProcess handles POST /webhook/ticket-process (discrete-action shape).
func (h *WebhookHandler) TicketProcess(c *fiber.Ctx) error {
	var req dto.TicketProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if err := h.service.VerifySecret(presentedSecret(c, req.Secret)); err != nil {
		return err
	}

	var resolution *string
	if req.Data != nil {
		resolution = req.Data.Resolution
	}
	cmd, err := workflow.NormalizeAction(req.TicketID, workflow.Action(req.Action), resolution)
	if err != nil {
		return err
	}

	ticket, err := h.service.Apply(c.UserContext(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(webhookResponse(ticket))
}

// Health handles GET /webhook/health.
func (h *WebhookHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "OK",
		"service":   "webhook",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// presentedSecret prefers the header and falls back to the body field,
// matching what the workflow engine sends.
func presentedSecret(c *fiber.Ctx, bodySecret string) string {
	if header := c.Get(webhookSecretHeader); header != "" {
		return header
	}
	return bodySecret
}

func statusField(s *string) *domain.TicketStatus {
	if s == nil || *s == "" {
		return nil
	}
	status := domain.TicketStatus(*s)
	return &status
}

func workflowStatusField(s *string) *domain.WorkflowStatus {
	if s == nil || *s == "" {
		return nil
	}
	status := domain.WorkflowStatus(*s)
	return &status
}

func webhookResponse(ticket *domain.Ticket) dto.WebhookResponse {
	return dto.WebhookResponse{
		Success: true,
		Ticket: dto.WebhookTicketResult{
			ID:             ticket.ID,
			Status:         string(ticket.Status),
			WorkflowStatus: string(ticket.WorkflowStatus),
		},
	}
}
