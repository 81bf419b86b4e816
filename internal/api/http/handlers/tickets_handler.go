package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/flowbit/ticket-service/internal/api/dto"
	"github.com/flowbit/ticket-service/internal/auth"
	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/service"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), identity, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		Tags:        req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(ticketResponse(ticket, nil))
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}

	input := parseListQuery(c)
	tickets, total, err := h.service.ListTickets(c.UserContext(), identity, input)
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i], nil))
	}
	pages := 0
	if input.Limit > 0 {
		pages = (total + input.Limit - 1) / input.Limit
	}
	return c.JSON(dto.TicketListResponse{
		Tickets: items,
		Pagination: dto.Pagination{
			Page:  input.Page,
			Limit: input.Limit,
			Total: total,
			Pages: pages,
		},
	})
}

// GetStats GET /api/tickets/stats.
func (h *TicketsHandler) GetStats(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	stats, err := h.service.GetStats(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(dto.StatsResponse{
		Total:      stats.Total,
		ByStatus:   stats.ByStatus,
		ByPriority: stats.ByPriority,
	})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	ticket, comments, err := h.service.GetTicket(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(ticketResponse(ticket, comments))
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), identity, c.Params("id"), service.TicketUpdateInput{
		Title:            req.Title,
		Description:      req.Description,
		Status:           req.Status,
		Priority:         req.Priority,
		Category:         req.Category,
		Resolution:       req.Resolution,
		AssignedToUserID: req.AssignedToUserID,
		Tags:             req.Tags,
	})
	if err != nil {
		return err
	}
	return c.JSON(ticketResponse(ticket, nil))
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	if err := h.service.DeleteTicket(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Ticket deleted successfully"})
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.AddComment(c.UserContext(), identity, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(commentResponse(comment))
}

func parseListQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{
		Page:  parseInt(c.Query("page"), 1),
		Limit: parseInt(c.Query("limit"), 10),
	}
	if status := c.Query("status"); status != "" {
		s := domain.TicketStatus(status)
		input.Status = &s
	}
	if priority := c.Query("priority"); priority != "" {
		p := domain.TicketPriority(priority)
		input.Priority = &p
	}
	if category := c.Query("category"); category != "" {
		cat := domain.TicketCategory(category)
		input.Category = &cat
	}
	return input
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket, comments []domain.Comment) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:               ticket.ID,
		TenantID:         ticket.TenantID,
		OwnerUserID:      ticket.OwnerUserID,
		AssignedToUserID: ticket.AssignedToUserID,
		Title:            ticket.Title,
		Description:      ticket.Description,
		Status:           string(ticket.Status),
		Priority:         string(ticket.Priority),
		Category:         string(ticket.Category),
		WorkflowStatus:   string(ticket.WorkflowStatus),
		Resolution:       ticket.Resolution,
		Tags:             ticket.Tags,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
		ResolvedAt:       ticket.ResolvedAt,
	}
	for i := range comments {
		resp.Comments = append(resp.Comments, commentResponse(&comments[i]))
	}
	return resp
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:           comment.ID,
		AuthorUserID: comment.AuthorUserID,
		Content:      comment.Content,
		CreatedAt:    comment.CreatedAt,
	}
}
