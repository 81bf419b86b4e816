package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flowbit/ticket-service/internal/auth"
	"github.com/flowbit/ticket-service/internal/registry"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// ScreensHandler serves the static per-tenant screen registry.
type ScreensHandler struct {
	registry *registry.ScreenRegistry
}

// NewScreensHandler constructs handler.
func NewScreensHandler(screenRegistry *registry.ScreenRegistry) *ScreensHandler {
	return &ScreensHandler{registry: screenRegistry}
}

// Screens handles GET /api/me/screens.
func (h *ScreensHandler) Screens(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	screens, found := h.registry.ScreensFor(identity.TenantID, identity.IsAdmin())
	if !found {
		return errorutil.NewNotFound("screen configuration")
	}
	return c.JSON(screens)
}

// TenantInfo handles GET /api/me/tenant-info.
func (h *ScreensHandler) TenantInfo(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	entry, found := h.registry.Lookup(identity.TenantID)
	if !found {
		return errorutil.NewNotFound("tenant")
	}

	name := entry.Name
	if name == "" {
		name = identity.TenantID
	}
	return c.JSON(fiber.Map{
		"customerId":  identity.TenantID,
		"tenantName":  name,
		"description": entry.Description,
		"settings":    entry.Settings,
		"features":    entry.Features,
		"branding":    entry.Branding,
	})
}

// Profile handles GET /api/me/profile.
func (h *ScreensHandler) Profile(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":         identity.UserID,
			"email":      identity.Email,
			"customerId": identity.TenantID,
			"role":       string(identity.Role),
		},
	})
}
