package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flowbit/ticket-service/internal/api/http/handlers"
	"github.com/flowbit/ticket-service/internal/auth"
)

// RouteConfig bundles everything the router needs.
type RouteConfig struct {
	Auth            *auth.Middleware
	AuthHandler     *handlers.AuthHandler
	TicketsHandler  *handlers.TicketsHandler
	WebhookHandler  *handlers.WebhookHandler
	ScreensHandler  *handlers.ScreensHandler
	HealthHandler   *handlers.HealthHandler
	RealtimeUpgrade fiber.Handler
	RealtimeHandler fiber.Handler
}

// RegisterRoutes mounts all HTTP endpoints on the app.
func RegisterRoutes(app *fiber.App, rc RouteConfig) {
	health := app.Group("/health")
	health.Get("/live", rc.HealthHandler.Live)
	health.Get("/ready", rc.HealthHandler.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", rc.AuthHandler.Register)
	authGroup.Post("/login", rc.AuthHandler.Login)
	authGroup.Get("/me", rc.Auth.Handle, rc.AuthHandler.Me)
	authGroup.Post("/refresh", rc.Auth.Handle, rc.AuthHandler.Refresh)
	authGroup.Post("/logout", rc.Auth.Handle, rc.AuthHandler.Logout)

	tickets := api.Group("/tickets", rc.Auth.Handle)
	tickets.Get("/", rc.TicketsHandler.ListTickets)
	tickets.Get("/stats", rc.TicketsHandler.GetStats)
	tickets.Post("/", rc.TicketsHandler.CreateTicket)
	tickets.Get("/:id", rc.TicketsHandler.GetTicket)
	tickets.Put("/:id", rc.TicketsHandler.UpdateTicket)
	tickets.Delete("/:id", auth.RequireAdmin(), rc.TicketsHandler.DeleteTicket)
	tickets.Post("/:id/comments", rc.TicketsHandler.AddComment)

	me := api.Group("/me", rc.Auth.Handle)
	me.Get("/screens", rc.ScreensHandler.Screens)
	me.Get("/tenant-info", rc.ScreensHandler.TenantInfo)
	me.Get("/profile", rc.ScreensHandler.Profile)

	webhook := app.Group("/webhook")
	webhook.Post("/ticket-done", rc.WebhookHandler.TicketDone)
	webhook.Post("/ticket-process", rc.WebhookHandler.TicketProcess)
	webhook.Get("/health", rc.WebhookHandler.Health)

	app.Get("/ws", rc.Auth.Handle, rc.RealtimeUpgrade, rc.RealtimeHandler)
}
