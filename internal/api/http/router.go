package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/ticket-engine/internal/api/http/handlers"
	"github.com/fieldserve/ticket-engine/internal/auth"
	"github.com/fieldserve/ticket-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Workflow       *handlers.WorkflowHandler
	Billing        *handlers.BillingHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/pass", cfg.Workflow.PassTicket)
	tickets.Post("/:id/approval/request", cfg.Workflow.RequestApproval)
	tickets.Post("/:id/approval/decision",
		auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleManager), cfg.Workflow.ProcessApproval)

	api.Get("/billing/queue",
		auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleManager), cfg.Billing.ListQueue)
	api.Get("/notifications/log", cfg.Notifications.ListDeliveries)
}
