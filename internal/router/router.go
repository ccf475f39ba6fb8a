// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/averlane/client-portal/internal/config"
	"github.com/averlane/client-portal/internal/handler"
	"github.com/averlane/client-portal/internal/middleware"
	"github.com/averlane/client-portal/internal/model"
)

// RegisterPublic registers routes that require no authentication: the
// health check, the tracking pixel fetched by mail clients, and the
// invitation signup flow.  The rate limiter guards the pixel and the
// accept endpoint since both are reachable by anyone.
func RegisterPublic(e *echo.Echo, t *handler.TrackingHandler, inv *handler.InvitationHandler, limit echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// The pixel always answers 200 with the image; see TrackingHandler.Pixel.
	e.GET("/track/:id", t.Pixel, limit)

	e.GET("/v1/invitations/validate", inv.Validate, limit)
	e.POST("/v1/invitations/accept", inv.Accept, limit)
}

// RegisterAuth registers the login endpoint and the authenticated /v1
// group.  Mutating portal routes additionally require the ADMIN role.
func RegisterAuth(e *echo.Echo, cfg config.Config, a *handler.AuthHandler, cl *handler.ClientHandler, t *handler.TrackingHandler, inv *handler.InvitationHandler, limit echo.MiddlewareFunc) {
	e.POST("/v1/auth/login", a.Login, limit)

	// Everything below requires a valid access token.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleClient))

	auth.GET("/me", a.Me)
	auth.GET("/stages", cl.Stages)

	// Pipeline management is admin-only.
	admin := e.Group("/v1")
	admin.Use(middleware.JWTAuth(cfg.JWTSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))

	admin.POST("/clients", cl.CreateClient)
	admin.GET("/clients", cl.ListClients)
	admin.GET("/clients/:id", cl.GetClient)
	admin.PATCH("/clients/:id", cl.UpdateClient)
	admin.DELETE("/clients/:id", cl.DeleteClient)
	admin.PUT("/clients/:id/stage", cl.UpdateStage)
	admin.GET("/clients/:id/history", cl.GetHistory)

	admin.GET("/tracking", t.List)
	admin.POST("/tracking/test", t.CreateTest)

	admin.POST("/invitations", inv.Issue)
	admin.GET("/invitations", inv.List)
	admin.DELETE("/invitations/:id", inv.Cancel)

	admin.DELETE("/operators/:id", a.DeleteOperator)
}
