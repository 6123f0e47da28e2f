package handlers

import (
	"zapfleet/internal/app"
	"zapfleet/internal/http/middleware"

	"github.com/labstack/echo/v4"
)

// SetupRoutes sets up all API routes
func SetupRoutes(api *echo.Group, services *app.Services, wsHandler *WebSocketHandler) {
	// Auth routes (no authentication required)
	authHandler := NewAuthHandler(services.AuthService, services.UserRepo)
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	// WebSocket endpoint (handles authentication manually via query parameter)
	api.GET("/ws", wsHandler.HandleWebSocket)

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(services.AuthService))
	protected.Use(middleware.TenantResolver(services.DB))

	// User profile routes (authenticated users)
	profileAuth := protected.Group("/auth")
	profileAuth.GET("/me", authHandler.Me)
	profileAuth.PUT("/change-password", authHandler.ChangePassword)

	// System admin routes (cross-tenant operations)
	admin := protected.Group("/admin")
	admin.Use(middleware.SystemAdminOnly())
	monitoringHandler := NewMonitoringHandler(services.Monitor)
	admin.POST("/monitoring/run", monitoringHandler.RunNow)
	admin.POST("/monitoring/cleanup", monitoringHandler.Cleanup)

	// Tenant routes (require tenant context)
	tenant := protected.Group("")
	tenant.Use(middleware.RequireTenant())

	// Channels
	channelHandler := NewChannelHandler(services.ChannelRepo, services.ZapClient)
	channels := tenant.Group("/channels")
	channels.GET("", channelHandler.List)
	channels.POST("", channelHandler.Create, middleware.TenantAdminOrAbove())
	channels.GET("/:id", channelHandler.GetByID)
	channels.PUT("/:id", channelHandler.Update, middleware.TenantAdminOrAbove())
	channels.DELETE("/:id", channelHandler.Delete, middleware.TenantAdminOrAbove())
	channels.GET("/:id/status", channelHandler.GetStatus)

	// Groups
	groupHandler := NewGroupHandler(services.GroupRepo, services.ChannelRepo, services.SyncService, services.ZapClient)
	groups := tenant.Group("/groups")
	groups.GET("", groupHandler.List)
	groups.POST("/sync", groupHandler.Sync)
	groups.POST("/join", groupHandler.Join)
	groups.GET("/:id", groupHandler.GetByID)
	groups.DELETE("/:id", groupHandler.Delete, middleware.TenantAdminOrAbove())
	groups.POST("/:id/refresh", groupHandler.Refresh)
	groups.PUT("/:id/settings", groupHandler.UpdateSettings, middleware.TenantAdminOrAbove())
	groups.PUT("/:id/subject", groupHandler.SetSubject)
	groups.PUT("/:id/description", groupHandler.SetDescription)
	groups.PUT("/:id/picture", groupHandler.SetPicture)
	groups.POST("/:id/participants/add", groupHandler.AddParticipants)
	groups.POST("/:id/participants/remove", groupHandler.RemoveParticipants)
	groups.POST("/:id/participants/promote", groupHandler.PromoteParticipants)
	groups.POST("/:id/participants/demote", groupHandler.DemoteParticipants)
	groups.GET("/:id/invite", groupHandler.GetInviteLink)
	groups.POST("/:id/invite/revoke", groupHandler.RevokeInviteLink)
	groups.POST("/:id/message", groupHandler.SendMessage)
	groups.POST("/:id/leave", groupHandler.Leave, middleware.TenantAdminOrAbove())

	// Group series
	seriesHandler := NewGroupSeriesHandler(services.SeriesRepo, services.GroupRepo, services.ChannelRepo, services.Provisioner, services.Monitor)
	series := tenant.Group("/group-series")
	series.GET("", seriesHandler.List)
	series.POST("", seriesHandler.Create, middleware.TenantAdminOrAbove())
	series.GET("/:id", seriesHandler.GetByID)
	series.PUT("/:id", seriesHandler.Update, middleware.TenantAdminOrAbove())
	series.DELETE("/:id", seriesHandler.Delete, middleware.TenantAdminOrAbove())
	series.GET("/:id/stats", seriesHandler.Stats)
	series.POST("/:id/force-next", seriesHandler.ForceNext, middleware.TenantAdminOrAbove())
	series.POST("/:id/check", seriesHandler.Check)

	// Monitoring (tenant scoped)
	tenant.GET("/monitoring/diagnostics", monitoringHandler.Diagnostics)
}
