package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"courier-dialer/internal/agent"
	"courier-dialer/internal/auth"
	"courier-dialer/internal/history"
	"courier-dialer/internal/httpapi"
	"courier-dialer/internal/speech"
	"courier-dialer/internal/telephony"
)

type routeDeps struct {
	auth      *auth.Manager
	agent     *agent.Agent
	dialer    *agent.Dialer
	history   *history.Service
	telephony telephony.Provider
	speech    speech.Provider
	log       *slog.Logger
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public). The call scenario posts lifecycle events
	// and opens the media stream here.
	wh := httpapi.WebhookHandler{Provider: deps.telephony, Agent: deps.agent}
	r.POST("/webhooks/voximplant/events", wh.HandleCallEvent)

	mh := httpapi.NewMediaHandler(deps.agent, deps.speech)
	r.GET("/webhooks/voximplant/media/:session_id", mh.HandleStream)

	h := httpapi.Handlers{
		Auth:    deps.auth,
		Agent:   deps.agent,
		Dialer:  deps.dialer,
		History: deps.history,
		Log:     deps.log,
	}

	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		dispatch := v1.Group("/dispatch")
		{
			dispatch.POST("/call", h.DispatchCall)
			dispatch.POST("/order", h.DispatchOrder)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", h.ListSessions)
			sessions.GET("/:session_id", h.GetSession)
			sessions.POST("/:session_id/greeting", h.SessionGreeting)
			sessions.POST("/:session_id/response", h.SessionResponse)
		}

		v1.GET("/history/:executor_id", h.ListHistory)

		// Knowledge base management is admin-only.
		kb := v1.Group("/knowledge")
		kb.Use(auth.RequireRole(auth.RoleAdmin))
		{
			kb.POST("/documents", h.AddKnowledge)
			kb.POST("/search", h.SearchKnowledge)
			kb.DELETE("/documents", h.DeleteKnowledge)
			kb.DELETE("", h.ClearKnowledge)
		}
	}
}
