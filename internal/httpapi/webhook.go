package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier-dialer/internal/agent"
	"courier-dialer/internal/telephony"
	"courier-dialer/pkg/logger"
)

// WebhookHandler receives call lifecycle events from the Voximplant
// scenario.
//
// NOTE: The endpoint should be protected by an allowlist or a shared secret
// in production.
type WebhookHandler struct {
	Provider telephony.Provider
	Agent    *agent.Agent
}

// HandleCallEvent advances the call record and, for failure events, writes
// the session off as no_answer.
func (h WebhookHandler) HandleCallEvent(c *gin.Context) {
	event, err := telephony.ParseCallEvent(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log := logger.FromGin(c)
	log.Info("call event", "call_id", event.CallID, "event", event.Event)

	if status, ok := event.Status(); ok {
		h.Provider.HandleCallEvent(event.CallID, status)
	}

	if event.IsFailure() {
		snap, err := h.Agent.SessionByCallID(event.CallID)
		if err == nil {
			if _, err := h.Agent.AbandonSession(snap.ID, agent.ResultNoAnswer); err != nil {
				log.Warn("abandon after failure event", "session_id", snap.ID, "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
