// Package httpapi exposes the dispatch service over HTTP.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"courier-dialer/internal/agent"
	"courier-dialer/internal/auth"
	"courier-dialer/internal/history"
	"courier-dialer/internal/knowledge"
)

// sessionNotFoundMsg is the wire-level error body for unknown sessions. The
// call scenarios match on this exact string.
const sessionNotFoundMsg = "Сессия не найдена"

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Agent   *agent.Agent
	Dialer  *agent.Dialer
	History *history.Service
	Log     *slog.Logger
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// --- Dispatch ---

type dispatchCallRequest struct {
	Executor agent.Executor `json:"executor"`
	Order    agent.Order    `json:"order"`
}

// DispatchCall starts one outbound call and returns the new session.
func (h Handlers) DispatchCall(c *gin.Context) {
	var req dispatchCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Executor.ID == "" || req.Executor.Phone == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "executor id and phone required"})
		return
	}
	if req.Order.ID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "order id required"})
		return
	}

	snap, err := h.Agent.CallExecutor(c.Request.Context(), req.Executor, req.Order)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, snap)
}

type dispatchOrderRequest struct {
	Executors []agent.Executor `json:"executors"`
	Order     agent.Order      `json:"order"`
}

// DispatchOrder rings executors about the order until one accepts. The
// request blocks until the dispatch settles; dashboards should poll
// /sessions for progress.
func (h Handlers) DispatchOrder(c *gin.Context) {
	var req dispatchOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.Executors) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "executors required"})
		return
	}
	if req.Order.ID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "order id required"})
		return
	}

	report := h.Dialer.CallExecutorsForOrder(c.Request.Context(), req.Executors, req.Order)
	c.JSON(http.StatusOK, report)
}

// --- Sessions ---

func (h Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.Agent.Sessions()})
}

func (h Handlers) GetSession(c *gin.Context) {
	snap, err := h.Agent.Session(c.Param("session_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": sessionNotFoundMsg})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SessionGreeting returns and records the fixed opening line.
func (h Handlers) SessionGreeting(c *gin.Context) {
	text, err := h.Agent.InitialGreeting(c.Param("session_id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": text})
}

type sessionResponseRequest struct {
	Text string `json:"text"`
}

// SessionResponse feeds one executor utterance into the dialogue.
func (h Handlers) SessionResponse(c *gin.Context) {
	var req sessionResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Text == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}

	reply, result, err := h.Agent.ProcessResponse(c.Request.Context(), c.Param("session_id"), req.Text)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply, "result": result})
}

func (h Handlers) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, agent.ErrSessionNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": sessionNotFoundMsg})
	case errors.Is(err, agent.ErrSessionCompleted):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "session already completed"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// --- Call history ---

// ListHistory returns an executor's archived call outcomes, newest first.
func (h Handlers) ListHistory(c *gin.Context) {
	if h.History == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "history not configured"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := h.History.ListByExecutor(c.Request.Context(), c.Param("executor_id"), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// --- Knowledge base ---

type addDocumentsRequest struct {
	Documents []knowledge.Document `json:"documents"`
}

func (h Handlers) AddKnowledge(c *gin.Context) {
	var req addDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.Documents) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "documents required"})
		return
	}
	for _, d := range req.Documents {
		if d.Content == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "document content required"})
			return
		}
	}

	ids, err := h.Agent.AddKnowledge(c.Request.Context(), req.Documents)
	if err != nil {
		h.knowledgeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ids": ids})
}

type searchKnowledgeRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (h Handlers) SearchKnowledge(c *gin.Context) {
	var req searchKnowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Query == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "query required"})
		return
	}

	docs, err := h.Agent.SearchKnowledge(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		h.knowledgeError(c, err)
		return
	}
	if docs == nil {
		docs = []knowledge.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

type deleteDocumentsRequest struct {
	IDs []string `json:"ids"`
}

func (h Handlers) DeleteKnowledge(c *gin.Context) {
	var req deleteDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.IDs) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ids required"})
		return
	}
	if err := h.Agent.DeleteKnowledge(c.Request.Context(), req.IDs); err != nil {
		h.knowledgeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ClearKnowledge(c *gin.Context) {
	if err := h.Agent.ClearKnowledge(c.Request.Context()); err != nil {
		h.knowledgeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) knowledgeError(c *gin.Context, err error) {
	if errors.Is(err, knowledge.ErrNotConfigured) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge base not configured"})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
