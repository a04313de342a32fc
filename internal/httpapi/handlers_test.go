package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"courier-dialer/internal/agent"
	"courier-dialer/internal/auth"
	"courier-dialer/internal/dialogue"
	"courier-dialer/internal/history"
	"courier-dialer/internal/telephony"
)

type stubGenerator struct{}

func (stubGenerator) GenerateReply(ctx context.Context, dc *dialogue.Context, agentName, companyName string) (string, error) {
	return "Уточните, пожалуйста.", nil
}

type stubTelephony struct {
	mu  sync.Mutex
	sms []string
}

func (s *stubTelephony) Name() string { return "stub" }

func (s *stubTelephony) StartCall(ctx context.Context, req telephony.StartCallRequest) (telephony.CallRecord, error) {
	return telephony.CallRecord{
		CallID:      "call-" + req.ExecutorID,
		PhoneNumber: req.PhoneNumber,
		Status:      telephony.StatusInitiated,
		StartedAt:   time.Now().UTC(),
	}, nil
}

func (s *stubTelephony) CallStatus(callID string) (telephony.CallRecord, bool) {
	return telephony.CallRecord{}, false
}

func (s *stubTelephony) HandleCallEvent(callID string, status telephony.CallStatus) {}

func (s *stubTelephony) EndCall(callID string, result string) bool { return true }

func (s *stubTelephony) SendSMS(ctx context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sms = append(s.sms, message)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *agent.Agent) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hist := history.NewService(history.NewMemoryRepo())
	a, err := agent.New(agent.Config{AgentName: "Анна", CompanyName: "Доставка", MaxTurns: 5},
		stubGenerator{}, &stubTelephony{}, nil, hist, nil)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}

	manager, err := auth.NewManager(auth.ManagerConfig{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	h := Handlers{
		Auth:    manager,
		Agent:   a,
		Dialer:  agent.NewDialer(a, agent.NewMemoryLimiter(2), time.Second),
		History: hist,
	}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(manager))
	{
		v1.POST("/dispatch/call", h.DispatchCall)
		v1.GET("/sessions", h.ListSessions)
		v1.GET("/sessions/:session_id", h.GetSession)
		v1.POST("/sessions/:session_id/greeting", h.SessionGreeting)
		v1.POST("/sessions/:session_id/response", h.SessionResponse)
		v1.GET("/history/:executor_id", h.ListHistory)
		v1.POST("/knowledge/documents", h.AddKnowledge)
		v1.POST("/knowledge/search", h.SearchKnowledge)
	}
	return r, a
}

func authHeader(t *testing.T, r *gin.Engine) string {
	t.Helper()
	body := `{"user_id":"op-1","role":"dispatcher"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var pair struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return "Bearer " + pair.AccessToken
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/v1/sessions", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestDispatchCallAndSessionLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	token := authHeader(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/dispatch/call", token, map[string]any{
		"executor": map[string]any{"id": "e1", "name": "Иван", "phone": "+79991234567", "available": true},
		"order":    map[string]any{"id": "ORD-1", "description": "Доставка документов", "payment": "500 рублей"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("dispatch call: %d %s", w.Code, w.Body.String())
	}
	var snap agent.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if snap.ID == "" || snap.Result != agent.ResultInProgress {
		t.Fatalf("unexpected session %+v", snap)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/sessions/"+snap.ID+"/greeting", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("greeting: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Здравствуйте, Иван!") {
		t.Fatalf("unexpected greeting body %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/v1/sessions/"+snap.ID+"/response", token,
		map[string]string{"text": "Да, принимаю"})
	if w.Code != http.StatusOK {
		t.Fatalf("response: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		Reply  string `json:"reply"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Result != "accepted" {
		t.Fatalf("expected accepted, got %q", out.Result)
	}

	// The dialogue is over: further utterances are rejected.
	w = doJSON(t, r, http.MethodPost, "/v1/sessions/"+snap.ID+"/response", token,
		map[string]string{"text": "Нет"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 after completion, got %d", w.Code)
	}

	// The completed call is queryable from the executor's history.
	w = doJSON(t, r, http.MethodGet, "/v1/history/e1", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d %s", w.Code, w.Body.String())
	}
	var hist struct {
		Records []history.Record `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(hist.Records))
	}
	if hist.Records[0].Result != "accepted" || hist.Records[0].OrderID != "ORD-1" {
		t.Fatalf("unexpected history record %+v", hist.Records[0])
	}
}

func TestGetSession_UnknownReturnsSentinel(t *testing.T) {
	r, _ := newTestRouter(t)
	token := authHeader(t, r)

	w := doJSON(t, r, http.MethodGet, "/v1/sessions/missing", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Сессия не найдена") {
		t.Fatalf("expected sentinel message, got %s", w.Body.String())
	}
}

func TestKnowledgeEndpoints_UnconfiguredStore(t *testing.T) {
	r, _ := newTestRouter(t)
	token := authHeader(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/knowledge/documents", token, map[string]any{
		"documents": []map[string]any{{"content": "Оплата картой"}},
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a vector store, got %d %s", w.Code, w.Body.String())
	}

	// Search degrades to an empty result set rather than failing.
	w = doJSON(t, r, http.MethodPost, "/v1/knowledge/search", token, map[string]any{"query": "оплата"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"documents":[]`) {
		t.Fatalf("expected empty documents, got %s", w.Body.String())
	}
}

func TestWebhook_FailureEventAbandonsSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tel := &stubTelephony{}
	a, err := agent.New(agent.Config{}, stubGenerator{}, tel, nil, nil, nil)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	snap, err := a.CallExecutor(context.Background(),
		agent.Executor{ID: "e1", Name: "Иван", Phone: "+7999", Available: true},
		agent.Order{ID: "ORD-1", Description: "Доставка"})
	if err != nil {
		t.Fatalf("call executor: %v", err)
	}

	r := gin.New()
	wh := WebhookHandler{Provider: tel, Agent: a}
	r.POST("/webhooks/voximplant/events", wh.HandleCallEvent)

	body := `{"call_id":"call-e1","event":"no-answer"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voximplant/events", strings.NewReader(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", w.Code, w.Body.String())
	}

	got, err := a.Session(snap.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if got.Result != agent.ResultNoAnswer {
		t.Fatalf("expected no_answer, got %s", got.Result)
	}
}
