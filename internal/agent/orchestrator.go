package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier-dialer/internal/dialogue"
	"courier-dialer/internal/history"
	"courier-dialer/internal/knowledge"
	"courier-dialer/internal/telephony"
)

var (
	ErrSessionNotFound  = errors.New("agent: session not found")
	ErrSessionCompleted = errors.New("agent: session already completed")
)

// Fixed terminal lines. These are spoken as-is by the call scenario.
const (
	acceptReplyFmt  = "Отлично, %s! Заказ закреплён за вами. Детали придут в SMS. Спасибо и хорошего дня!"
	declineReplyFmt = "Понимаю, %s. Спасибо за ответ. Если передумаете, мы на связи. Хорошего дня!"
	turnLimitReply  = "К сожалению, нам нужно завершить разговор. Спасибо за ваше время. До свидания!"

	smsTemplate = "Заказ #%s закреплён за вами.\nАдрес: %s\nВремя: %s\nОплата: %s"
)

// Config tunes the call agent.
type Config struct {
	AgentName   string
	CompanyName string

	// MaxTurns caps executor utterances per call before the agent hangs up.
	MaxTurns int

	// ContextBudget caps knowledge characters injected into the prompt.
	ContextBudget int
}

func (c Config) withDefaults() Config {
	out := c
	if out.AgentName == "" {
		out.AgentName = "Анна"
	}
	if out.CompanyName == "" {
		out.CompanyName = "Компания"
	}
	if out.MaxTurns <= 0 {
		out.MaxTurns = 10
	}
	if out.ContextBudget <= 0 {
		out.ContextBudget = knowledge.DefaultContextBudget
	}
	return out
}

// Agent runs offer-call sessions end to end.
type Agent struct {
	cfg Config
	gen dialogue.Generator
	tel telephony.Provider
	kb  knowledge.Base
	hst *history.Service
	log *slog.Logger

	store *store

	cbMu        sync.Mutex
	onCompleted func(Snapshot)
}

// New wires the agent. Generator and telephony are required; knowledge and
// history are optional and degrade to no-ops.
func New(cfg Config, gen dialogue.Generator, tel telephony.Provider, kb knowledge.Base, hst *history.Service, log *slog.Logger) (*Agent, error) {
	if gen == nil {
		return nil, errors.New("agent: dialogue generator is required")
	}
	if tel == nil {
		return nil, errors.New("agent: telephony provider is required")
	}
	if kb == nil {
		kb = knowledge.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Agent{
		cfg:   cfg.withDefaults(),
		gen:   gen,
		tel:   tel,
		kb:    kb,
		hst:   hst,
		log:   log,
		store: newStore(),
	}, nil
}

// SetOnCallCompleted registers the completion callback. It replaces any
// previous callback and fires exactly once per session, after the terminal
// result is recorded.
func (a *Agent) SetOnCallCompleted(fn func(Snapshot)) {
	a.cbMu.Lock()
	a.onCompleted = fn
	a.cbMu.Unlock()
}

// CallExecutor starts one outbound call and registers its session. No
// session is created when the call cannot be placed.
func (a *Agent) CallExecutor(ctx context.Context, executor Executor, order Order) (Snapshot, error) {
	if executor.Phone == "" {
		return Snapshot{}, errors.New("agent: executor phone is required")
	}
	if !executor.Available {
		return Snapshot{}, fmt.Errorf("agent: executor %s is not available", executor.ID)
	}

	knowledgeCtx := a.knowledgeContext(ctx, order)

	sessionID := uuid.NewString()
	rec, err := a.tel.StartCall(ctx, telephony.StartCallRequest{
		ExecutorID:   executor.ID,
		ExecutorName: executor.Name,
		PhoneNumber:  executor.Phone,
		CustomData: map[string]any{
			"session_id": sessionID,
			"order_id":   order.ID,
		},
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("agent: start call: %w", err)
	}

	s := &session{
		id:       sessionID,
		callID:   rec.CallID,
		executor: executor,
		order:    order,
		dc: dialogue.Context{
			Order:     order.summary(),
			Executor:  dialogue.ExecutorSummary{ID: executor.ID, Name: executor.Name},
			Knowledge: knowledgeCtx,
		},
		result:    ResultInProgress,
		startedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
	a.store.add(s)

	a.log.Info("call session started",
		"session_id", sessionID, "call_id", rec.CallID,
		"executor_id", executor.ID, "order_id", order.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// knowledgeContext retrieves relevant company knowledge for the order.
// Retrieval failures degrade to an empty context.
func (a *Agent) knowledgeContext(ctx context.Context, order Order) string {
	query := order.Description
	if order.AdditionalInfo != "" {
		query += " " + order.AdditionalInfo
	}
	if query == "" {
		return ""
	}
	text, err := a.kb.ContextForQuery(ctx, query, a.cfg.ContextBudget)
	if err != nil {
		a.log.Warn("knowledge retrieval failed", "order_id", order.ID, "error", err)
		return ""
	}
	return text
}

// InitialGreeting returns the opening line and records it in the transcript.
// Calling it again on a session that already greeted returns the same line
// without duplicating it.
func (a *Agent) InitialGreeting(sessionID string) (string, error) {
	s, ok := a.store.get(sessionID)
	if !ok {
		return "", ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result.Terminal() {
		return "", ErrSessionCompleted
	}
	if len(s.dc.Messages) > 0 && s.dc.Messages[0].Role == dialogue.RoleAssistant {
		return s.dc.Messages[0].Content, nil
	}

	greeting := dialogue.Greeting(a.cfg.AgentName, a.cfg.CompanyName, s.executor.Name, s.dc.Order)
	s.dc.Messages = append(s.dc.Messages, dialogue.Message{Role: dialogue.RoleAssistant, Content: greeting})
	return greeting, nil
}

// ProcessResponse handles one executor utterance and returns the agent reply
// plus the session result after this turn.
//
// Decision order: an explicit accept or decline always wins; only an
// inconclusive utterance at the turn limit forces the polite hang-up.
func (a *Agent) ProcessResponse(ctx context.Context, sessionID, text string) (string, CallResult, error) {
	s, ok := a.store.get(sessionID)
	if !ok {
		return "", "", ErrSessionNotFound
	}

	s.mu.Lock()
	if s.result.Terminal() {
		s.mu.Unlock()
		return "", s.result, ErrSessionCompleted
	}

	s.dc.Messages = append(s.dc.Messages, dialogue.Message{Role: dialogue.RoleUser, Content: text})
	s.turns++

	intent := dialogue.ClassifyIntent(text)

	var (
		reply string
		snap  Snapshot
	)
	switch {
	case intent.Label == dialogue.IntentAccept:
		reply = fmt.Sprintf(acceptReplyFmt, s.executor.Name)
		s.dc.Messages = append(s.dc.Messages, dialogue.Message{Role: dialogue.RoleAssistant, Content: reply})
		snap = a.completeLocked(s, ResultAccepted)
		s.mu.Unlock()
		a.finish(snap)
		return reply, ResultAccepted, nil

	case intent.Label == dialogue.IntentDecline:
		reply = fmt.Sprintf(declineReplyFmt, s.executor.Name)
		s.dc.Messages = append(s.dc.Messages, dialogue.Message{Role: dialogue.RoleAssistant, Content: reply})
		snap = a.completeLocked(s, ResultDeclined)
		s.mu.Unlock()
		a.finish(snap)
		return reply, ResultDeclined, nil

	case s.turns >= a.cfg.MaxTurns:
		reply = turnLimitReply
		s.dc.Messages = append(s.dc.Messages, dialogue.Message{Role: dialogue.RoleAssistant, Content: reply})
		snap = a.completeLocked(s, ResultDeclined)
		s.mu.Unlock()
		a.finish(snap)
		return reply, ResultDeclined, nil
	}

	// Continuation turn: generate outside the session lock, on a copy.
	dcCopy := s.dc
	dcCopy.Messages = make([]dialogue.Message, len(s.dc.Messages))
	copy(dcCopy.Messages, s.dc.Messages)
	s.mu.Unlock()

	reply, err := a.gen.GenerateReply(ctx, &dcCopy, a.cfg.AgentName, a.cfg.CompanyName)
	if err != nil {
		a.log.Warn("reply generation failed", "session_id", sessionID, "error", err)
		reply = dialogue.ReplyOnGenerationFailure
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Terminal() {
		return "", s.result, ErrSessionCompleted
	}
	s.dc.Messages = append(s.dc.Messages, dialogue.Message{Role: dialogue.RoleAssistant, Content: reply})
	return reply, ResultInProgress, nil
}

// completeLocked records the terminal result. Caller holds s.mu and must run
// a.finish on the returned snapshot after unlocking.
func (a *Agent) completeLocked(s *session, result CallResult) Snapshot {
	now := time.Now().UTC()
	s.result = result
	s.completedAt = &now
	close(s.done)
	return s.snapshotLocked()
}

// finish runs completion side effects on a snapshot, outside any session
// lock so callbacks may call back into the agent.
func (a *Agent) finish(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if snap.CallID != "" {
		a.tel.EndCall(snap.CallID, string(snap.Result))
	}

	if snap.Result == ResultAccepted {
		sms := fmt.Sprintf(smsTemplate, snap.Order.ID, snap.Order.Address, snap.Order.Datetime, snap.Order.Payment)
		if err := a.tel.SendSMS(ctx, snap.Executor.Phone, sms); err != nil {
			a.log.Warn("confirmation sms failed", "session_id", snap.ID, "error", err)
		}
	}

	a.archive(ctx, snap)

	a.cbMu.Lock()
	cb := a.onCompleted
	a.cbMu.Unlock()
	if cb != nil {
		cb(snap)
	}

	a.log.Info("call session completed",
		"session_id", snap.ID, "result", snap.Result, "turns", snap.Turns)
}

func (a *Agent) archive(ctx context.Context, snap Snapshot) {
	if a.hst == nil {
		return
	}
	transcript, err := json.Marshal(snap.Messages)
	if err != nil {
		transcript = nil
	}
	rec := history.Record{
		SessionID:       snap.ID,
		ExecutorID:      snap.Executor.ID,
		ExecutorName:    snap.Executor.Name,
		PhoneNumber:     snap.Executor.Phone,
		OrderID:         snap.Order.ID,
		Result:          string(snap.Result),
		Turns:           snap.Turns,
		DurationSeconds: snap.DurationSeconds,
		Transcript:      string(transcript),
	}
	if err := a.hst.Archive(ctx, rec); err != nil {
		a.log.Warn("history archive failed", "session_id", snap.ID, "error", err)
	}
}

// AbandonSession force-completes an in-progress session, typically as
// no_answer when the executor never picked up. Completed sessions are left
// untouched.
func (a *Agent) AbandonSession(sessionID string, result CallResult) (Snapshot, error) {
	s, ok := a.store.get(sessionID)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	if !result.Terminal() {
		result = ResultNoAnswer
	}

	s.mu.Lock()
	if s.result.Terminal() {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	snap := a.completeLocked(s, result)
	s.mu.Unlock()

	a.finish(snap)
	return snap, nil
}

// WaitForResult blocks until the session reaches a terminal result or the
// context expires.
func (a *Agent) WaitForResult(ctx context.Context, sessionID string) (Snapshot, error) {
	s, ok := a.store.get(sessionID)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Session returns one session snapshot.
func (a *Agent) Session(sessionID string) (Snapshot, error) {
	s, ok := a.store.get(sessionID)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// SessionByCallID finds the session driving a telephony call.
func (a *Agent) SessionByCallID(callID string) (Snapshot, error) {
	for _, s := range a.store.all() {
		s.mu.Lock()
		if s.callID == callID {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		s.mu.Unlock()
	}
	return Snapshot{}, ErrSessionNotFound
}

// Sessions lists all sessions, newest first.
func (a *Agent) Sessions() []Snapshot {
	sessions := a.store.all()
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		out = append(out, s.snapshotLocked())
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// ActiveSessions counts sessions still in progress.
func (a *Agent) ActiveSessions() int {
	n := 0
	for _, s := range a.store.all() {
		s.mu.Lock()
		if !s.result.Terminal() {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// PurgeCompleted drops completed sessions older than the given age.
func (a *Agent) PurgeCompleted(olderThan time.Duration) int {
	return a.store.purgeCompleted(time.Now().UTC().Add(-olderThan))
}

// Knowledge base pass-throughs used by the HTTP layer.

func (a *Agent) AddKnowledge(ctx context.Context, docs []knowledge.Document) ([]string, error) {
	return a.kb.AddDocuments(ctx, docs)
}

func (a *Agent) SearchKnowledge(ctx context.Context, query string, limit int) ([]knowledge.Document, error) {
	return a.kb.Search(ctx, query, limit)
}

func (a *Agent) DeleteKnowledge(ctx context.Context, ids []string) error {
	return a.kb.DeleteDocuments(ctx, ids)
}

func (a *Agent) ClearKnowledge(ctx context.Context) error {
	return a.kb.Clear(ctx)
}
