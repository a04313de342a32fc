// Package agent orchestrates outbound offer calls: it starts them, runs the
// scripted dialogue turn by turn, decides the call outcome and fans calls out
// over a pool of executors.
package agent

import (
	"sync"
	"time"

	"courier-dialer/internal/dialogue"
)

// Order is a delivery order offered to executors over the phone. Immutable
// once offered.
type Order struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	Address        string   `json:"address"`
	Datetime       string   `json:"datetime"`
	Payment        string   `json:"payment"`
	AdditionalInfo string   `json:"additional_info,omitempty"`
	RequiredSkills []string `json:"required_skills,omitempty"`
}

func (o Order) summary() dialogue.OrderSummary {
	return dialogue.OrderSummary{
		Description:    o.Description,
		Address:        o.Address,
		Datetime:       o.Datetime,
		Payment:        o.Payment,
		AdditionalInfo: o.AdditionalInfo,
	}
}

// Executor is a courier that can be called about an order. Supplied by the
// caller, never mutated here.
type Executor struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Skills    []string `json:"skills,omitempty"`
	Rating    float64  `json:"rating,omitempty"`
	Available bool     `json:"available"`
}

// HasSkills reports whether the executor covers every required skill.
func (e Executor) HasSkills(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range e.Skills {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CallResult is the session outcome. A session starts in_progress and moves
// to exactly one terminal result, once.
type CallResult string

const (
	ResultInProgress CallResult = "in_progress"
	ResultAccepted   CallResult = "accepted"
	ResultDeclined   CallResult = "declined"
	ResultNoAnswer   CallResult = "no_answer"
	ResultError      CallResult = "error"
)

func (r CallResult) Terminal() bool { return r != ResultInProgress && r != "" }

// session is the mutable per-call state. All fields past mu are guarded by
// it; done is closed exactly once, when the result turns terminal.
type session struct {
	mu sync.Mutex

	id       string
	callID   string
	executor Executor
	order    Order

	dc    dialogue.Context
	turns int

	result      CallResult
	startedAt   time.Time
	completedAt *time.Time

	done chan struct{}
}

// snapshotLocked copies the session state. Caller holds s.mu.
func (s *session) snapshotLocked() Snapshot {
	msgs := make([]dialogue.Message, len(s.dc.Messages))
	copy(msgs, s.dc.Messages)

	snap := Snapshot{
		ID:          s.id,
		CallID:      s.callID,
		Executor:    s.executor,
		Order:       s.order,
		Messages:    msgs,
		Turns:       s.turns,
		Result:      s.result,
		StartedAt:   s.startedAt,
		CompletedAt: s.completedAt,
	}
	if s.completedAt != nil {
		snap.DurationSeconds = int(s.completedAt.Sub(s.startedAt).Seconds())
	}
	return snap
}

// Snapshot is an immutable view of a session, safe to hand out of the
// package.
type Snapshot struct {
	ID       string   `json:"id"`
	CallID   string   `json:"call_id,omitempty"`
	Executor Executor `json:"executor"`
	Order    Order    `json:"order"`

	Messages []dialogue.Message `json:"messages"`
	Turns    int                `json:"turns"`

	Result          CallResult `json:"result"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
}
