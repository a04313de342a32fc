package telephony

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// CallEvent is the JSON payload our Voximplant scenario posts on every call
// state change.
//
// Keep it minimal and provider-adapter-only. Business decisions (what a
// failed call means for the session) are not made here.
type CallEvent struct {
	CallID      string `json:"call_id"`
	Event       string `json:"event"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Scenario event names.
const (
	EventRinging   = "ringing"
	EventConnected = "connected"
	EventEnded     = "ended"
	EventFailed    = "failed"
	EventNoAnswer  = "no-answer"
)

func ParseCallEvent(r *http.Request) (CallEvent, error) {
	var e CallEvent
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		return CallEvent{}, err
	}
	e.CallID = strings.TrimSpace(e.CallID)
	e.Event = strings.TrimSpace(strings.ToLower(e.Event))
	if e.CallID == "" {
		return CallEvent{}, errors.New("telephony: call_id is required")
	}
	if e.Event == "" {
		return CallEvent{}, errors.New("telephony: event is required")
	}
	return e, nil
}

// Status maps the scenario event to a call status progression, if any.
func (e CallEvent) Status() (CallStatus, bool) {
	switch e.Event {
	case EventRinging:
		return StatusRinging, true
	case EventConnected:
		return StatusConnected, true
	case EventEnded, EventFailed, EventNoAnswer:
		return StatusEnded, true
	default:
		return "", false
	}
}

// IsFailure reports whether the event means the executor never entered the
// dialogue.
func (e CallEvent) IsFailure() bool {
	return e.Event == EventFailed || e.Event == EventNoAnswer
}
