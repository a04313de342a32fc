package telephony

import (
	"context"
	"time"
)

// Provider defines the provider-agnostic telephony interface used by the
// orchestrator.
//
// Rules:
// - No provider API calls outside telephony adapters.
// - Call records are mutated only here, and only monotonically forward
//   through status.
// - Keep request/response types provider-agnostic.
type Provider interface {
	Name() string

	// StartCall places an outbound call carrying the scenario payload.
	// Failure to start is the one hard error in the system: the caller
	// must not create any session state when it is returned.
	StartCall(ctx context.Context, req StartCallRequest) (CallRecord, error)

	// CallStatus reports the tracked record for an active or ended call.
	CallStatus(callID string) (CallRecord, bool)

	// HandleCallEvent advances a call's status from a platform event.
	// Regressions (e.g. "ringing" after "connected") are ignored.
	HandleCallEvent(callID string, status CallStatus)

	// EndCall marks the call ended with the given terminal result and
	// derives its duration. Returns false for unknown calls.
	EndCall(callID string, result string) bool

	SendSMS(ctx context.Context, phoneNumber, message string) error
}

type CallStatus string

const (
	StatusInitiated CallStatus = "initiated"
	StatusRinging   CallStatus = "ringing"
	StatusConnected CallStatus = "connected"
	StatusEnded     CallStatus = "ended"
)

// statusRank orders statuses so that records only ever move forward.
var statusRank = map[CallStatus]int{
	StatusInitiated: 0,
	StatusRinging:   1,
	StatusConnected: 2,
	StatusEnded:     3,
}

// StartCallRequest carries everything the call scenario needs.
type StartCallRequest struct {
	ExecutorID   string `json:"executor_id"`
	ExecutorName string `json:"executor_name"`

	// PhoneNumber is E.164 where possible.
	PhoneNumber string `json:"phone_number"`

	// CustomData is serialized into the scenario's custom data payload.
	CustomData map[string]any `json:"custom_data,omitempty"`
}

// CallRecord tracks one outbound call.
type CallRecord struct {
	CallID       string `json:"call_id"`
	PhoneNumber  string `json:"phone_number"`
	ExecutorID   string `json:"executor_id"`
	ExecutorName string `json:"executor_name"`

	Status CallStatus `json:"status"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	DurationSeconds int `json:"duration_seconds"`

	// Result is the terminal tag set by EndCall (accepted, declined,
	// no_answer, error). Empty while the call is live.
	Result string `json:"result,omitempty"`
}
