package history

import "time"

// Record is an immutable, append-only snapshot of one finished call.
//
// Invariants:
// - Records are never updated or deleted individually; retention is handled
//   by time-based purge only.
// - A record is written exactly once, when the call session completes.

type Record struct {
	ID        string `json:"id" db:"id"`
	SessionID string `json:"session_id" db:"session_id"`

	ExecutorID   string `json:"executor_id" db:"executor_id"`
	ExecutorName string `json:"executor_name,omitempty" db:"executor_name"`
	PhoneNumber  string `json:"phone_number,omitempty" db:"phone_number"`

	OrderID string `json:"order_id" db:"order_id"`

	// Result is the terminal call outcome: accepted, declined, no_answer
	// or error.
	Result string `json:"result" db:"result"`

	Turns           int `json:"turns" db:"turns"`
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Transcript is the full dialogue as JSON.
	Transcript string `json:"transcript,omitempty" db:"transcript"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
