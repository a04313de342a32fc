// Package dialogue owns the scripted conversation with an executor: the
// system prompt and greeting templates, deterministic intent classification,
// and the LLM-backed continuation generator.
//
// Template wording is part of the behavioral contract of the service; do not
// edit the Russian strings without updating the call scenarios that play them.
package dialogue

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single utterance in a call dialogue.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// OrderSummary is the order slice embedded into prompts. AdditionalInfo is
// used for knowledge retrieval and the system prompt but deliberately kept
// out of the spoken greeting.
type OrderSummary struct {
	Description    string `json:"description"`
	Address        string `json:"address"`
	Datetime       string `json:"datetime"`
	Payment        string `json:"payment"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

// ExecutorSummary is the minimal executor info a dialogue needs.
type ExecutorSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Context carries the state of one ongoing dialogue. Messages are
// append-only and never reordered; Knowledge is captured once at call start.
type Context struct {
	Messages  []Message       `json:"messages"`
	Order     OrderSummary    `json:"order"`
	Executor  ExecutorSummary `json:"executor"`
	Knowledge string          `json:"knowledge,omitempty"`
}

// Generator produces the next agent utterance from the full dialogue state.
// Implementations must not mutate the context.
type Generator interface {
	GenerateReply(ctx context.Context, dc *Context, agentName, companyName string) (string, error)
}
