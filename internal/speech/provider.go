package speech

import "context"

// Provider converts call audio to text and agent replies to audio.
//
// Both directions are best-effort for callers: the orchestrator treats any
// error as "no transcript" / "no audio" and keeps the dialogue moving.
type Provider interface {
	Name() string

	SpeechToText(ctx context.Context, audio []byte) (string, error)
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
}
