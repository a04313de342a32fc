package httpapi

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"courier-dialer/internal/agent"
	"courier-dialer/internal/speech"
	"courier-dialer/pkg/logger"
)

// mediaFrame is one message on the call media stream. Audio travels base64
// inside JSON frames; text is always present so the scenario can fall back
// to platform TTS when audio is absent.
type mediaFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Audio  string `json:"audio,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	frameGreeting  = "greeting"
	frameUtterance = "utterance"
	frameReply     = "reply"
	frameCompleted = "completed"
	frameHangup    = "hangup"
	frameError     = "error"
)

// MediaHandler runs the call dialogue over a websocket opened by the
// Voximplant scenario. Speech is optional: without it frames carry text
// only.
type MediaHandler struct {
	Agent  *agent.Agent
	Speech speech.Provider

	upgrader websocket.Upgrader
}

func NewMediaHandler(a *agent.Agent, sp speech.Provider) *MediaHandler {
	return &MediaHandler{
		Agent:  a,
		Speech: sp,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// The scenario connects server-to-server without an Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleStream drives one call's dialogue: greeting out, utterances in,
// replies out, and a completed frame when the session settles.
func (h *MediaHandler) HandleStream(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := h.Agent.Session(sessionID); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": sessionNotFoundMsg})
		return
	}

	log := logger.FromGin(c).With("session_id", sessionID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	greeting, err := h.Agent.InitialGreeting(sessionID)
	if err != nil {
		_ = conn.WriteJSON(mediaFrame{Type: frameError, Error: err.Error()})
		return
	}
	if err := conn.WriteJSON(h.speakFrame(c, frameGreeting, greeting, "", log)); err != nil {
		return
	}

	for {
		var frame mediaFrame
		if err := conn.ReadJSON(&frame); err != nil {
			// Dropped stream: leave the outcome to the events webhook.
			log.Info("media stream closed", "error", err)
			return
		}

		switch frame.Type {
		case frameHangup:
			if _, err := h.Agent.AbandonSession(sessionID, agent.ResultNoAnswer); err != nil {
				log.Warn("abandon on hangup", "error", err)
			}
			return

		case frameUtterance:
			text := frame.Text
			if text == "" && frame.Audio != "" {
				text = h.transcribe(c, frame.Audio, log)
			}

			// An utterance that yields no text still consumes a turn, so
			// a caller the agent cannot understand runs out of turns
			// instead of holding the line open forever.
			reply, result, err := h.Agent.ProcessResponse(c.Request.Context(), sessionID, text)
			if err != nil {
				_ = conn.WriteJSON(mediaFrame{Type: frameError, Error: err.Error()})
				return
			}

			if err := conn.WriteJSON(h.speakFrame(c, frameReply, reply, string(result), log)); err != nil {
				return
			}
			if result.Terminal() {
				_ = conn.WriteJSON(mediaFrame{Type: frameCompleted, Result: string(result)})
				return
			}

		default:
			_ = conn.WriteJSON(mediaFrame{Type: frameError, Error: "unknown frame type"})
		}
	}
}

// speakFrame builds an outbound frame, synthesizing audio when speech is
// configured. Synthesis failures degrade to text-only frames.
func (h *MediaHandler) speakFrame(c *gin.Context, frameType, text, result string, log *slog.Logger) mediaFrame {
	frame := mediaFrame{Type: frameType, Text: text, Result: result}
	if h.Speech == nil || text == "" {
		return frame
	}
	audio, err := h.Speech.TextToSpeech(c.Request.Context(), text)
	if err != nil {
		log.Warn("tts failed", "error", err)
		return frame
	}
	frame.Audio = base64.StdEncoding.EncodeToString(audio)
	return frame
}

func (h *MediaHandler) transcribe(c *gin.Context, audioB64 string, log *slog.Logger) string {
	if h.Speech == nil {
		return ""
	}
	audio, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		log.Warn("bad audio payload", "error", err)
		return ""
	}
	text, err := h.Speech.SpeechToText(c.Request.Context(), audio)
	if err != nil {
		log.Warn("stt failed", "error", err)
		return ""
	}
	return text
}
