package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultSaluteBaseURL = "https://smartspeech.sber.ru/rest/v1"

// SaluteConfig configures the SaluteSpeech REST adapter.
type SaluteConfig struct {
	Credentials string
	Language    string
	Voice       string
	SampleRate  int

	// BaseURL overrides the API endpoint (tests).
	BaseURL string

	HTTPTimeout time.Duration
}

func (c SaluteConfig) withDefaults() SaluteConfig {
	out := c
	if out.Language == "" {
		out.Language = "ru-RU"
	}
	if out.Voice == "" {
		out.Voice = "Nec_24000"
	}
	if out.SampleRate <= 0 {
		out.SampleRate = 24000
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 30 * time.Second
	}
	return out
}

// Salute is the SaluteSpeech STT/TTS adapter.
type Salute struct {
	cfg     SaluteConfig
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

func NewSalute(cfg SaluteConfig, log *slog.Logger) (*Salute, error) {
	if cfg.Credentials == "" {
		return nil, errors.New("speech: salute credentials are required")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultSaluteBaseURL
	}

	return &Salute{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
	}, nil
}

func (s *Salute) Name() string { return "salute_speech" }

type recognizeResponse struct {
	Result []string `json:"result"`
	Status int      `json:"status"`
}

// SpeechToText transcribes one utterance of call audio.
func (s *Salute) SpeechToText(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("speech: empty audio")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/speech:recognize", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Credentials)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/x-pcm;bit=16;rate=%d", s.cfg.SampleRate))

	q := req.URL.Query()
	q.Set("language", s.cfg.Language)
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech: recognize request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech: recognize returned status %d", resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("speech: decode recognize response: %w", err)
	}
	return strings.Join(out.Result, " "), nil
}

type synthesizeRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

// TextToSpeech renders an agent reply to audio bytes.
func (s *Salute) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("speech: empty text")
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:   text,
		Voice:  s.cfg.Voice,
		Format: "wav16",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/text:synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Credentials)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech: synthesize returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
