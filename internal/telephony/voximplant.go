package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultVoximplantBaseURL = "https://api.voximplant.com/platform_api"

// VoximplantConfig configures the Voximplant management API adapter.
type VoximplantConfig struct {
	AccountID string
	APIKey    string

	// RuleID selects the scenario that drives the outbound call.
	RuleID int

	// SMSSourceNumber is the sender number for confirmation SMS.
	SMSSourceNumber string

	// BaseURL overrides the API endpoint (tests).
	BaseURL string

	HTTPTimeout time.Duration
}

// Voximplant starts scenario calls and sends SMS through the Voximplant
// management API, and tracks call records in memory. It is safe for
// concurrent use.
type Voximplant struct {
	cfg     VoximplantConfig
	baseURL string
	client  *http.Client
	log     *slog.Logger

	mu    sync.RWMutex
	calls map[string]*CallRecord
}

func NewVoximplant(cfg VoximplantConfig, log *slog.Logger) (*Voximplant, error) {
	if cfg.AccountID == "" || cfg.APIKey == "" {
		return nil, errors.New("telephony: voximplant account_id and api_key are required")
	}
	if log == nil {
		log = slog.Default()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultVoximplantBaseURL
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Voximplant{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
		calls:   make(map[string]*CallRecord),
	}, nil
}

func (v *Voximplant) Name() string { return "voximplant" }

type startScenariosResponse struct {
	Result struct {
		SessionID json.Number `json:"session_id"`
	} `json:"result"`
	Error struct {
		Msg string `json:"msg"`
	} `json:"error"`
}

// StartCall launches the call scenario for one executor. The returned record
// is registered under the platform session id, or a generated id when the
// platform does not hand one back.
func (v *Voximplant) StartCall(ctx context.Context, req StartCallRequest) (CallRecord, error) {
	if v.cfg.RuleID == 0 {
		return CallRecord{}, errors.New("telephony: voximplant rule_id not configured")
	}
	if req.PhoneNumber == "" {
		return CallRecord{}, errors.New("telephony: phone number is required")
	}

	scenarioData := map[string]any{
		"executor_id":   req.ExecutorID,
		"executor_name": req.ExecutorName,
		"phone_number":  req.PhoneNumber,
	}
	for k, val := range req.CustomData {
		scenarioData[k] = val
	}
	customData, err := json.Marshal(scenarioData)
	if err != nil {
		return CallRecord{}, fmt.Errorf("telephony: marshal scenario data: %w", err)
	}

	form := url.Values{}
	form.Set("rule_id", strconv.Itoa(v.cfg.RuleID))
	form.Set("script_custom_data", string(customData))

	var resp startScenariosResponse
	if err := v.call(ctx, "StartScenarios", form, &resp); err != nil {
		return CallRecord{}, fmt.Errorf("telephony: start scenario: %w", err)
	}
	if resp.Error.Msg != "" {
		return CallRecord{}, fmt.Errorf("telephony: start scenario: %s", resp.Error.Msg)
	}

	callID := resp.Result.SessionID.String()
	if callID == "" || callID == "0" {
		callID = "call_" + uuid.NewString()
	}

	rec := CallRecord{
		CallID:       callID,
		PhoneNumber:  req.PhoneNumber,
		ExecutorID:   req.ExecutorID,
		ExecutorName: req.ExecutorName,
		Status:       StatusInitiated,
		StartedAt:    time.Now().UTC(),
	}

	v.mu.Lock()
	v.calls[callID] = &rec
	v.mu.Unlock()

	v.log.Info("call initiated", "call_id", callID, "phone", req.PhoneNumber)
	return rec, nil
}

func (v *Voximplant) CallStatus(callID string) (CallRecord, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rec, ok := v.calls[callID]
	if !ok {
		return CallRecord{}, false
	}
	return *rec, true
}

func (v *Voximplant) HandleCallEvent(callID string, status CallStatus) {
	if _, ok := statusRank[status]; !ok {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.calls[callID]
	if !ok {
		return
	}
	if statusRank[status] <= statusRank[rec.Status] {
		return
	}
	rec.Status = status
}

func (v *Voximplant) EndCall(callID string, result string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.calls[callID]
	if !ok {
		return false
	}
	if rec.Status == StatusEnded {
		return true
	}

	now := time.Now().UTC()
	rec.Status = StatusEnded
	rec.EndedAt = &now
	rec.Result = result
	if !rec.StartedAt.IsZero() {
		rec.DurationSeconds = int(now.Sub(rec.StartedAt).Seconds())
	}

	v.log.Info("call ended", "call_id", callID, "result", result, "duration_s", rec.DurationSeconds)
	return true
}

type sendSMSResponse struct {
	Result int `json:"result"`
	Error  struct {
		Msg string `json:"msg"`
	} `json:"error"`
}

func (v *Voximplant) SendSMS(ctx context.Context, phoneNumber, message string) error {
	if v.cfg.SMSSourceNumber == "" {
		return errors.New("telephony: sms source number not configured")
	}

	form := url.Values{}
	form.Set("source", v.cfg.SMSSourceNumber)
	form.Set("destination", phoneNumber)
	form.Set("sms_body", message)

	var resp sendSMSResponse
	if err := v.call(ctx, "SendSmsMessage", form, &resp); err != nil {
		return fmt.Errorf("telephony: send sms: %w", err)
	}
	if resp.Error.Msg != "" {
		return fmt.Errorf("telephony: send sms: %s", resp.Error.Msg)
	}
	if resp.Result <= 0 {
		return errors.New("telephony: send sms rejected")
	}

	v.log.Info("sms sent", "phone", phoneNumber)
	return nil
}

// call issues one management API request with account credentials attached.
func (v *Voximplant) call(ctx context.Context, method string, form url.Values, out any) error {
	form.Set("account_id", v.cfg.AccountID)
	form.Set("api_key", v.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.baseURL+"/"+method+"/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return err
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, httpResp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
