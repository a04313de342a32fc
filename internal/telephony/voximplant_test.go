package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestVoximplant(t *testing.T, handler http.HandlerFunc) *Voximplant {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	v, err := NewVoximplant(VoximplantConfig{
		AccountID:       "12345",
		APIKey:          "key",
		RuleID:          77,
		SMSSourceNumber: "+79990000000",
		BaseURL:         srv.URL,
	}, nil)
	if err != nil {
		t.Fatalf("new voximplant: %v", err)
	}
	return v
}

func TestStartCall_RegistersRecord(t *testing.T) {
	v := newTestVoximplant(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(strings.TrimRight(r.URL.Path, "/"), "StartScenarios") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostFormValue("rule_id") != "77" {
			t.Fatalf("expected rule_id 77, got %q", r.PostFormValue("rule_id"))
		}
		if !strings.Contains(r.PostFormValue("script_custom_data"), "exec-1") {
			t.Fatalf("scenario data missing executor id: %s", r.PostFormValue("script_custom_data"))
		}
		w.Write([]byte(`{"result":{"session_id":990011}}`))
	})

	rec, err := v.StartCall(context.Background(), StartCallRequest{
		ExecutorID:   "exec-1",
		ExecutorName: "Иван",
		PhoneNumber:  "+79991234567",
		CustomData:   map[string]any{"agent_name": "Анна"},
	})
	if err != nil {
		t.Fatalf("start call: %v", err)
	}
	if rec.CallID != "990011" {
		t.Fatalf("expected call id 990011, got %q", rec.CallID)
	}
	if rec.Status != StatusInitiated {
		t.Fatalf("expected initiated, got %s", rec.Status)
	}

	got, ok := v.CallStatus("990011")
	if !ok {
		t.Fatalf("call not tracked")
	}
	if got.PhoneNumber != "+79991234567" {
		t.Fatalf("unexpected phone %q", got.PhoneNumber)
	}
}

func TestStartCall_APIErrorIsHardFailure(t *testing.T) {
	v := newTestVoximplant(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"msg":"invalid rule"}}`))
	})

	if _, err := v.StartCall(context.Background(), StartCallRequest{PhoneNumber: "+79991234567"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := v.CallStatus("990011"); ok {
		t.Fatalf("no record should be tracked after a failed start")
	}
}

func TestHandleCallEvent_StatusNeverRegresses(t *testing.T) {
	v := newTestVoximplant(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"session_id":1}}`))
	})
	if _, err := v.StartCall(context.Background(), StartCallRequest{PhoneNumber: "+7999"}); err != nil {
		t.Fatalf("start call: %v", err)
	}

	v.HandleCallEvent("1", StatusConnected)
	v.HandleCallEvent("1", StatusRinging) // late event, must be ignored

	rec, _ := v.CallStatus("1")
	if rec.Status != StatusConnected {
		t.Fatalf("expected connected, got %s", rec.Status)
	}
}

func TestEndCall_SetsResultAndDuration(t *testing.T) {
	v := newTestVoximplant(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"session_id":2}}`))
	})
	if _, err := v.StartCall(context.Background(), StartCallRequest{PhoneNumber: "+7999"}); err != nil {
		t.Fatalf("start call: %v", err)
	}

	if !v.EndCall("2", "accepted") {
		t.Fatalf("end call returned false")
	}
	rec, _ := v.CallStatus("2")
	if rec.Status != StatusEnded {
		t.Fatalf("expected ended, got %s", rec.Status)
	}
	if rec.Result != "accepted" {
		t.Fatalf("expected result accepted, got %q", rec.Result)
	}
	if rec.EndedAt == nil {
		t.Fatalf("expected ended_at to be set")
	}

	if v.EndCall("missing", "declined") {
		t.Fatalf("expected false for unknown call")
	}
}

func TestSendSMS(t *testing.T) {
	var gotBody, gotDest string
	v := newTestVoximplant(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotDest = r.PostFormValue("destination")
		gotBody = r.PostFormValue("sms_body")
		w.Write([]byte(`{"result":1}`))
	})

	if err := v.SendSMS(context.Background(), "+79991234567", "Заказ #ORD-1 закреплён за вами."); err != nil {
		t.Fatalf("send sms: %v", err)
	}
	if gotDest != "+79991234567" {
		t.Fatalf("unexpected destination %q", gotDest)
	}
	if !strings.Contains(gotBody, "ORD-1") {
		t.Fatalf("sms body missing order id: %q", gotBody)
	}
}

func TestSendSMS_RejectedResult(t *testing.T) {
	v := newTestVoximplant(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":0}`))
	})
	if err := v.SendSMS(context.Background(), "+7999", "hi"); err == nil {
		t.Fatalf("expected error for rejected sms")
	}
}
