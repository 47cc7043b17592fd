package telephony

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseInboundCall(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "+819012345678")
	form.Set("To", "+81312345678")

	req := httptest.NewRequest("POST", VoicePath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f, err := ParseInboundCall(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.CallSid != "CA123" || f.To != "+81312345678" {
		t.Fatalf("unexpected form: %+v", f)
	}
}

func TestParseInboundCallRequiresCallSid(t *testing.T) {
	req := httptest.NewRequest("POST", VoicePath, strings.NewReader("To=%2B81312345678"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if _, err := ParseInboundCall(req); err == nil {
		t.Fatal("expected error for missing CallSid")
	}
}

func TestParseRecordingCallback(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("RecordingUrl", "https://api.twilio.example/RE1")
	form.Set("RecordingSid", "RE1")

	req := httptest.NewRequest("POST", RecordingPath+"?scenario_id=4&question_id=9", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f, err := ParseRecordingCallback(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ScenarioID != 4 || f.QuestionID != 9 || f.RecordingSid != "RE1" {
		t.Fatalf("unexpected form: %+v", f)
	}
}

func TestParseRecordingCallbackRejectsBadResumeAddress(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")

	for _, query := range []string{"", "?scenario_id=4", "?scenario_id=4&question_id=abc", "?scenario_id=-1&question_id=9"} {
		req := httptest.NewRequest("POST", RecordingPath+query, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if _, err := ParseRecordingCallback(req); err == nil {
			t.Fatalf("expected error for query %q", query)
		}
	}
}

func TestParseTranscriptionCallbackAllowsMissingText(t *testing.T) {
	req := httptest.NewRequest("POST", TranscriptionPath, strings.NewReader("RecordingSid=RE1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f, err := ParseTranscriptionCallback(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.RecordingSid != "RE1" || f.TranscriptionText != "" {
		t.Fatalf("unexpected form: %+v", f)
	}
}
