package telephony

import (
	"errors"
	"net/http"
	"strconv"
)

// Form parsers for the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default, with our own
// resume context carried as query parameters on the callback URL.
// Ref: https://www.twilio.com/docs/voice/twiml
//
// Keep it minimal and provider-adapter-only. Business logic (progression
// decisions) is not made here.

type InboundCallForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	CallStatus string
}

func ParseInboundCall(r *http.Request) (InboundCallForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundCallForm{}, err
	}
	f := InboundCallForm{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		CallStatus: r.PostFormValue("CallStatus"),
	}
	if f.CallSid == "" {
		return InboundCallForm{}, errors.New("telephony: CallSid is required")
	}
	if f.To == "" {
		return InboundCallForm{}, errors.New("telephony: To is required")
	}
	return f, nil
}

// RecordingForm is the capture-completion payload. ScenarioID and QuestionID
// come from the resume address we emitted on the previous turn; they are
// untrusted and re-validated by the engine.
type RecordingForm struct {
	CallSid      string
	RecordingUrl string
	RecordingSid string

	ScenarioID int64
	QuestionID int64
}

func ParseRecordingCallback(r *http.Request) (RecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingForm{}, err
	}
	f := RecordingForm{
		CallSid:      r.PostFormValue("CallSid"),
		RecordingUrl: r.PostFormValue("RecordingUrl"),
		RecordingSid: r.PostFormValue("RecordingSid"),
	}
	if f.CallSid == "" {
		return RecordingForm{}, errors.New("telephony: CallSid is required")
	}

	var err error
	f.ScenarioID, err = parseID(r.URL.Query().Get("scenario_id"))
	if err != nil {
		return RecordingForm{}, errors.New("telephony: scenario_id is invalid")
	}
	f.QuestionID, err = parseID(r.URL.Query().Get("question_id"))
	if err != nil {
		return RecordingForm{}, errors.New("telephony: question_id is invalid")
	}
	return f, nil
}

type TranscriptionForm struct {
	RecordingSid string

	// TranscriptionText is absent when transcription failed upstream.
	TranscriptionText string
}

func ParseTranscriptionCallback(r *http.Request) (TranscriptionForm, error) {
	if err := r.ParseForm(); err != nil {
		return TranscriptionForm{}, err
	}
	f := TranscriptionForm{
		RecordingSid:      r.PostFormValue("RecordingSid"),
		TranscriptionText: r.PostFormValue("TranscriptionText"),
	}
	if f.RecordingSid == "" {
		return TranscriptionForm{}, errors.New("telephony: RecordingSid is required")
	}
	return f, nil
}

func parseID(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("id must be positive")
	}
	return n, nil
}
