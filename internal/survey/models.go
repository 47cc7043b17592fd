package survey

import "time"

// Domain models for the phone questionnaire.
//
// Soft-delete invariant: Scenario, PhoneNumber and Question carry an IsActive
// flag that filters every lookup used by the call flow. Inactive rows stay in
// storage so historical calls and answers keep resolving.
//
// Ownership: a Scenario owns its Questions; PhoneNumber and Call reference a
// Scenario without owning it; a Call owns its Answers.

type Scenario struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// GreetingText is spoken first on every answered call.
	GreetingText string `json:"greeting_text" db:"greeting_text"`

	// DisclaimerText is an optional recording notice spoken after the greeting.
	DisclaimerText string `json:"disclaimer_text,omitempty" db:"disclaimer_text"`

	// GuidanceText is spoken before the first question. Empty means the
	// flow engine falls back to its default guidance prompt.
	GuidanceText string `json:"question_guidance_text,omitempty" db:"question_guidance_text"`

	IsActive bool `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PhoneNumber binds a dialed destination (E.164, the primary key) to a scenario.
type PhoneNumber struct {
	ToNumber   string `json:"to_number" db:"to_number"`
	ScenarioID int64  `json:"scenario_id" db:"scenario_id"`

	// Label is operator-facing only ("campaign A", etc).
	Label string `json:"label,omitempty" db:"label"`

	IsActive bool `json:"is_active" db:"is_active"`
}

type Question struct {
	ID         int64  `json:"id" db:"id"`
	ScenarioID int64  `json:"scenario_id" db:"scenario_id"`
	Text       string `json:"text" db:"text"`

	// SortOrder establishes the strict asking order inside a scenario.
	// Ties are broken by id ascending, which is stable.
	SortOrder int  `json:"sort_order" db:"sort_order"`
	IsActive  bool `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Call is created exactly once per inbound call, keyed by the provider call SID.
// The engine never deletes calls; removal is an admin-only concern.
type Call struct {
	CallSID    string `json:"call_sid" db:"call_sid"`
	FromNumber string `json:"from_number" db:"from_number"`
	ToNumber   string `json:"to_number" db:"to_number"`

	// ScenarioID is zero when no destination matched; the row is still
	// written for audit.
	ScenarioID int64 `json:"scenario_id,omitempty" db:"scenario_id"`

	Status CallStatus `json:"status" db:"status"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CallStatus string

const (
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusRejected   CallStatus = "rejected"
	CallStatusFailed     CallStatus = "failed"
)

// Answer records one captured response. Identity plus the recording reference
// are written by the capture-completion webhook; transcript fields are filled
// later by the transcription webhook, correlated through RecordingSID.
type Answer struct {
	ID      string `json:"id" db:"id"`
	CallSID string `json:"call_sid" db:"call_sid"`

	// QuestionID is zero when correlation was impossible.
	QuestionID int64 `json:"question_id,omitempty" db:"question_id"`

	AnswerType string `json:"answer_type" db:"answer_type"`

	RecordingSID string `json:"recording_sid,omitempty" db:"recording_sid"`
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	TranscriptText   string           `json:"transcript_text,omitempty" db:"transcript_text"`
	TranscriptStatus TranscriptStatus `json:"transcript_status" db:"transcript_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const AnswerTypeRecording = "recording"

// TranscriptStatus moves pending -> completed exactly once and never reverts.
type TranscriptStatus string

const (
	TranscriptStatusPending   TranscriptStatus = "pending"
	TranscriptStatusCompleted TranscriptStatus = "completed"
)
