package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Newrona-pi/Twilio-INPUT/internal/survey"
	"github.com/google/uuid"
)

// Engine is the call progression engine. It holds no in-memory call state:
// every webhook delivery is an independent request, and the only context that
// survives between turns is what the previous Instruction embedded into its
// resume address plus what storage remembers. Concurrent calls are isolated
// by call SID; no lock spans a call's lifetime.

// State is the conceptual call state reconstructed from an inbound event.
// It is not persisted as an enum; calls.status captures the durable outcome.
type State string

const (
	StateInitiated      State = "initiated"
	StateAwaitingAnswer State = "awaiting_answer"
	StateComplete       State = "complete"
	StateRejected       State = "rejected"
	StateFailed         State = "failed"
)

type EventType string

const (
	EventInboundCall     EventType = "inbound_call"
	EventRecordingDone   EventType = "recording_done"
	EventTranscriptReady EventType = "transcript_ready"
)

// transitions is the explicit state/event table. Rows name the state an
// event is handled in and every state the call may land in afterwards;
// anything outside this table is an illegal transition and the engine
// refuses to produce an instruction for it.
var transitions = map[State]map[EventType][]State{
	StateInitiated: {
		EventInboundCall: {StateAwaitingAnswer, StateComplete, StateRejected},
	},
	StateAwaitingAnswer: {
		EventRecordingDone: {StateAwaitingAnswer, StateComplete, StateFailed},
		// Transcription is uncorrelated enrichment; it never moves the call.
		EventTranscriptReady: {StateAwaitingAnswer},
	},
	StateComplete: {
		EventTranscriptReady: {StateComplete},
	},
}

// Allowed reports whether the table permits landing in `to` when handling
// `ev` from `from`.
func Allowed(from State, ev EventType, to State) bool {
	outs, ok := transitions[from][ev]
	if !ok {
		return false
	}
	for _, s := range outs {
		if s == to {
			return true
		}
	}
	return false
}

// Store is the durable state the engine reads and writes. Each handler
// performs at most one insert or one field update; duplicate deliveries can
// therefore produce duplicate Answer rows unless the caller flags them
// (see RecordingDone.Duplicate).
type Store interface {
	GetScenario(ctx context.Context, id int64) (survey.Scenario, bool, error)
	GetQuestion(ctx context.Context, id int64) (survey.Question, bool, error)
	CreateCall(ctx context.Context, c survey.Call) error
	UpdateCallStatus(ctx context.Context, callSID string, status survey.CallStatus) error
	CreateAnswer(ctx context.Context, a survey.Answer) error
	MarkTranscriptCompleted(ctx context.Context, recordingSID, text string) (bool, error)
}

// Auditor records call-level audit events. Best-effort only; the engine never
// fails a call turn over an audit error.
type Auditor interface {
	LogCallRejected(ctx context.Context, callSID, dialed string) error
}

type CallbackPaths struct {
	// Recording receives capture-completion events; the engine appends
	// scenario_id and question_id query parameters to build resume addresses.
	Recording string
	// Transcription receives transcription-ready events.
	Transcription string
}

func (p CallbackPaths) withDefaults() CallbackPaths {
	if p.Recording == "" {
		p.Recording = "/webhooks/twilio/recording"
	}
	if p.Transcription == "" {
		p.Transcription = "/webhooks/twilio/transcription"
	}
	return p
}

type Engine struct {
	store     Store
	directory *survey.Directory
	sequencer *survey.Sequencer

	audit Auditor

	prompts  Prompts
	language string
	paths    CallbackPaths

	clock func() time.Time
}

type Options struct {
	Prompts  Prompts
	Language string
	Paths    CallbackPaths
	Audit    Auditor
}

func NewEngine(store Store, directory *survey.Directory, sequencer *survey.Sequencer, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("flow: store is required")
	}
	if directory == nil {
		return nil, errors.New("flow: directory is required")
	}
	if sequencer == nil {
		return nil, errors.New("flow: sequencer is required")
	}
	lang := opts.Language
	if lang == "" {
		lang = "ja-JP"
	}
	return &Engine{
		store:     store,
		directory: directory,
		sequencer: sequencer,
		audit:     opts.Audit,
		prompts:   opts.Prompts.withDefaults(),
		language:  lang,
		paths:     opts.Paths.withDefaults(),
		clock:     time.Now,
	}, nil
}

/* ===================== EVENTS ===================== */

// InboundCall is the first event of a call.
type InboundCall struct {
	CallSID string
	From    string
	To      string
}

// RecordingDone is the capture-completion event. ScenarioID and QuestionID
// come from the resume address the previous instruction embedded; both are
// untrusted until re-validated against storage.
type RecordingDone struct {
	CallSID      string
	ScenarioID   int64
	QuestionID   int64
	RecordingURL string
	RecordingSID string

	// Duplicate marks a delivery the idempotency guard has already seen.
	// The answer insert is skipped but the next instruction is still computed,
	// so a provider retry never strands the caller.
	Duplicate bool
}

// TranscriptReady delivers speech-to-text output, correlated only by the
// recording SID. Empty text means transcription failed upstream.
type TranscriptReady struct {
	RecordingSID string
	Text         string
}

/* ===================== TRANSITIONS ===================== */

// HandleInboundCall resolves the dialed number, persists the call row, and
// produces the opening instruction.
func (e *Engine) HandleInboundCall(ctx context.Context, ev InboundCall) (Instruction, error) {
	if ev.CallSID == "" {
		return Instruction{}, errors.New("flow: call sid is required")
	}

	pn, matched, err := e.directory.Resolve(ctx, ev.To)
	if err != nil {
		return Instruction{}, fmt.Errorf("flow: resolve dialed number: %w", err)
	}

	var scenario survey.Scenario
	scenarioOK := false
	if matched {
		sc, ok, err := e.store.GetScenario(ctx, pn.ScenarioID)
		if err != nil {
			return Instruction{}, fmt.Errorf("flow: load scenario: %w", err)
		}
		scenario = sc
		scenarioOK = ok && sc.IsActive
	}

	now := e.clock().UTC()
	call := survey.Call{
		CallSID:    ev.CallSID,
		FromNumber: ev.From,
		ToNumber:   ev.To,
		Status:     survey.CallStatusInProgress,
		StartedAt:  now,
		CreatedAt:  now,
	}
	if matched {
		call.ScenarioID = pn.ScenarioID
	}
	if !scenarioOK {
		// The call row is still written for audit, with the rejected status.
		call.Status = survey.CallStatusRejected
	}
	if err := e.store.CreateCall(ctx, call); err != nil {
		return Instruction{}, fmt.Errorf("flow: create call: %w", err)
	}

	if !scenarioOK {
		if e.audit != nil {
			_ = e.audit.LogCallRejected(ctx, ev.CallSID, ev.To)
		}
		return e.finish(StateInitiated, EventInboundCall, Instruction{
			State: StateRejected,
			Steps: []Step{say(e.prompts.Rejection)},
		})
	}

	steps := []Step{say(scenario.GreetingText)}
	if scenario.DisclaimerText != "" {
		steps = append(steps, say(scenario.DisclaimerText))
	}
	guidance := scenario.GuidanceText
	if guidance == "" {
		guidance = e.prompts.Guidance
	}
	steps = append(steps, say(guidance), pause(1.5))

	first, ok, err := e.sequencer.First(ctx, scenario.ID)
	if err != nil {
		return Instruction{}, fmt.Errorf("flow: first question: %w", err)
	}
	if !ok {
		if err := e.store.UpdateCallStatus(ctx, ev.CallSID, survey.CallStatusCompleted); err != nil {
			return Instruction{}, fmt.Errorf("flow: complete call: %w", err)
		}
		steps = append(steps, say(e.prompts.NoQuestions))
		return e.finish(StateInitiated, EventInboundCall, Instruction{
			State: StateComplete,
			Steps: steps,
		})
	}

	steps = append(steps, say(first.Text))
	return e.finish(StateInitiated, EventInboundCall, Instruction{
		State:  StateAwaitingAnswer,
		Steps:  steps,
		Record: e.recordDirective(scenario.ID, first.ID),
	})
}

// HandleRecordingDone persists the captured answer and either asks the next
// question or closes the call.
func (e *Engine) HandleRecordingDone(ctx context.Context, ev RecordingDone) (Instruction, error) {
	if ev.CallSID == "" {
		return Instruction{}, errors.New("flow: call sid is required")
	}

	if !ev.Duplicate {
		answer := survey.Answer{
			ID:               uuid.NewString(),
			CallSID:          ev.CallSID,
			QuestionID:       ev.QuestionID,
			AnswerType:       survey.AnswerTypeRecording,
			RecordingSID:     ev.RecordingSID,
			RecordingURL:     ev.RecordingURL,
			TranscriptStatus: survey.TranscriptStatusPending,
			CreatedAt:        e.clock().UTC(),
		}
		if err := e.store.CreateAnswer(ctx, answer); err != nil {
			return Instruction{}, fmt.Errorf("flow: create answer: %w", err)
		}
	}

	// The resume address is untrusted: the question must still exist and
	// belong to the stated scenario. Its last-known sort_order drives the
	// next lookup, so a question deactivated mid-call is skipped, not fatal.
	current, ok, err := e.store.GetQuestion(ctx, ev.QuestionID)
	if err != nil {
		return Instruction{}, fmt.Errorf("flow: load question: %w", err)
	}
	if !ok || current.ScenarioID != ev.ScenarioID {
		// Sequencing context is unrecoverable; apologize and abandon.
		_ = e.store.UpdateCallStatus(ctx, ev.CallSID, survey.CallStatusFailed)
		return e.finish(StateAwaitingAnswer, EventRecordingDone, Instruction{
			State: StateFailed,
			Steps: []Step{say(e.prompts.SequenceError)},
		})
	}

	next, ok, err := e.sequencer.Next(ctx, ev.ScenarioID, current.SortOrder)
	if err != nil {
		return Instruction{}, fmt.Errorf("flow: next question: %w", err)
	}
	if !ok {
		if err := e.store.UpdateCallStatus(ctx, ev.CallSID, survey.CallStatusCompleted); err != nil {
			return Instruction{}, fmt.Errorf("flow: complete call: %w", err)
		}
		return e.finish(StateAwaitingAnswer, EventRecordingDone, Instruction{
			State:  StateComplete,
			Steps:  []Step{say(e.prompts.Closing)},
			Hangup: true,
		})
	}

	return e.finish(StateAwaitingAnswer, EventRecordingDone, Instruction{
		State:  StateAwaitingAnswer,
		Steps:  []Step{say(next.Text)},
		Record: e.recordDirective(ev.ScenarioID, next.ID),
	})
}

// HandleTranscriptReady enriches the matching answer if one exists. A miss is
// a silent no-op: the recording may have failed to save, or the event raced
// ahead of the capture-completion write. Transcription is best-effort and may
// also never arrive.
func (e *Engine) HandleTranscriptReady(ctx context.Context, ev TranscriptReady) (bool, error) {
	if ev.RecordingSID == "" {
		return false, nil
	}
	updated, err := e.store.MarkTranscriptCompleted(ctx, ev.RecordingSID, ev.Text)
	if err != nil {
		return false, fmt.Errorf("flow: mark transcript: %w", err)
	}
	return updated, nil
}

/* ===================== helpers ===================== */

func (e *Engine) recordDirective(scenarioID, questionID int64) *RecordDirective {
	v := url.Values{}
	v.Set("scenario_id", strconv.FormatInt(scenarioID, 10))
	v.Set("question_id", strconv.FormatInt(questionID, 10))
	return &RecordDirective{
		ResumePath:             e.paths.Recording + "?" + v.Encode(),
		FinishOnKey:            "#",
		TimeoutSeconds:         0,
		Transcribe:             true,
		TranscribeCallbackPath: e.paths.Transcription,
	}
}

func (e *Engine) finish(from State, ev EventType, in Instruction) (Instruction, error) {
	if !Allowed(from, ev, in.State) {
		return Instruction{}, fmt.Errorf("flow: illegal transition %s --%s--> %s", from, ev, in.State)
	}
	in.Language = e.language
	return in, nil
}
