package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/Newrona-pi/Twilio-INPUT/internal/survey"
)

type fixture struct {
	store  *survey.MemoryStore
	engine *Engine

	scenario survey.Scenario
	q1, q2   survey.Question
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := survey.NewMemoryStore()

	sc, err := st.CreateScenario(ctx, survey.Scenario{
		Name:           "follow-up",
		GreetingText:   "お電話ありがとうございます。",
		DisclaimerText: "この通話は録音されます。",
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("seed scenario: %v", err)
	}
	q1, _ := st.CreateQuestion(ctx, survey.Question{ScenarioID: sc.ID, Text: "質問その一", SortOrder: 1, IsActive: true})
	q2, _ := st.CreateQuestion(ctx, survey.Question{ScenarioID: sc.ID, Text: "質問その二", SortOrder: 2, IsActive: true})
	_ = st.UpsertPhoneNumber(ctx, survey.PhoneNumber{ToNumber: "+81312345678", ScenarioID: sc.ID, IsActive: true})

	eng, err := NewEngine(st, survey.NewDirectory(st), survey.NewSequencer(st), Options{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &fixture{store: st, engine: eng, scenario: sc, q1: q1, q2: q2}
}

func sayTexts(in Instruction) []string {
	var out []string
	for _, s := range in.Steps {
		if s.Say != "" {
			out = append(out, s.Say)
		}
	}
	return out
}

func TestInboundCallAsksFirstQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA1", From: "+8190", To: "+81312345678"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateAwaitingAnswer {
		t.Fatalf("expected awaiting_answer, got %s", in.State)
	}

	texts := sayTexts(in)
	if len(texts) != 4 {
		t.Fatalf("expected greeting+disclaimer+guidance+question, got %v", texts)
	}
	if texts[0] != "お電話ありがとうございます。" || texts[3] != "質問その一" {
		t.Fatalf("unexpected prompt order: %v", texts)
	}
	if texts[2] != DefaultPrompts().Guidance {
		t.Fatalf("expected default guidance fallback, got %q", texts[2])
	}

	if in.Record == nil {
		t.Fatal("expected a record directive")
	}
	if !strings.Contains(in.Record.ResumePath, "question_id=1") || !strings.Contains(in.Record.ResumePath, "scenario_id=1") {
		t.Fatalf("resume path must embed position, got %q", in.Record.ResumePath)
	}
	if in.Record.FinishOnKey != "#" || !in.Record.Transcribe {
		t.Fatalf("unexpected record directive: %+v", in.Record)
	}

	call, ok, _ := f.store.GetCall(ctx, "CA1")
	if !ok || call.ScenarioID != f.scenario.ID || call.Status != survey.CallStatusInProgress {
		t.Fatalf("unexpected call row: ok=%v call=%+v", ok, call)
	}
}

func TestInboundCallUnknownNumberRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA2", From: "+8190", To: "+15550000000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateRejected {
		t.Fatalf("expected rejected, got %s", in.State)
	}
	if got := sayTexts(in); len(got) != 1 || got[0] != DefaultPrompts().Rejection {
		t.Fatalf("expected rejection prompt, got %v", got)
	}

	// The call row is still created, with no scenario reference.
	call, ok, _ := f.store.GetCall(ctx, "CA2")
	if !ok || call.ScenarioID != 0 || call.Status != survey.CallStatusRejected {
		t.Fatalf("expected audited rejected call, got ok=%v call=%+v", ok, call)
	}
}

func TestInboundCallInactiveScenarioRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc := f.scenario
	sc.IsActive = false
	if err := f.store.UpdateScenario(ctx, sc); err != nil {
		t.Fatalf("deactivate scenario: %v", err)
	}

	in, err := f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA3", To: "+81312345678"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateRejected {
		t.Fatalf("inactive scenario must never answer a live call, got %s", in.State)
	}
}

func TestInboundCallNoActiveQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.store.DeleteQuestion(ctx, f.q1.ID)
	_ = f.store.DeleteQuestion(ctx, f.q2.ID)

	in, err := f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA4", To: "+81312345678"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateComplete || in.Record != nil {
		t.Fatalf("expected terminal notice without recording, got %+v", in)
	}
	texts := sayTexts(in)
	if texts[len(texts)-1] != DefaultPrompts().NoQuestions {
		t.Fatalf("expected no-questions notice, got %v", texts)
	}
}

func TestRecordingDoneAdvancesToNextQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA5", To: "+81312345678"})

	in, err := f.engine.HandleRecordingDone(ctx, RecordingDone{
		CallSID:      "CA5",
		ScenarioID:   f.scenario.ID,
		QuestionID:   f.q1.ID,
		RecordingSID: "RE1",
		RecordingURL: "https://api.twilio.example/RE1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateAwaitingAnswer {
		t.Fatalf("expected awaiting_answer, got %s", in.State)
	}
	if got := sayTexts(in); len(got) != 1 || got[0] != "質問その二" {
		t.Fatalf("expected question 2, got %v", got)
	}
	if in.Record == nil || !strings.Contains(in.Record.ResumePath, "question_id=2") {
		t.Fatalf("resume path must embed question 2, got %+v", in.Record)
	}

	answers, _ := f.store.ListAnswersByCall(ctx, "CA5")
	if len(answers) != 1 || answers[0].QuestionID != f.q1.ID || answers[0].TranscriptStatus != survey.TranscriptStatusPending {
		t.Fatalf("unexpected answers: %+v", answers)
	}
}

func TestRecordingDoneLastQuestionCompletesCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA6", To: "+81312345678"})

	in, err := f.engine.HandleRecordingDone(ctx, RecordingDone{
		CallSID: "CA6", ScenarioID: f.scenario.ID, QuestionID: f.q2.ID, RecordingSID: "RE2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateComplete || !in.Hangup || in.Record != nil {
		t.Fatalf("expected explicit hangup, got %+v", in)
	}
	if got := sayTexts(in); got[0] != DefaultPrompts().Closing {
		t.Fatalf("expected closing prompt, got %v", got)
	}

	call, _, _ := f.store.GetCall(ctx, "CA6")
	if call.Status != survey.CallStatusCompleted {
		t.Fatalf("expected completed call, got %s", call.Status)
	}
}

func TestRecordingDoneSkipsQuestionDeactivatedMidCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA7", To: "+81312345678"})

	// q1 was asked, then deactivated before the answer arrived. Its row still
	// exists, so its sort_order keeps the sequence computable.
	q1 := f.q1
	q1.IsActive = false
	_ = f.store.UpdateQuestion(ctx, q1)

	in, err := f.engine.HandleRecordingDone(ctx, RecordingDone{
		CallSID: "CA7", ScenarioID: f.scenario.ID, QuestionID: f.q1.ID, RecordingSID: "RE3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateAwaitingAnswer {
		t.Fatalf("expected progression to question 2, got %+v", in)
	}
}

func TestRecordingDoneUnresolvableQuestionIsFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA8", To: "+81312345678"})

	in, err := f.engine.HandleRecordingDone(ctx, RecordingDone{
		CallSID: "CA8", ScenarioID: f.scenario.ID, QuestionID: 999, RecordingSID: "RE4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateFailed || in.Record != nil {
		t.Fatalf("expected fatal sequencing error, got %+v", in)
	}
	if got := sayTexts(in); got[0] != DefaultPrompts().SequenceError {
		t.Fatalf("expected apology, got %v", got)
	}

	call, _, _ := f.store.GetCall(ctx, "CA8")
	if call.Status != survey.CallStatusFailed {
		t.Fatalf("expected failed call status, got %s", call.Status)
	}
}

func TestRecordingDoneForeignScenarioIsFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA9", To: "+81312345678"})

	in, err := f.engine.HandleRecordingDone(ctx, RecordingDone{
		CallSID: "CA9", ScenarioID: f.scenario.ID + 7, QuestionID: f.q1.ID, RecordingSID: "RE5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State != StateFailed {
		t.Fatalf("forged resume address must be fatal, got %s", in.State)
	}
}

func TestDuplicateRecordingDeliverySkipsInsertButAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA10", To: "+81312345678"})

	ev := RecordingDone{CallSID: "CA10", ScenarioID: f.scenario.ID, QuestionID: f.q1.ID, RecordingSID: "RE6"}
	if _, err := f.engine.HandleRecordingDone(ctx, ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	ev.Duplicate = true
	in, err := f.engine.HandleRecordingDone(ctx, ev)
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if in.Record == nil || !strings.Contains(in.Record.ResumePath, "question_id=2") {
		t.Fatalf("duplicate must still return the next instruction, got %+v", in)
	}

	answers, _ := f.store.ListAnswersByCall(ctx, "CA10")
	if len(answers) != 1 {
		t.Fatalf("duplicate delivery must not insert a second answer, got %d", len(answers))
	}
}

func TestTranscriptReadyEnrichesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.engine.HandleInboundCall(ctx, InboundCall{CallSID: "CA11", To: "+81312345678"})
	_, _ = f.engine.HandleRecordingDone(ctx, RecordingDone{
		CallSID: "CA11", ScenarioID: f.scenario.ID, QuestionID: f.q1.ID, RecordingSID: "RE7",
	})

	updated, err := f.engine.HandleTranscriptReady(ctx, TranscriptReady{RecordingSID: "RE7", Text: "はい"})
	if err != nil || !updated {
		t.Fatalf("expected transcript applied, updated=%v err=%v", updated, err)
	}

	updated, err = f.engine.HandleTranscriptReady(ctx, TranscriptReady{RecordingSID: "RE7", Text: "いいえ"})
	if err != nil || updated {
		t.Fatalf("second transcript event must be a no-op, updated=%v err=%v", updated, err)
	}

	a, _, _ := f.store.FindAnswerByRecordingSID(ctx, "RE7")
	if a.TranscriptText != "はい" || a.TranscriptStatus != survey.TranscriptStatusCompleted {
		t.Fatalf("unexpected answer: %+v", a)
	}
}

func TestTranscriptReadyUnknownRecordingIsSilentNoop(t *testing.T) {
	f := newFixture(t)
	updated, err := f.engine.HandleTranscriptReady(context.Background(), TranscriptReady{RecordingSID: "REmissing", Text: "x"})
	if err != nil || updated {
		t.Fatalf("expected silent no-op, updated=%v err=%v", updated, err)
	}
}

func TestTransitionTable(t *testing.T) {
	if !Allowed(StateInitiated, EventInboundCall, StateRejected) {
		t.Fatal("initiated + inbound_call must allow rejected")
	}
	if !Allowed(StateAwaitingAnswer, EventRecordingDone, StateComplete) {
		t.Fatal("awaiting_answer + recording_done must allow complete")
	}
	if Allowed(StateComplete, EventRecordingDone, StateComplete) {
		t.Fatal("recording_done after completion is illegal")
	}
	if Allowed(StateRejected, EventInboundCall, StateAwaitingAnswer) {
		t.Fatal("rejected is absorbing")
	}
}
