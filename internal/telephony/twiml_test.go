package telephony

import (
	"strings"
	"testing"

	"github.com/Newrona-pi/Twilio-INPUT/internal/flow"
)

func TestRenderTwiMLSayAndRecord(t *testing.T) {
	in := flow.Instruction{
		State:    flow.StateAwaitingAnswer,
		Language: "ja-JP",
		Steps: []flow.Step{
			{Say: "こんにちは"},
			{PauseSeconds: 1.5},
			{Say: "質問その一"},
		},
		Record: &flow.RecordDirective{
			ResumePath:             "/webhooks/twilio/recording?question_id=1&scenario_id=1",
			FinishOnKey:            "#",
			Transcribe:             true,
			TranscribeCallbackPath: "/webhooks/twilio/transcription",
		},
	}

	out, err := RenderTwiML(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		`<Say language="ja-JP">こんにちは</Say>`,
		`<Pause length="1.5"></Pause>`,
		`finishOnKey="#"`,
		`timeout="0"`,
		`transcribe="true"`,
		`transcribeCallback="/webhooks/twilio/transcription"`,
		`method="POST"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in twiml:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<Hangup>") {
		t.Fatalf("unexpected hangup in twiml:\n%s", out)
	}
	// Query ampersands must be XML-escaped inside the action attribute.
	if !strings.Contains(out, "question_id=1&amp;scenario_id=1") {
		t.Fatalf("expected escaped resume address in twiml:\n%s", out)
	}
}

func TestRenderTwiMLHangup(t *testing.T) {
	in := flow.Instruction{
		State:  flow.StateComplete,
		Steps:  []flow.Step{{Say: "ありがとうございました"}},
		Hangup: true,
	}
	out, err := RenderTwiML(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "<Hangup>") {
		t.Fatalf("expected hangup verb:\n%s", out)
	}
}

func TestRenderTwiMLRejectsRecordPlusHangup(t *testing.T) {
	_, err := RenderTwiML(flow.Instruction{
		Record: &flow.RecordDirective{ResumePath: "/x"},
		Hangup: true,
	})
	if err == nil {
		t.Fatal("expected error for record+hangup")
	}
}

func TestRenderTwiMLRequiresResumePath(t *testing.T) {
	_, err := RenderTwiML(flow.Instruction{Record: &flow.RecordDirective{}})
	if err == nil {
		t.Fatal("expected error for empty resume path")
	}
}
