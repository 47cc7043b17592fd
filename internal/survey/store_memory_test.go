package survey

import (
	"context"
	"testing"
	"time"
)

func TestMarkTranscriptCompletedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	_ = st.CreateAnswer(ctx, Answer{
		ID:               "a1",
		CallSID:          "CA1",
		QuestionID:       1,
		AnswerType:       AnswerTypeRecording,
		RecordingSID:     "RE1",
		TranscriptStatus: TranscriptStatusPending,
		CreatedAt:        time.Now().UTC(),
	})

	updated, err := st.MarkTranscriptCompleted(ctx, "RE1", "こんにちは")
	if err != nil || !updated {
		t.Fatalf("expected first update to apply, updated=%v err=%v", updated, err)
	}

	a, ok, _ := st.FindAnswerByRecordingSID(ctx, "RE1")
	if !ok || a.TranscriptStatus != TranscriptStatusCompleted || a.TranscriptText != "こんにちは" {
		t.Fatalf("unexpected answer state: %+v", a)
	}

	// Second delivery with the same recording id is a no-op.
	updated, err = st.MarkTranscriptCompleted(ctx, "RE1", "different text")
	if err != nil || updated {
		t.Fatalf("expected second update to be a no-op, updated=%v err=%v", updated, err)
	}
	a, _, _ = st.FindAnswerByRecordingSID(ctx, "RE1")
	if a.TranscriptText != "こんにちは" {
		t.Fatalf("completed transcript must never revert, got %q", a.TranscriptText)
	}
}

func TestFindAnswerByRecordingSIDMiss(t *testing.T) {
	st := NewMemoryStore()
	if _, ok, err := st.FindAnswerByRecordingSID(context.Background(), "REmissing"); ok || err != nil {
		t.Fatalf("expected silent miss, ok=%v err=%v", ok, err)
	}
}
