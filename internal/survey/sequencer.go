package survey

import "context"

// Sequencer determines the deterministic asking order inside a scenario.
//
// Both operations are pure reads. Ordering is (sort_order ASC, id ASC) over
// active questions only; a question deactivated mid-sequence is skipped, not
// asked. Next is keyed on the previous question's sort_order rather than its
// row, so the caller can resume even when the previous question has been
// deactivated between being asked and being answered.

type QuestionRepo interface {
	FirstActiveQuestion(ctx context.Context, scenarioID int64) (Question, bool, error)
	NextActiveQuestion(ctx context.Context, scenarioID int64, afterSortOrder int) (Question, bool, error)
}

type Sequencer struct {
	repo QuestionRepo
}

func NewSequencer(repo QuestionRepo) *Sequencer {
	return &Sequencer{repo: repo}
}

// First returns the active question with the smallest sort_order, or ok=false
// when the scenario has no active questions.
func (s *Sequencer) First(ctx context.Context, scenarioID int64) (Question, bool, error) {
	return s.repo.FirstActiveQuestion(ctx, scenarioID)
}

// Next returns the active question with the smallest sort_order strictly
// greater than afterSortOrder, or ok=false when the sequence is exhausted.
func (s *Sequencer) Next(ctx context.Context, scenarioID int64, afterSortOrder int) (Question, bool, error) {
	return s.repo.NextActiveQuestion(ctx, scenarioID, afterSortOrder)
}
