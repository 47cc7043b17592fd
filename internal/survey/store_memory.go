package survey

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory store useful for tests and early development.
// It mirrors the PostgresStore contracts, including lookup filtering on
// is_active and the pending-only transcript update.
//
// NOTE: This is not intended for production.
type MemoryStore struct {
	mu sync.Mutex

	scenarios map[int64]Scenario
	numbers   map[string]PhoneNumber
	questions map[int64]Question
	calls     map[string]Call
	answers   []Answer

	nextScenarioID int64
	nextQuestionID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scenarios: map[int64]Scenario{},
		numbers:   map[string]PhoneNumber{},
		questions: map[int64]Question{},
		calls:     map[string]Call{},
	}
}

/* ===================== PHONE NUMBERS ===================== */

func (m *MemoryStore) FindPhoneNumber(ctx context.Context, toNumber string) (PhoneNumber, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pn, ok := m.numbers[toNumber]
	if !ok || !pn.IsActive {
		return PhoneNumber{}, false, nil
	}
	return pn, true, nil
}

func (m *MemoryStore) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PhoneNumber
	for _, pn := range m.numbers {
		if pn.IsActive {
			out = append(out, pn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToNumber < out[j].ToNumber })
	return out, nil
}

func (m *MemoryStore) ListAllPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PhoneNumber
	for _, pn := range m.numbers {
		out = append(out, pn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToNumber < out[j].ToNumber })
	return out, nil
}

func (m *MemoryStore) UpsertPhoneNumber(ctx context.Context, pn PhoneNumber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numbers[pn.ToNumber] = pn
	return nil
}

/* ===================== SCENARIOS ===================== */

func (m *MemoryStore) GetScenario(ctx context.Context, id int64) (Scenario, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scenarios[id]
	return sc, ok, nil
}

func (m *MemoryStore) CreateScenario(ctx context.Context, sc Scenario) (Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextScenarioID++
	sc.ID = m.nextScenarioID
	now := time.Now().UTC()
	sc.CreatedAt = now
	sc.UpdatedAt = now
	m.scenarios[sc.ID] = sc
	return sc, nil
}

func (m *MemoryStore) UpdateScenario(ctx context.Context, sc Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.scenarios[sc.ID]
	if !ok {
		return ErrNotFound
	}
	sc.CreatedAt = old.CreatedAt
	sc.UpdatedAt = time.Now().UTC()
	m.scenarios[sc.ID] = sc
	return nil
}

func (m *MemoryStore) DeleteScenarioCascade(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[id]; !ok {
		return ErrNotFound
	}
	delete(m.scenarios, id)
	for qid, q := range m.questions {
		if q.ScenarioID == id {
			delete(m.questions, qid)
		}
	}
	return nil
}

func (m *MemoryStore) ListScenarios(ctx context.Context, limit, offset int) ([]Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Scenario
	for _, sc := range m.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

/* ===================== QUESTIONS ===================== */

func (m *MemoryStore) GetQuestion(ctx context.Context, id int64) (Question, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	return q, ok, nil
}

func (m *MemoryStore) FirstActiveQuestion(ctx context.Context, scenarioID int64) (Question, bool, error) {
	return m.nextAfter(scenarioID, math.MinInt)
}

func (m *MemoryStore) NextActiveQuestion(ctx context.Context, scenarioID int64, afterSortOrder int) (Question, bool, error) {
	return m.nextAfter(scenarioID, afterSortOrder)
}

func (m *MemoryStore) nextAfter(scenarioID int64, afterSortOrder int) (Question, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best Question
	found := false
	for _, q := range m.questions {
		if q.ScenarioID != scenarioID || !q.IsActive || q.SortOrder <= afterSortOrder {
			continue
		}
		if !found || q.SortOrder < best.SortOrder || (q.SortOrder == best.SortOrder && q.ID < best.ID) {
			best = q
			found = true
		}
	}
	return best, found, nil
}

func (m *MemoryStore) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuestionID++
	q.ID = m.nextQuestionID
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now
	m.questions[q.ID] = q
	return q, nil
}

func (m *MemoryStore) UpdateQuestion(ctx context.Context, q Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.questions[q.ID]
	if !ok {
		return ErrNotFound
	}
	q.ScenarioID = old.ScenarioID
	q.CreatedAt = old.CreatedAt
	q.UpdatedAt = time.Now().UTC()
	m.questions[q.ID] = q
	return nil
}

func (m *MemoryStore) DeleteQuestion(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return ErrNotFound
	}
	delete(m.questions, id)
	return nil
}

func (m *MemoryStore) ListQuestionsByScenario(ctx context.Context, scenarioID int64) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Question
	for _, q := range m.questions {
		if q.ScenarioID == scenarioID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

/* ===================== CALLS ===================== */

func (m *MemoryStore) CreateCall(ctx context.Context, c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[c.CallSID] = c
	return nil
}

func (m *MemoryStore) UpdateCallStatus(ctx context.Context, callSID string, status CallStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callSID]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	m.calls[callSID] = c
	return nil
}

func (m *MemoryStore) GetCall(ctx context.Context, callSID string) (Call, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callSID]
	return c, ok, nil
}

func (m *MemoryStore) ListCalls(ctx context.Context, f CallFilter) ([]Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if f.ToNumber != "" && c.ToNumber != f.ToNumber {
			continue
		}
		if f.FromNumber != "" && c.FromNumber != f.FromNumber {
			continue
		}
		if f.ScenarioID != 0 && c.ScenarioID != f.ScenarioID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

/* ===================== ANSWERS ===================== */

func (m *MemoryStore) CreateAnswer(ctx context.Context, a Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, a)
	return nil
}

func (m *MemoryStore) FindAnswerByRecordingSID(ctx context.Context, recordingSID string) (Answer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.answers {
		if a.RecordingSID == recordingSID && recordingSID != "" {
			return a, true, nil
		}
	}
	return Answer{}, false, nil
}

func (m *MemoryStore) MarkTranscriptCompleted(ctx context.Context, recordingSID, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.answers {
		if a.RecordingSID == recordingSID && a.TranscriptStatus == TranscriptStatusPending {
			m.answers[i].TranscriptText = text
			m.answers[i].TranscriptStatus = TranscriptStatusCompleted
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListAnswersByCall(ctx context.Context, callSID string) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Answer
	for _, a := range m.answers {
		if a.CallSID == callSID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ScenarioSummary(ctx context.Context, scenarioID int64) (ScenarioSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := ScenarioSummary{ScenarioID: scenarioID}
	inScenario := map[string]bool{}
	for _, c := range m.calls {
		if c.ScenarioID != scenarioID {
			continue
		}
		inScenario[c.CallSID] = true
		out.TotalCalls++
		switch c.Status {
		case CallStatusCompleted:
			out.CompletedCalls++
		case CallStatusRejected:
			out.RejectedCalls++
		case CallStatusFailed:
			out.FailedCalls++
		case CallStatusInProgress:
			out.InProgress++
		}
	}
	for _, a := range m.answers {
		if !inScenario[a.CallSID] {
			continue
		}
		out.TotalAnswers++
		if a.TranscriptStatus == TranscriptStatusCompleted {
			out.TranscribedAnswers++
		}
	}
	return out, nil
}
