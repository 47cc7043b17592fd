package survey

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/Newrona-pi/Twilio-INPUT/pkg/utils"
)

// NOTE: This store assumes the following tables exist:
// - scenarios (id BIGSERIAL PK)
// - phone_numbers (to_number TEXT PK, scenario_id FK)
// - questions (id BIGSERIAL PK, scenario_id FK)
// - calls (call_sid TEXT PK, scenario_id nullable FK)
// - answers (id UUID PK, call_sid FK, question_id nullable FK,
//            recording_sid indexed for transcription correlation)
//
// Every webhook turn performs a single-row insert or single-row update here;
// no write spans calls and answers in one transaction.

var ErrNotFound = errors.New("survey: not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

/* ===================== PHONE NUMBERS ===================== */

func (s *PostgresStore) FindPhoneNumber(ctx context.Context, toNumber string) (PhoneNumber, bool, error) {
	const q = `
SELECT to_number, scenario_id, COALESCE(label, ''), is_active
FROM phone_numbers
WHERE to_number = $1 AND is_active = TRUE
`
	var pn PhoneNumber
	err := s.db.QueryRowContext(ctx, q, toNumber).Scan(&pn.ToNumber, &pn.ScenarioID, &pn.Label, &pn.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PhoneNumber{}, false, nil
		}
		return PhoneNumber{}, false, err
	}
	return pn, true, nil
}

func (s *PostgresStore) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	const q = `
SELECT to_number, scenario_id, COALESCE(label, ''), is_active
FROM phone_numbers
WHERE is_active = TRUE
ORDER BY to_number
`
	return s.scanPhoneNumbers(ctx, q)
}

// ListAllPhoneNumbers includes inactive bindings; admin listing only.
func (s *PostgresStore) ListAllPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	const q = `
SELECT to_number, scenario_id, COALESCE(label, ''), is_active
FROM phone_numbers
ORDER BY to_number
`
	return s.scanPhoneNumbers(ctx, q)
}

func (s *PostgresStore) scanPhoneNumbers(ctx context.Context, q string) ([]PhoneNumber, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PhoneNumber
	for rows.Next() {
		var pn PhoneNumber
		if err := rows.Scan(&pn.ToNumber, &pn.ScenarioID, &pn.Label, &pn.IsActive); err != nil {
			return nil, err
		}
		out = append(out, pn)
	}
	return out, rows.Err()
}

// UpsertPhoneNumber creates or rebinds a destination number.
func (s *PostgresStore) UpsertPhoneNumber(ctx context.Context, pn PhoneNumber) error {
	const q = `
INSERT INTO phone_numbers (to_number, scenario_id, label, is_active)
VALUES ($1,$2,$3,$4)
ON CONFLICT (to_number)
DO UPDATE SET scenario_id = EXCLUDED.scenario_id,
              label = EXCLUDED.label,
              is_active = EXCLUDED.is_active
`
	_, err := s.db.ExecContext(ctx, q, pn.ToNumber, pn.ScenarioID, nullString(pn.Label), pn.IsActive)
	return err
}

/* ===================== SCENARIOS ===================== */

func (s *PostgresStore) GetScenario(ctx context.Context, id int64) (Scenario, bool, error) {
	const q = `
SELECT id, name, greeting_text, COALESCE(disclaimer_text, ''), COALESCE(question_guidance_text, ''),
       is_active, created_at, updated_at
FROM scenarios
WHERE id = $1
`
	var sc Scenario
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&sc.ID,
		&sc.Name,
		&sc.GreetingText,
		&sc.DisclaimerText,
		&sc.GuidanceText,
		&sc.IsActive,
		&sc.CreatedAt,
		&sc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scenario{}, false, nil
		}
		return Scenario{}, false, err
	}
	return sc, true, nil
}

func (s *PostgresStore) CreateScenario(ctx context.Context, sc Scenario) (Scenario, error) {
	const q = `
INSERT INTO scenarios (name, greeting_text, disclaimer_text, question_guidance_text, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
RETURNING id, created_at, updated_at
`
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, q,
		sc.Name,
		sc.GreetingText,
		nullString(sc.DisclaimerText),
		nullString(sc.GuidanceText),
		sc.IsActive,
		now,
	).Scan(&sc.ID, &sc.CreatedAt, &sc.UpdatedAt)
	return sc, err
}

func (s *PostgresStore) UpdateScenario(ctx context.Context, sc Scenario) error {
	const q = `
UPDATE scenarios
SET name = $2,
    greeting_text = $3,
    disclaimer_text = $4,
    question_guidance_text = $5,
    is_active = $6,
    updated_at = $7
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q,
		sc.ID,
		sc.Name,
		sc.GreetingText,
		nullString(sc.DisclaimerText),
		nullString(sc.GuidanceText),
		sc.IsActive,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteScenario removes a scenario and its questions. Calls keep their
// scenario_id reference for audit; the FK is expected to be ON DELETE SET NULL.
func (s *PostgresStore) DeleteScenario(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE scenario_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteScenarioCascade runs DeleteScenario inside its own transaction so the
// questions and scenario rows disappear together.
func (s *PostgresStore) DeleteScenarioCascade(ctx context.Context, id int64) error {
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return s.DeleteScenario(ctx, tx, id)
	})
}

func (s *PostgresStore) ListScenarios(ctx context.Context, limit, offset int) ([]Scenario, error) {
	const q = `
SELECT id, name, greeting_text, COALESCE(disclaimer_text, ''), COALESCE(question_guidance_text, ''),
       is_active, created_at, updated_at
FROM scenarios
ORDER BY id
LIMIT $1 OFFSET $2
`
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Scenario
	for rows.Next() {
		var sc Scenario
		if err := rows.Scan(
			&sc.ID,
			&sc.Name,
			&sc.GreetingText,
			&sc.DisclaimerText,
			&sc.GuidanceText,
			&sc.IsActive,
			&sc.CreatedAt,
			&sc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

/* ===================== QUESTIONS ===================== */

const questionColumns = `id, scenario_id, text, sort_order, is_active, created_at, updated_at`

func (s *PostgresStore) GetQuestion(ctx context.Context, id int64) (Question, bool, error) {
	const q = `
SELECT ` + questionColumns + `
FROM questions
WHERE id = $1
`
	var qu Question
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&qu.ID, &qu.ScenarioID, &qu.Text, &qu.SortOrder, &qu.IsActive, &qu.CreatedAt, &qu.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, false, nil
		}
		return Question{}, false, err
	}
	return qu, true, nil
}

func (s *PostgresStore) FirstActiveQuestion(ctx context.Context, scenarioID int64) (Question, bool, error) {
	const q = `
SELECT ` + questionColumns + `
FROM questions
WHERE scenario_id = $1 AND is_active = TRUE
ORDER BY sort_order, id
LIMIT 1
`
	return s.queryOneQuestion(ctx, q, scenarioID)
}

func (s *PostgresStore) NextActiveQuestion(ctx context.Context, scenarioID int64, afterSortOrder int) (Question, bool, error) {
	const q = `
SELECT ` + questionColumns + `
FROM questions
WHERE scenario_id = $1 AND is_active = TRUE AND sort_order > $2
ORDER BY sort_order, id
LIMIT 1
`
	return s.queryOneQuestion(ctx, q, scenarioID, afterSortOrder)
}

func (s *PostgresStore) queryOneQuestion(ctx context.Context, q string, args ...any) (Question, bool, error) {
	var qu Question
	err := s.db.QueryRowContext(ctx, q, args...).Scan(
		&qu.ID, &qu.ScenarioID, &qu.Text, &qu.SortOrder, &qu.IsActive, &qu.CreatedAt, &qu.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, false, nil
		}
		return Question{}, false, err
	}
	return qu, true, nil
}

func (s *PostgresStore) CreateQuestion(ctx context.Context, qu Question) (Question, error) {
	const q = `
INSERT INTO questions (scenario_id, text, sort_order, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
RETURNING id, created_at, updated_at
`
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, q, qu.ScenarioID, qu.Text, qu.SortOrder, qu.IsActive, now).
		Scan(&qu.ID, &qu.CreatedAt, &qu.UpdatedAt)
	return qu, err
}

// UpdateQuestion changes text/order/active only; a question never moves
// between scenarios.
func (s *PostgresStore) UpdateQuestion(ctx context.Context, qu Question) error {
	const q = `
UPDATE questions
SET text = $2, sort_order = $3, is_active = $4, updated_at = $5
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q, qu.ID, qu.Text, qu.SortOrder, qu.IsActive, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) ListQuestionsByScenario(ctx context.Context, scenarioID int64) ([]Question, error) {
	const q = `
SELECT ` + questionColumns + `
FROM questions
WHERE scenario_id = $1
ORDER BY sort_order, id
`
	rows, err := s.db.QueryContext(ctx, q, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var qu Question
		if err := rows.Scan(
			&qu.ID, &qu.ScenarioID, &qu.Text, &qu.SortOrder, &qu.IsActive, &qu.CreatedAt, &qu.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

/* ===================== CALLS ===================== */

func (s *PostgresStore) CreateCall(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (call_sid, from_number, to_number, scenario_id, status, started_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := s.db.ExecContext(ctx, q,
		c.CallSID,
		c.FromNumber,
		c.ToNumber,
		nullInt64(c.ScenarioID),
		c.Status,
		c.StartedAt,
		c.CreatedAt,
	)
	return err
}

func (s *PostgresStore) UpdateCallStatus(ctx context.Context, callSID string, status CallStatus) error {
	const q = `UPDATE calls SET status = $2 WHERE call_sid = $1`
	res, err := s.db.ExecContext(ctx, q, callSID, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type CallFilter struct {
	ToNumber   string
	FromNumber string
	ScenarioID int64
	Limit      int
	Offset     int
}

func (s *PostgresStore) ListCalls(ctx context.Context, f CallFilter) ([]Call, error) {
	q := `
SELECT call_sid, from_number, to_number, COALESCE(scenario_id, 0), status, started_at, created_at
FROM calls
WHERE 1=1
`
	args := []any{}
	if f.ToNumber != "" {
		args = append(args, f.ToNumber)
		q += ` AND to_number = $` + itoa(len(args))
	}
	if f.FromNumber != "" {
		args = append(args, f.FromNumber)
		q += ` AND from_number = $` + itoa(len(args))
	}
	if f.ScenarioID != 0 {
		args = append(args, f.ScenarioID)
		q += ` AND scenario_id = $` + itoa(len(args))
	}
	q += ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += ` LIMIT $` + itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.CallSID, &c.FromNumber, &c.ToNumber, &c.ScenarioID, &c.Status, &c.StartedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

/* ===================== ANSWERS ===================== */

const answerColumns = `id, call_sid, COALESCE(question_id, 0), answer_type,
       COALESCE(recording_sid, ''), COALESCE(recording_url, ''),
       COALESCE(transcript_text, ''), transcript_status, created_at`

func (s *PostgresStore) CreateAnswer(ctx context.Context, a Answer) error {
	const q = `
INSERT INTO answers (id, call_sid, question_id, answer_type, recording_sid, recording_url, transcript_status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := s.db.ExecContext(ctx, q,
		a.ID,
		a.CallSID,
		nullInt64(a.QuestionID),
		a.AnswerType,
		nullString(a.RecordingSID),
		nullString(a.RecordingURL),
		a.TranscriptStatus,
		a.CreatedAt,
	)
	return err
}

func (s *PostgresStore) FindAnswerByRecordingSID(ctx context.Context, recordingSID string) (Answer, bool, error) {
	const q = `
SELECT ` + answerColumns + `
FROM answers
WHERE recording_sid = $1
ORDER BY created_at
LIMIT 1
`
	var a Answer
	err := s.db.QueryRowContext(ctx, q, recordingSID).Scan(
		&a.ID, &a.CallSID, &a.QuestionID, &a.AnswerType,
		&a.RecordingSID, &a.RecordingURL,
		&a.TranscriptText, &a.TranscriptStatus, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Answer{}, false, nil
		}
		return Answer{}, false, err
	}
	return a, true, nil
}

// MarkTranscriptCompleted fills transcript fields for the answer matching
// recordingSID. The pending guard makes the completed state idempotent:
// a second transcription event finds no pending row and reports updated=false.
func (s *PostgresStore) MarkTranscriptCompleted(ctx context.Context, recordingSID, text string) (bool, error) {
	const q = `
UPDATE answers
SET transcript_text = $2, transcript_status = $3
WHERE recording_sid = $1 AND transcript_status = $4
`
	res, err := s.db.ExecContext(ctx, q, recordingSID, text, TranscriptStatusCompleted, TranscriptStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) ListAnswersByCall(ctx context.Context, callSID string) ([]Answer, error) {
	const q = `
SELECT ` + answerColumns + `
FROM answers
WHERE call_sid = $1
ORDER BY created_at
`
	rows, err := s.db.QueryContext(ctx, q, callSID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(
			&a.ID, &a.CallSID, &a.QuestionID, &a.AnswerType,
			&a.RecordingSID, &a.RecordingURL,
			&a.TranscriptText, &a.TranscriptStatus, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

/* ===================== REPORTING ===================== */

type ScenarioSummary struct {
	ScenarioID int64 `json:"scenario_id"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	RejectedCalls  int `json:"rejected_calls"`
	FailedCalls    int `json:"failed_calls"`
	InProgress     int `json:"in_progress_calls"`

	TotalAnswers       int `json:"total_answers"`
	TranscribedAnswers int `json:"transcribed_answers"`
}

func (s *PostgresStore) ScenarioSummary(ctx context.Context, scenarioID int64) (ScenarioSummary, error) {
	out := ScenarioSummary{ScenarioID: scenarioID}

	const qCalls = `
SELECT status, COUNT(*)
FROM calls
WHERE scenario_id = $1
GROUP BY status
`
	rows, err := s.db.QueryContext(ctx, qCalls, scenarioID)
	if err != nil {
		return ScenarioSummary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var st CallStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return ScenarioSummary{}, err
		}
		out.TotalCalls += n
		switch st {
		case CallStatusCompleted:
			out.CompletedCalls = n
		case CallStatusRejected:
			out.RejectedCalls = n
		case CallStatusFailed:
			out.FailedCalls = n
		case CallStatusInProgress:
			out.InProgress = n
		}
	}
	if err := rows.Err(); err != nil {
		return ScenarioSummary{}, err
	}

	const qAnswers = `
SELECT COUNT(*), COUNT(*) FILTER (WHERE a.transcript_status = $2)
FROM answers a
JOIN calls c ON c.call_sid = a.call_sid
WHERE c.scenario_id = $1
`
	if err := s.db.QueryRowContext(ctx, qAnswers, scenarioID, TranscriptStatusCompleted).
		Scan(&out.TotalAnswers, &out.TranscribedAnswers); err != nil {
		return ScenarioSummary{}, err
	}
	return out, nil
}

/* ===================== helpers ===================== */

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
