package admin

import (
	"context"

	"github.com/Newrona-pi/Twilio-INPUT/internal/survey"
)

// Store is the persistence surface the backoffice needs. Both
// survey.PostgresStore and survey.MemoryStore satisfy it.
type Store interface {
	GetScenario(ctx context.Context, id int64) (survey.Scenario, bool, error)
	CreateScenario(ctx context.Context, sc survey.Scenario) (survey.Scenario, error)
	UpdateScenario(ctx context.Context, sc survey.Scenario) error
	DeleteScenarioCascade(ctx context.Context, id int64) error
	ListScenarios(ctx context.Context, limit, offset int) ([]survey.Scenario, error)

	GetQuestion(ctx context.Context, id int64) (survey.Question, bool, error)
	CreateQuestion(ctx context.Context, q survey.Question) (survey.Question, error)
	UpdateQuestion(ctx context.Context, q survey.Question) error
	DeleteQuestion(ctx context.Context, id int64) error
	ListQuestionsByScenario(ctx context.Context, scenarioID int64) ([]survey.Question, error)

	UpsertPhoneNumber(ctx context.Context, pn survey.PhoneNumber) error
	ListAllPhoneNumbers(ctx context.Context) ([]survey.PhoneNumber, error)

	ListCalls(ctx context.Context, f survey.CallFilter) ([]survey.Call, error)
	ListAnswersByCall(ctx context.Context, callSID string) ([]survey.Answer, error)
	ScenarioSummary(ctx context.Context, scenarioID int64) (survey.ScenarioSummary, error)
}
