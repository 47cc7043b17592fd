package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Newrona-pi/Twilio-INPUT/internal/audit"
	"github.com/Newrona-pi/Twilio-INPUT/internal/auth"
	"github.com/Newrona-pi/Twilio-INPUT/internal/config"
	"github.com/Newrona-pi/Twilio-INPUT/internal/survey"

	"github.com/gin-gonic/gin"
)

type adminFixture struct {
	store  *survey.MemoryStore
	audits *audit.MemoryRepo
	router *gin.Engine
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		AdminUser:       "operator",
		AdminPassword:   "hunter2hunter2",
	}
	mgr, err := auth.NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	store := survey.NewMemoryStore()
	audits := audit.NewMemoryRepo()
	h := Handlers{
		Auth:  mgr,
		Creds: auth.NewCredentialChecker(cfg),
		Store: store,
		Audit: audit.NewService(audits),
	}

	r := gin.New()
	// Identity injected directly; token middleware has its own tests.
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "operator", "admin"))
	})
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/scenarios", h.CreateScenario)
	r.GET("/scenarios", h.ListScenarios)
	r.GET("/scenarios/:scenario_id", h.GetScenario)
	r.PUT("/scenarios/:scenario_id", h.UpdateScenario)
	r.DELETE("/scenarios/:scenario_id", h.DeleteScenario)
	r.GET("/scenarios/:scenario_id/questions", h.ListQuestions)
	r.GET("/scenarios/:scenario_id/summary", h.ScenarioSummary)
	r.POST("/questions", h.CreateQuestion)
	r.PUT("/questions/:question_id", h.UpdateQuestion)
	r.DELETE("/questions/:question_id", h.DeleteQuestion)
	r.POST("/phone_numbers", h.UpsertPhoneNumber)
	r.GET("/phone_numbers", h.ListPhoneNumbers)
	r.GET("/calls", h.ListCalls)
	r.GET("/export_csv", h.ExportCallsCSV)

	return &adminFixture{store: store, audits: audits, router: r}
}

func (f *adminFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *adminFixture) createScenario(t *testing.T, name string) survey.Scenario {
	t.Helper()
	w := f.do(t, "POST", "/scenarios", gin.H{"name": name, "greeting_text": "こんにちは"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create scenario: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var sc survey.Scenario
	if err := json.Unmarshal(w.Body.Bytes(), &sc); err != nil {
		t.Fatalf("decode scenario: %v", err)
	}
	return sc
}

func TestLogin(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, "POST", "/auth/login", gin.H{"user": "operator", "password": "hunter2hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	if w := f.do(t, "POST", "/auth/login", gin.H{"user": "operator", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}

	rw := f.do(t, "POST", "/auth/refresh", gin.H{"refresh_token": resp.RefreshToken})
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 refresh, got %d: %s", rw.Code, rw.Body.String())
	}
	if w := f.do(t, "POST", "/auth/refresh", gin.H{"refresh_token": resp.AccessToken}); w.Code != http.StatusUnauthorized {
		t.Fatalf("access token must not refresh, got %d", w.Code)
	}
}

func TestScenarioCRUD(t *testing.T) {
	f := newAdminFixture(t)
	sc := f.createScenario(t, "usage survey")

	w := f.do(t, "PUT", "/scenarios/1", gin.H{
		"name":          "usage survey v2",
		"greeting_text": "もしもし",
		"is_active":     false,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got, _, _ := f.store.GetScenario(context.Background(), sc.ID)
	if got.Name != "usage survey v2" || got.IsActive {
		t.Fatalf("update not applied: %+v", got)
	}

	if w := f.do(t, "GET", "/scenarios/999", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown scenario, got %d", w.Code)
	}

	if w := f.do(t, "DELETE", "/scenarios/1", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	if _, found, _ := f.store.GetScenario(context.Background(), sc.ID); found {
		t.Fatal("expected scenario gone")
	}

	if len(f.audits.Events()) != 3 {
		t.Fatalf("expected create/update/delete audited, got %d events", len(f.audits.Events()))
	}
}

func TestQuestionScenarioIsImmutable(t *testing.T) {
	f := newAdminFixture(t)
	sc := f.createScenario(t, "usage survey")
	other := f.createScenario(t, "other survey")

	w := f.do(t, "POST", "/questions", gin.H{"scenario_id": sc.ID, "text": "質問その一", "sort_order": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("create question: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var q survey.Question
	if err := json.Unmarshal(w.Body.Bytes(), &q); err != nil {
		t.Fatalf("decode question: %v", err)
	}

	w = f.do(t, "PUT", "/questions/1", gin.H{"scenario_id": other.ID, "text": "書き換え", "sort_order": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("update question: expected 200, got %d", w.Code)
	}
	got, _, _ := f.store.GetQuestion(context.Background(), q.ID)
	if got.ScenarioID != sc.ID {
		t.Fatalf("scenario_id must not change, got %d", got.ScenarioID)
	}
	if got.Text != "書き換え" || got.SortOrder != 5 {
		t.Fatalf("update not applied: %+v", got)
	}

	if w := f.do(t, "POST", "/questions", gin.H{"scenario_id": int64(999), "text": "x"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown scenario, got %d", w.Code)
	}
}

func TestUpsertPhoneNumberNormalizes(t *testing.T) {
	f := newAdminFixture(t)
	sc := f.createScenario(t, "usage survey")

	w := f.do(t, "POST", "/phone_numbers", gin.H{
		"to_number":   "03 (1234) 5678",
		"scenario_id": sc.ID,
		"label":       "campaign A",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	pn, found, _ := f.store.FindPhoneNumber(context.Background(), "+0312345678")
	if !found || pn.ScenarioID != sc.ID {
		t.Fatalf("expected normalized number stored, got %+v found=%v", pn, found)
	}
}

func TestListCallsIncludesAnswers(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	sc := f.createScenario(t, "usage survey")

	now := time.Now().UTC()
	if err := f.store.CreateCall(ctx, survey.Call{
		CallSID: "CA1", FromNumber: "+8190", ToNumber: "+8103",
		ScenarioID: sc.ID, Status: survey.CallStatusCompleted,
		StartedAt: now, CreatedAt: now,
	}); err != nil {
		t.Fatalf("create call: %v", err)
	}
	if err := f.store.CreateAnswer(ctx, survey.Answer{
		ID: "a1", CallSID: "CA1", QuestionID: 1,
		AnswerType: survey.AnswerTypeRecording, RecordingSID: "RE1",
		TranscriptStatus: survey.TranscriptStatusPending, CreatedAt: now,
	}); err != nil {
		t.Fatalf("create answer: %v", err)
	}

	w := f.do(t, "GET", "/calls?to_number=%2B8103", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var logs []struct {
		CallSID string          `json:"call_sid"`
		Answers []survey.Answer `json:"answers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &logs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(logs) != 1 || logs[0].CallSID != "CA1" || len(logs[0].Answers) != 1 {
		t.Fatalf("unexpected listing: %+v", logs)
	}

	if w := f.do(t, "GET", "/calls?to_number=%2B9999", nil); !strings.HasPrefix(w.Body.String(), "[]") {
		t.Fatalf("expected empty list body, got %s", w.Body.String())
	}
}
