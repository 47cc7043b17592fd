package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Newrona-pi/Twilio-INPUT/internal/audit"
	"github.com/Newrona-pi/Twilio-INPUT/internal/auth"
	"github.com/Newrona-pi/Twilio-INPUT/internal/rbac"
	"github.com/Newrona-pi/Twilio-INPUT/internal/survey"
	"github.com/Newrona-pi/Twilio-INPUT/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth  *auth.Manager
	Creds *auth.CredentialChecker
	Store Store
	Audit *audit.Service
}

// --- Auth ---

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// Login checks the operator credentials and issues a JWT token pair.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if h.Creds == nil || !h.Creds.Check(req.User, req.Password) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.User, rbac.RoleAdmin)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), claims.UserID, rbac.RoleAdmin)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Scenarios ---

type scenarioRequest struct {
	Name           string `json:"name"`
	GreetingText   string `json:"greeting_text"`
	DisclaimerText string `json:"disclaimer_text"`
	GuidanceText   string `json:"question_guidance_text"`
	IsActive       *bool  `json:"is_active"`
}

func (r scenarioRequest) toModel() survey.Scenario {
	sc := survey.Scenario{
		Name:           r.Name,
		GreetingText:   r.GreetingText,
		DisclaimerText: r.DisclaimerText,
		GuidanceText:   r.GuidanceText,
		IsActive:       true,
	}
	if r.IsActive != nil {
		sc.IsActive = *r.IsActive
	}
	return sc
}

func (h Handlers) CreateScenario(c *gin.Context) {
	var req scenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Name == "" || req.GreetingText == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name and greeting_text required"})
		return
	}
	sc, err := h.Store.CreateScenario(c.Request.Context(), req.toModel())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scenario create failed"})
		return
	}
	h.logAction(c, fmt.Sprintf("scenario %q created", sc.Name), sc.ID)
	c.JSON(http.StatusCreated, sc)
}

func (h Handlers) UpdateScenario(c *gin.Context) {
	id, ok := pathID(c, "scenario_id")
	if !ok {
		return
	}
	var req scenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sc := req.toModel()
	sc.ID = id
	if err := h.Store.UpdateScenario(c.Request.Context(), sc); err != nil {
		abortStoreErr(c, err, "scenario update failed")
		return
	}
	h.logAction(c, fmt.Sprintf("scenario %d updated", id), id)
	updated, _, err := h.Store.GetScenario(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scenario reload failed"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h Handlers) DeleteScenario(c *gin.Context) {
	id, ok := pathID(c, "scenario_id")
	if !ok {
		return
	}
	if err := h.Store.DeleteScenarioCascade(c.Request.Context(), id); err != nil {
		abortStoreErr(c, err, "scenario delete failed")
		return
	}
	h.logAction(c, fmt.Sprintf("scenario %d deleted", id), id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h Handlers) GetScenario(c *gin.Context) {
	id, ok := pathID(c, "scenario_id")
	if !ok {
		return
	}
	sc, found, err := h.Store.GetScenario(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scenario lookup failed"})
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h Handlers) ListScenarios(c *gin.Context) {
	limit, offset := pagination(c, 100)
	out, err := h.Store.ListScenarios(c.Request.Context(), limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scenario listing failed"})
		return
	}
	c.JSON(http.StatusOK, emptyAsList(out))
}

func (h Handlers) ScenarioSummary(c *gin.Context) {
	id, ok := pathID(c, "scenario_id")
	if !ok {
		return
	}
	sum, err := h.Store.ScenarioSummary(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Questions ---

type questionRequest struct {
	ScenarioID int64  `json:"scenario_id"`
	Text       string `json:"text"`
	SortOrder  int    `json:"sort_order"`
	IsActive   *bool  `json:"is_active"`
}

func (h Handlers) CreateQuestion(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ScenarioID <= 0 || req.Text == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "scenario_id and text required"})
		return
	}
	_, found, err := h.Store.GetScenario(c.Request.Context(), req.ScenarioID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scenario lookup failed"})
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
		return
	}
	qu := survey.Question{
		ScenarioID: req.ScenarioID,
		Text:       req.Text,
		SortOrder:  req.SortOrder,
		IsActive:   true,
	}
	if req.IsActive != nil {
		qu.IsActive = *req.IsActive
	}
	created, err := h.Store.CreateQuestion(c.Request.Context(), qu)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "question create failed"})
		return
	}
	h.logAction(c, fmt.Sprintf("question %d created", created.ID), created.ScenarioID)
	c.JSON(http.StatusCreated, created)
}

func (h Handlers) UpdateQuestion(c *gin.Context) {
	id, ok := pathID(c, "question_id")
	if !ok {
		return
	}
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	current, found, err := h.Store.GetQuestion(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "question lookup failed"})
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "question not found"})
		return
	}
	// scenario_id is immutable; questions never move between questionnaires.
	current.Text = req.Text
	current.SortOrder = req.SortOrder
	if req.IsActive != nil {
		current.IsActive = *req.IsActive
	}
	if err := h.Store.UpdateQuestion(c.Request.Context(), current); err != nil {
		abortStoreErr(c, err, "question update failed")
		return
	}
	h.logAction(c, fmt.Sprintf("question %d updated", id), current.ScenarioID)
	c.JSON(http.StatusOK, current)
}

func (h Handlers) DeleteQuestion(c *gin.Context) {
	id, ok := pathID(c, "question_id")
	if !ok {
		return
	}
	current, found, err := h.Store.GetQuestion(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "question lookup failed"})
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "question not found"})
		return
	}
	if err := h.Store.DeleteQuestion(c.Request.Context(), id); err != nil {
		abortStoreErr(c, err, "question delete failed")
		return
	}
	h.logAction(c, fmt.Sprintf("question %d deleted", id), current.ScenarioID)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h Handlers) ListQuestions(c *gin.Context) {
	id, ok := pathID(c, "scenario_id")
	if !ok {
		return
	}
	out, err := h.Store.ListQuestionsByScenario(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "question listing failed"})
		return
	}
	c.JSON(http.StatusOK, emptyAsList(out))
}

// --- Phone numbers ---

type phoneNumberRequest struct {
	ToNumber   string `json:"to_number"`
	ScenarioID int64  `json:"scenario_id"`
	Label      string `json:"label"`
	IsActive   *bool  `json:"is_active"`
}

// UpsertPhoneNumber creates or rebinds a dialed-number mapping. The number is
// normalized the same way inbound resolution normalizes it.
func (h Handlers) UpsertPhoneNumber(c *gin.Context) {
	var req phoneNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ToNumber == "" || req.ScenarioID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to_number and scenario_id required"})
		return
	}
	_, found, err := h.Store.GetScenario(c.Request.Context(), req.ScenarioID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scenario lookup failed"})
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
		return
	}
	pn := survey.PhoneNumber{
		ToNumber:   survey.NormalizeNumber(req.ToNumber),
		ScenarioID: req.ScenarioID,
		Label:      req.Label,
		IsActive:   true,
	}
	if req.IsActive != nil {
		pn.IsActive = *req.IsActive
	}
	if err := h.Store.UpsertPhoneNumber(c.Request.Context(), pn); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "phone number upsert failed"})
		return
	}
	h.logAction(c, fmt.Sprintf("number %s bound to scenario %d", pn.ToNumber, pn.ScenarioID), pn.ScenarioID)
	c.JSON(http.StatusOK, pn)
}

func (h Handlers) ListPhoneNumbers(c *gin.Context) {
	out, err := h.Store.ListAllPhoneNumbers(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "phone number listing failed"})
		return
	}
	c.JSON(http.StatusOK, emptyAsList(out))
}

// --- Calls ---

// callLog is a call row with its answers inlined, the shape the dashboard
// consumes.
type callLog struct {
	survey.Call
	Answers []survey.Answer `json:"answers"`
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit, offset := pagination(c, 100)
	f := survey.CallFilter{
		ToNumber:   c.Query("to_number"),
		FromNumber: c.Query("from_number"),
		Limit:      limit,
		Offset:     offset,
	}
	if v := c.Query("scenario_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid scenario_id"})
			return
		}
		f.ScenarioID = id
	}

	calls, err := h.Store.ListCalls(c.Request.Context(), f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call listing failed"})
		return
	}

	out := make([]callLog, 0, len(calls))
	for _, call := range calls {
		answers, err := h.Store.ListAnswersByCall(c.Request.Context(), call.CallSID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "answer listing failed"})
			return
		}
		if answers == nil {
			answers = []survey.Answer{}
		}
		out = append(out, callLog{Call: call, Answers: answers})
	}
	c.JSON(http.StatusOK, out)
}

// --- helpers ---

func (h Handlers) logAction(c *gin.Context, message string, scenarioID int64) {
	if h.Audit == nil {
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if err := h.Audit.LogAdminAction(c.Request.Context(), userID, role, c.ClientIP(), message, scenarioID, ""); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func abortStoreErr(c *gin.Context, err error, fallback string) {
	if errors.Is(err, survey.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

// emptyAsList keeps JSON listings as [] instead of null.
func emptyAsList[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
