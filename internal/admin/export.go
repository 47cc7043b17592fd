package admin

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/Newrona-pi/Twilio-INPUT/internal/survey"

	"github.com/gin-gonic/gin"
)

var exportHeader = []string{
	"CallSid", "Date", "To", "From", "ScenarioID",
	"Question", "AnswerType", "RecordingURL", "Transcript",
}

// ExportCallsCSV streams every call matching the optional to_number filter as
// CSV, one row per answer. Calls without answers still get a single row so
// rejected and failed calls show up in the export.
func (h Handlers) ExportCallsCSV(c *gin.Context) {
	ctx := c.Request.Context()

	calls, err := h.Store.ListCalls(ctx, survey.CallFilter{
		ToNumber: c.Query("to_number"),
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call listing failed"})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename=export.csv`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	defer w.Flush()

	if err := w.Write(exportHeader); err != nil {
		return
	}

	// Question texts repeat across calls; cache per request.
	questionText := map[int64]string{}

	for _, call := range calls {
		answers, err := h.Store.ListAnswersByCall(ctx, call.CallSID)
		if err != nil {
			return
		}

		scenarioID := ""
		if call.ScenarioID != 0 {
			scenarioID = strconv.FormatInt(call.ScenarioID, 10)
		}
		base := []string{
			call.CallSID,
			call.StartedAt.UTC().Format(time.RFC3339),
			call.ToNumber,
			call.FromNumber,
			scenarioID,
		}

		if len(answers) == 0 {
			if err := w.Write(append(base, "", "", "", "")); err != nil {
				return
			}
			continue
		}
		for _, a := range answers {
			row := append(append([]string{}, base...),
				h.questionTextCached(ctx, questionText, a.QuestionID),
				a.AnswerType,
				a.RecordingURL,
				a.TranscriptText,
			)
			if err := w.Write(row); err != nil {
				return
			}
		}
	}
}

func (h Handlers) questionTextCached(ctx context.Context, cache map[int64]string, questionID int64) string {
	if questionID == 0 {
		return ""
	}
	if text, ok := cache[questionID]; ok {
		return text
	}
	text := "Unknown"
	if q, found, err := h.Store.GetQuestion(ctx, questionID); err == nil && found {
		text = q.Text
	}
	cache[questionID] = text
	return text
}
