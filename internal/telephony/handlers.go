package telephony

import (
	"fmt"
	"net/http"

	"github.com/Newrona-pi/Twilio-INPUT/internal/flow"
	"github.com/Newrona-pi/Twilio-INPUT/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Webhook route paths. The flow engine embeds RecordingPath (plus resume
// query parameters) and TranscriptionPath into the instructions it emits, so
// wiring must hand the same values to flow.CallbackPaths.
const (
	VoicePath         = "/webhooks/twilio/voice"
	RecordingPath     = "/webhooks/twilio/recording"
	TranscriptionPath = "/webhooks/twilio/transcription"
)

// WebhookHandler converts Twilio webhooks to engine events and writes the
// engine's instruction back as TwiML.
//
// No business logic here: state reconstruction and sequencing belong to
// internal/flow.
type WebhookHandler struct {
	Engine *flow.Engine

	// Dedupe is optional. When set, capture-completion deliveries are keyed
	// by (call, question) and redeliveries skip the answer insert. A guard
	// failure degrades to treating the delivery as first; a stranded caller
	// is worse than a duplicate row.
	Dedupe DeliveryGuard
}

// HandleVoice serves the initial-call event.
func (h *WebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseInboundCall(c.Request)
	if err != nil {
		log.Warn("voice webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	in, err := h.Engine.HandleInboundCall(c.Request.Context(), flow.InboundCall{
		CallSID: form.CallSid,
		From:    form.From,
		To:      form.To,
	})
	if err != nil {
		log.Error("inbound call handling failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call handling failed"})
		return
	}

	log.Info("inbound call", "call_sid", form.CallSid, "to", form.To, "state", in.State)
	h.writeTwiML(c, in)
}

// HandleRecording serves the capture-completion event.
func (h *WebhookHandler) HandleRecording(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseRecordingCallback(c.Request)
	if err != nil {
		log.Warn("recording webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	duplicate := false
	if h.Dedupe != nil {
		key := fmt.Sprintf("webhook:recording:%s:%d", form.CallSid, form.QuestionID)
		first, err := h.Dedupe.MarkDelivery(c.Request.Context(), key)
		if err != nil {
			log.Warn("delivery guard unavailable", "err", err)
		} else if !first {
			log.Info("duplicate recording delivery", "call_sid", form.CallSid, "question_id", form.QuestionID)
			duplicate = true
		}
	}

	in, err := h.Engine.HandleRecordingDone(c.Request.Context(), flow.RecordingDone{
		CallSID:      form.CallSid,
		ScenarioID:   form.ScenarioID,
		QuestionID:   form.QuestionID,
		RecordingURL: form.RecordingUrl,
		RecordingSID: form.RecordingSid,
		Duplicate:    duplicate,
	})
	if err != nil {
		log.Error("recording handling failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call handling failed"})
		return
	}

	h.writeTwiML(c, in)
}

// HandleTranscription serves the transcription-ready event. The response is a
// plain acknowledgement; Twilio does not act on its content.
func (h *WebhookHandler) HandleTranscription(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTranscriptionCallback(c.Request)
	if err != nil {
		log.Warn("transcription webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	updated, err := h.Engine.HandleTranscriptReady(c.Request.Context(), flow.TranscriptReady{
		RecordingSID: form.RecordingSid,
		Text:         form.TranscriptionText,
	})
	if err != nil {
		log.Error("transcription handling failed", "recording_sid", form.RecordingSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transcription handling failed"})
		return
	}
	if !updated {
		// Known race: the recording may not be persisted yet, or never will
		// be. Best-effort enrichment, so acknowledge anyway.
		log.Debug("transcription without matching answer", "recording_sid", form.RecordingSid)
	}

	c.String(http.StatusOK, "OK")
}

func (h *WebhookHandler) writeTwiML(c *gin.Context, in flow.Instruction) {
	twiml, err := RenderTwiML(in)
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
