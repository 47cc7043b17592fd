package main

import (
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/Newrona-pi/Twilio-INPUT/internal/admin"
	"github.com/Newrona-pi/Twilio-INPUT/internal/audit"
	"github.com/Newrona-pi/Twilio-INPUT/internal/auth"
	"github.com/Newrona-pi/Twilio-INPUT/internal/config"
	"github.com/Newrona-pi/Twilio-INPUT/internal/flow"
	"github.com/Newrona-pi/Twilio-INPUT/internal/rbac"
	"github.com/Newrona-pi/Twilio-INPUT/internal/survey"
	"github.com/Newrona-pi/Twilio-INPUT/internal/telephony"
	"github.com/Newrona-pi/Twilio-INPUT/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type appDeps struct {
	Auth  *auth.Manager
	DB    *sql.DB
	Redis *redis.Client
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, cfg config.Config, deps appDeps) {
	store := survey.NewPostgresStore(deps.DB)
	auditSvc := audit.NewService(audit.NewPostgresRepo(deps.DB))

	engine, err := flow.NewEngine(
		store,
		survey.NewDirectory(store),
		survey.NewSequencer(store),
		flow.Options{
			Language: cfg.Survey.PromptLanguage,
			Paths: flow.CallbackPaths{
				Recording:     telephony.RecordingPath,
				Transcription: telephony.TranscriptionPath,
			},
			Audit: auditSvc,
		},
	)
	if err != nil {
		slog.Error("flow engine init failed", "err", err)
		os.Exit(1)
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public, signature-guarded).
	{
		wh := &telephony.WebhookHandler{
			Engine: engine,
			Dedupe: telephony.RedisDeliveryGuard{Client: deps.Redis},
		}
		sig := telephony.RequireSignature(cfg.Twilio.AuthToken, cfg.Twilio.PublicBaseURL)
		r.POST(telephony.VoicePath, sig, wh.HandleVoice)
		r.POST(telephony.RecordingPath, sig, wh.HandleRecording)
		r.POST(telephony.TranscriptionPath, sig, wh.HandleTranscription)
	}

	h := admin.Handlers{
		Auth:  deps.Auth,
		Creds: auth.NewCredentialChecker(cfg.Auth),
		Store: store,
		Audit: auditSvc,
	}

	// protected API group
	v1 := r.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", h.Login)
			authGroup.POST("/refresh", h.Refresh)
		}

		protected := v1.Group("")
		protected.Use(auth.RequireAccessToken(deps.Auth))
		{
			protected.GET("/me", func(c *gin.Context) {
				uid, _ := auth.UserID(c.Request.Context())
				role, _ := auth.Role(c.Request.Context())
				c.JSON(200, gin.H{"user_id": uid, "role": role})
			})

			// Read endpoints: admin or viewer.
			read := protected.Group("")
			read.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleViewer))
			{
				read.GET("/scenarios", h.ListScenarios)
				read.GET("/scenarios/:scenario_id", h.GetScenario)
				read.GET("/scenarios/:scenario_id/questions", h.ListQuestions)
				read.GET("/scenarios/:scenario_id/summary", h.ScenarioSummary)
				read.GET("/phone_numbers", h.ListPhoneNumbers)
				read.GET("/calls", h.ListCalls)
				read.GET("/export_csv", h.ExportCallsCSV)
			}

			// Mutations: admin only.
			write := protected.Group("")
			write.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
			{
				write.POST("/scenarios", h.CreateScenario)
				write.PUT("/scenarios/:scenario_id", h.UpdateScenario)
				write.DELETE("/scenarios/:scenario_id", h.DeleteScenario)
				write.POST("/questions", h.CreateQuestion)
				write.PUT("/questions/:question_id", h.UpdateQuestion)
				write.DELETE("/questions/:question_id", h.DeleteQuestion)
				write.POST("/phone_numbers", h.UpsertPhoneNumber)
			}
		}
	}
}
