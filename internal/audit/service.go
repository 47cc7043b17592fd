package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to callers by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records a backoffice mutation against a scenario or its
// questions and numbers. scenarioID may be zero for actions without a target.
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, ip, message string, scenarioID int64, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		ScenarioID:  scenarioID,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogCallRejected records an inbound call to a number no active questionnaire
// claims. Satisfies the progression engine's Auditor contract.
func (s *Service) LogCallRejected(ctx context.Context, callSID, dialed string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeCallRejected,
		CallSID: callSID,
		Message: fmt.Sprintf("inbound call to unassigned number %s", dialed),
	})
}
