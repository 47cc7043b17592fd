package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to the audit_events table. INSERT only; the table
// should carry a policy or trigger blocking UPDATE and DELETE.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events
  (id, type, actor_user_id, actor_role, ip_address, scenario_id, call_sid, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), NULLIF($7, ''), $8, $9, $10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.ScenarioID,
		e.CallSID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
