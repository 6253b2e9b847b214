package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrEntityNotFound is returned when the decision target does not exist.
	ErrEntityNotFound = errors.New("onboarding: entity not found")
	// ErrUnknownKind is returned for a target kind outside user/stockist.
	ErrUnknownKind = errors.New("onboarding: unknown target kind")
)

// DecideParams carries one admin decision plus its audit metadata.
type DecideParams struct {
	TargetKind TargetKind
	TargetID   string
	Action     Action
	ActorID    string
	ActorEmail string
	Note       string
	IP         string
	UserAgent  string
}

// Repository applies admin decisions. Decide runs the status change and the
// audit insert in one transaction holding the target row lock.
type Repository interface {
	Decide(ctx context.Context, params DecideParams) (Decision, error)
	ListPending(ctx context.Context, kind TargetKind, limit int) ([]PendingAccount, error)
	ListAudits(ctx context.Context, kind TargetKind, targetID string, limit int) ([]AuditRecord, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func tableFor(kind TargetKind) (string, error) {
	switch kind {
	case TargetUser:
		return "users", nil
	case TargetStockist:
		return "stockists", nil
	default:
		return "", ErrUnknownKind
	}
}

func (r *PGRepository) Decide(ctx context.Context, params DecideParams) (Decision, error) {
	table, err := tableFor(params.TargetKind)
	if err != nil {
		return Decision{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("onboarding: decide: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var nameColumn string
	if params.TargetKind == TargetUser {
		nameColumn = "medical_name"
	} else {
		nameColumn = "name"
	}
	lockSQL := fmt.Sprintf(`SELECT status::text, email, %s FROM %s WHERE id = $1 FOR UPDATE`, nameColumn, table)
	var previous, targetEmail, targetName string
	if err := tx.QueryRow(ctx, lockSQL, params.TargetID).Scan(&previous, &targetEmail, &targetName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Decision{}, ErrEntityNotFound
		}
		return Decision{}, fmt.Errorf("onboarding: decide: lock target: %w", err)
	}

	var next, updateSQL string
	var updateArgs []any
	switch params.Action {
	case ActionApprove:
		next = "approved"
		updateSQL = fmt.Sprintf(`
UPDATE %s
SET status = 'approved', approved_at = now(), declined_at = NULL, approved_by = $2, updated_at = now()
WHERE id = $1`, table)
		updateArgs = []any{params.TargetID, params.ActorEmail}
	case ActionDecline:
		next = "declined"
		updateSQL = fmt.Sprintf(`
UPDATE %s
SET status = 'declined', declined_at = now(), updated_at = now()
WHERE id = $1`, table)
		updateArgs = []any{params.TargetID}
	default:
		return Decision{}, fmt.Errorf("onboarding: decide: unknown action %q", params.Action)
	}

	changed := previous != next
	if changed {
		if _, err := tx.Exec(ctx, updateSQL, updateArgs...); err != nil {
			return Decision{}, fmt.Errorf("onboarding: decide: update status: %w", err)
		}
	}

	// The audit trail records every call, repeats included.
	const auditSQL = `
INSERT INTO admin_audits (actor_id, actor_email, target_kind, target_id, action, note, ip, user_agent)
VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6, $7, $8)
`
	_, err = tx.Exec(ctx, auditSQL,
		params.ActorID,
		params.ActorEmail,
		string(params.TargetKind),
		params.TargetID,
		string(params.Action),
		params.Note,
		params.IP,
		params.UserAgent,
	)
	if err != nil {
		return Decision{}, fmt.Errorf("onboarding: decide: write audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Decision{}, fmt.Errorf("onboarding: decide: commit: %w", err)
	}

	return Decision{
		TargetKind:  params.TargetKind,
		TargetID:    params.TargetID,
		TargetEmail: targetEmail,
		TargetName:  targetName,
		Previous:    previous,
		Current:     next,
		Changed:     changed,
	}, nil
}

func (r *PGRepository) ListPending(ctx context.Context, kind TargetKind, limit int) ([]PendingAccount, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var query string
	switch kind {
	case TargetUser:
		query = `
SELECT id, medical_name, email, status::text, created_at
FROM users
WHERE status = 'processing'
ORDER BY created_at ASC
LIMIT $1`
	case TargetStockist:
		query = `
SELECT id, name, email, status::text, created_at
FROM stockists
WHERE status = 'processing'
ORDER BY created_at ASC
LIMIT $1`
	default:
		return nil, ErrUnknownKind
	}

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("onboarding: list pending: %w", err)
	}
	defer rows.Close()

	var out []PendingAccount
	for rows.Next() {
		var acc PendingAccount
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.Email, &acc.Status, &acc.CreatedAt); err != nil {
			return nil, fmt.Errorf("onboarding: list pending: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (r *PGRepository) ListAudits(ctx context.Context, kind TargetKind, targetID string, limit int) ([]AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	const query = `
SELECT id, COALESCE(actor_id::text, ''), actor_email, target_kind, target_id, action::text, note, ip, user_agent, created_at
FROM admin_audits
WHERE target_kind = $1 AND target_id = $2
ORDER BY created_at DESC
LIMIT $3`

	rows, err := r.pool.Query(ctx, query, string(kind), targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("onboarding: list audits: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var recKind, action string
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.ActorEmail, &recKind, &rec.TargetID, &action, &rec.Note, &rec.IP, &rec.UserAgent, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("onboarding: list audits: %w", err)
		}
		rec.TargetKind = TargetKind(recKind)
		rec.Action = Action(action)
		out = append(out, rec)
	}
	return out, rows.Err()
}
