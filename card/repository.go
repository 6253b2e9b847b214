package card

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrRequestNotFound is returned when no request exists for the identifier.
	ErrRequestNotFound = errors.New("card: request not found")
	// ErrAlreadyProcessed signals the request is in a terminal state.
	ErrAlreadyProcessed = errors.New("card: request already processed")
	// ErrUnauthorizedApprover signals the stockist is not a candidate on the request.
	ErrUnauthorizedApprover = errors.New("card: stockist is not an approver for this request")
	// ErrInvalidToken signals an unknown or already-used approval token.
	ErrInvalidToken = errors.New("card: invalid or used approval token")
)

// Outcome reports the effect of one approval attempt on a request.
type Outcome struct {
	Request   Request
	Duplicate bool
	// Reached is true only for the attempt whose insert crossed the threshold.
	Reached bool
}

// Cursor is a keyset position into the pending-request listing. The zero
// value starts from the newest request.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CreateRequestParams contains everything persisted when a request opens:
// the request row, its candidate set, and one minted token per candidate.
type CreateRequestParams struct {
	RequesterID    string
	RequesterName  string
	RequesterEmail string
	Payload        Payload
	Threshold      int
	Recipients     []RecipientToken
}

// Repository handles data access for purchasing-card requests. The approval
// methods each run a single transaction holding the request row lock, so
// concurrent votes on one request serialize.
type Repository interface {
	CreateRequest(ctx context.Context, params CreateRequestParams) (Request, error)
	GetRequest(ctx context.Context, id string) (Request, error)
	ApplyApproval(ctx context.Context, requestID, stockistID string) (Outcome, error)
	RedeemToken(ctx context.Context, token string) (Outcome, error)
	ListPendingFor(ctx context.Context, stockistID string, cursor Cursor, limit int) ([]Request, error)
	Cancel(ctx context.Context, requestID string) (Request, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const requestColumns = `
	r.id, r.requester_id, r.requester_name, r.requester_email, r.payload,
	r.status::text, r.threshold,
	(SELECT COUNT(*) FROM card_approvals a WHERE a.request_id = r.id),
	r.approved_at, r.created_at, r.updated_at
`

func (r *PGRepository) CreateRequest(ctx context.Context, params CreateRequestParams) (Request, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("card: create request: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSQL = `
INSERT INTO card_requests (requester_id, requester_name, requester_email, payload, threshold)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, status::text, threshold, created_at, updated_at
`
	req := Request{
		RequesterID:    params.RequesterID,
		RequesterName:  params.RequesterName,
		RequesterEmail: params.RequesterEmail,
		Payload:        params.Payload,
	}
	var status string
	err = tx.QueryRow(ctx, insertSQL,
		params.RequesterID,
		params.RequesterName,
		params.RequesterEmail,
		params.Payload,
		params.Threshold,
	).Scan(&req.ID, &status, &req.Threshold, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Request{}, fmt.Errorf("card: create request: %w", err)
	}
	req.Status = Status(status)

	const candidateSQL = `INSERT INTO card_request_stockists (request_id, stockist_id) VALUES ($1, $2)`
	const tokenSQL = `INSERT INTO card_approval_tokens (request_id, stockist_id, token) VALUES ($1, $2, $3)`
	for _, rec := range params.Recipients {
		if _, err := tx.Exec(ctx, candidateSQL, req.ID, rec.StockistID); err != nil {
			return Request{}, fmt.Errorf("card: create request: candidate %s: %w", rec.StockistID, err)
		}
		if _, err := tx.Exec(ctx, tokenSQL, req.ID, rec.StockistID, rec.Token); err != nil {
			return Request{}, fmt.Errorf("card: create request: token for %s: %w", rec.StockistID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("card: create request: commit: %w", err)
	}
	return req, nil
}

func (r *PGRepository) GetRequest(ctx context.Context, id string) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM card_requests r WHERE r.id = $1`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, fmt.Errorf("card: get request: %w", err)
	}
	return req, nil
}

// ApplyApproval records one stockist's approval inside a single transaction:
// lock the request, reject non-candidates, insert the approval (a repeat vote
// is a no-op), then flip the request to approved when the vote count reaches
// the threshold.
func (r *PGRepository) ApplyApproval(ctx context.Context, requestID, stockistID string) (Outcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("card: apply approval: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return Outcome{}, err
	}
	if req.Status.Terminal() {
		return Outcome{}, ErrAlreadyProcessed
	}

	const memberSQL = `
SELECT EXISTS (
	SELECT 1 FROM card_request_stockists
	WHERE request_id = $1 AND stockist_id = $2
)
`
	var member bool
	if err := tx.QueryRow(ctx, memberSQL, requestID, stockistID).Scan(&member); err != nil {
		return Outcome{}, fmt.Errorf("card: apply approval: membership: %w", err)
	}
	if !member {
		return Outcome{}, ErrUnauthorizedApprover
	}

	outcome, err := appendAndCheck(ctx, tx, req, stockistID)
	if err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("card: apply approval: commit: %w", err)
	}
	return outcome, nil
}

// RedeemToken consumes an email approval token and records the approval in
// the same transaction. A second redemption of the same token fails with
// ErrInvalidToken; the approval it produced stands.
func (r *PGRepository) RedeemToken(ctx context.Context, token string) (Outcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("card: redeem token: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const lookupSQL = `SELECT request_id, stockist_id FROM card_approval_tokens WHERE token = $1 AND NOT used`
	var requestID, stockistID string
	if err := tx.QueryRow(ctx, lookupSQL, token).Scan(&requestID, &stockistID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Outcome{}, ErrInvalidToken
		}
		return Outcome{}, fmt.Errorf("card: redeem token: lookup: %w", err)
	}

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return Outcome{}, err
	}

	// Consume the token under the request lock so two redemptions of the
	// same link cannot both pass the lookup above.
	const consumeSQL = `UPDATE card_approval_tokens SET used = true WHERE token = $1 AND NOT used`
	tag, err := tx.Exec(ctx, consumeSQL, token)
	if err != nil {
		return Outcome{}, fmt.Errorf("card: redeem token: consume: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Outcome{}, ErrInvalidToken
	}

	if req.Status.Terminal() {
		// The token is spent either way.
		if err := tx.Commit(ctx); err != nil {
			return Outcome{}, fmt.Errorf("card: redeem token: commit: %w", err)
		}
		return Outcome{}, ErrAlreadyProcessed
	}

	outcome, err := appendAndCheck(ctx, tx, req, stockistID)
	if err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("card: redeem token: commit: %w", err)
	}
	return outcome, nil
}

// ListPendingFor returns pending requests on which the stockist is a
// candidate and has not yet voted, newest first, keyset-paginated.
func (r *PGRepository) ListPendingFor(ctx context.Context, stockistID string, cursor Cursor, limit int) ([]Request, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
SELECT ` + requestColumns + `
FROM card_requests r
JOIN card_request_stockists c ON c.request_id = r.id AND c.stockist_id = $1
WHERE r.status = 'pending'
  AND NOT EXISTS (
	SELECT 1 FROM card_approvals a
	WHERE a.request_id = r.id AND a.stockist_id = $1
  )
  AND ($2::timestamptz IS NULL OR (r.created_at, r.id) < ($2, $3::uuid))
ORDER BY r.created_at DESC, r.id DESC
LIMIT $4
`
	var afterAt any
	var afterID any
	if !cursor.CreatedAt.IsZero() {
		afterAt, afterID = cursor.CreatedAt, cursor.ID
	}

	rows, err := r.pool.Query(ctx, query, stockistID, afterAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("card: list pending: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("card: list pending: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Cancel moves a pending request to the terminal rejected state.
func (r *PGRepository) Cancel(ctx context.Context, requestID string) (Request, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("card: cancel: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return Request{}, err
	}
	if req.Status.Terminal() {
		return Request{}, ErrAlreadyProcessed
	}

	const updateSQL = `UPDATE card_requests SET status = 'rejected', updated_at = now() WHERE id = $1 RETURNING updated_at`
	if err := tx.QueryRow(ctx, updateSQL, requestID).Scan(&req.UpdatedAt); err != nil {
		return Request{}, fmt.Errorf("card: cancel: %w", err)
	}
	req.Status = StatusRejected

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("card: cancel: commit: %w", err)
	}
	return req, nil
}

// lockRequest loads the request row FOR UPDATE, serializing every approval,
// redemption, and cancellation touching it.
func lockRequest(ctx context.Context, tx pgx.Tx, requestID string) (Request, error) {
	const query = `
SELECT id, requester_id, requester_name, requester_email, payload, status::text, threshold, approved_at, created_at, updated_at
FROM card_requests
WHERE id = $1
FOR UPDATE
`
	var req Request
	var status string
	err := tx.QueryRow(ctx, query, requestID).Scan(
		&req.ID,
		&req.RequesterID,
		&req.RequesterName,
		&req.RequesterEmail,
		&req.Payload,
		&status,
		&req.Threshold,
		&req.ApprovedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, fmt.Errorf("card: lock request: %w", err)
	}
	req.Status = Status(status)
	return req, nil
}

// appendAndCheck inserts the approval, counts votes, and flips the request
// to approved when the count reaches the threshold. Caller holds the row
// lock and has already excluded terminal requests.
func appendAndCheck(ctx context.Context, tx pgx.Tx, req Request, stockistID string) (Outcome, error) {
	const insertSQL = `
INSERT INTO card_approvals (request_id, stockist_id)
VALUES ($1, $2)
ON CONFLICT (request_id, stockist_id) DO NOTHING
`
	tag, err := tx.Exec(ctx, insertSQL, req.ID, stockistID)
	if err != nil {
		return Outcome{}, fmt.Errorf("card: record approval: %w", err)
	}
	duplicate := tag.RowsAffected() == 0

	const countSQL = `SELECT COUNT(*) FROM card_approvals WHERE request_id = $1`
	var count int
	if err := tx.QueryRow(ctx, countSQL, req.ID).Scan(&count); err != nil {
		return Outcome{}, fmt.Errorf("card: count approvals: %w", err)
	}
	req.Approvals = count

	reached := !duplicate && count >= req.Threshold
	if reached {
		const flipSQL = `
UPDATE card_requests
SET status = 'approved', approved_at = now(), updated_at = now()
WHERE id = $1
RETURNING approved_at, updated_at
`
		if err := tx.QueryRow(ctx, flipSQL, req.ID).Scan(&req.ApprovedAt, &req.UpdatedAt); err != nil {
			return Outcome{}, fmt.Errorf("card: finalize request: %w", err)
		}
		req.Status = StatusApproved
	}

	return Outcome{Request: req, Duplicate: duplicate, Reached: reached}, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var status string
	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.RequesterName,
		&req.RequesterEmail,
		&req.Payload,
		&status,
		&req.Threshold,
		&req.Approvals,
		&req.ApprovedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return Request{}, err
	}
	req.Status = Status(status)
	return req, nil
}
