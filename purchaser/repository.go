package purchaser

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no purchaser row exists for the identifier.
	ErrNotFound = errors.New("purchaser: not found")
	// ErrDuplicateEmail signals the email already belongs to a purchaser.
	ErrDuplicateEmail = errors.New("purchaser: email already exists")
)

// Repository handles data access for purchaser profiles and the grant
// bookkeeping on the requesting store-owner account.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateInTx(ctx context.Context, tx pgx.Tx, params CreateParams) (Purchaser, error)
	MarkCardGrantedInTx(ctx context.Context, tx pgx.Tx, userID string) error
	GetByID(ctx context.Context, id string) (Purchaser, error)
	ListByCreator(ctx context.Context, userID string) ([]Purchaser, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const purchaserColumns = `
	id, full_name, address, contact_no, COALESCE(email, ''), aadhar_image, photo,
	COALESCE(created_by::text, ''), created_at, updated_at
`

func (r *PGRepository) CreateInTx(ctx context.Context, tx pgx.Tx, params CreateParams) (Purchaser, error) {
	query := `
		INSERT INTO purchasers (full_name, address, contact_no, email, aadhar_image, photo, created_by)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, '')::uuid)
		RETURNING ` + purchaserColumns

	p, err := scanPurchaser(tx.QueryRow(ctx, query,
		params.FullName,
		params.Address,
		params.ContactNo,
		params.Email,
		params.AadharImage,
		params.Photo,
		params.CreatedBy,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Purchaser{}, ErrDuplicateEmail
		}
		return Purchaser{}, fmt.Errorf("purchaser: create: %w", err)
	}
	return p, nil
}

// MarkCardGrantedInTx flips the card flags on the requesting store-owner
// account in the same transaction that creates the profile.
func (r *PGRepository) MarkCardGrantedInTx(ctx context.Context, tx pgx.Tx, userID string) error {
	const query = `
		UPDATE users
		SET has_purchasing_card = true, purchasing_card_requested = false, updated_at = now()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("purchaser: mark card granted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchaser: mark card granted: no user %s", userID)
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Purchaser, error) {
	query := `SELECT ` + purchaserColumns + ` FROM purchasers WHERE id = $1`

	p, err := scanPurchaser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchaser{}, ErrNotFound
		}
		return Purchaser{}, fmt.Errorf("purchaser: get by id: %w", err)
	}
	return p, nil
}

func (r *PGRepository) ListByCreator(ctx context.Context, userID string) ([]Purchaser, error) {
	query := `SELECT ` + purchaserColumns + ` FROM purchasers WHERE created_by = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("purchaser: list by creator: %w", err)
	}
	defer rows.Close()

	var out []Purchaser
	for rows.Next() {
		p, err := scanPurchaser(rows)
		if err != nil {
			return nil, fmt.Errorf("purchaser: list by creator: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPurchaser(row pgx.Row) (Purchaser, error) {
	var p Purchaser
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.Address,
		&p.ContactNo,
		&p.Email,
		&p.AadharImage,
		&p.Photo,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
