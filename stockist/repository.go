package stockist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no stockist row exists for the identifier.
	ErrNotFound = errors.New("stockist: not found")
	// ErrDuplicateEmail signals the email is already registered.
	ErrDuplicateEmail = errors.New("stockist: email already exists")
	// ErrStaffNotFound is returned when no staff row exists for the identifier.
	ErrStaffNotFound = errors.New("stockist: staff not found")
)

// Repository handles data access for stockist profiles and their staff.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	List(ctx context.Context, limit int) ([]Profile, error)
	ListByIDs(ctx context.Context, ids []string) ([]Profile, error)
	CreateStaff(ctx context.Context, params CreateStaffParams) (Staff, error)
	ListStaff(ctx context.Context, stockistID string) ([]Staff, error)
	GetStaff(ctx context.Context, staffID string) (Staff, error)
	DeleteStaff(ctx context.Context, staffID string) error
}

// CreateParams contains write parameters for registering stockists.
type CreateParams struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	LicenseNumber string
	LicenseExpiry *time.Time
	LicenseImage  string
	PasswordHash  string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `
	id, name, contact_person, email, phone, address, license_number,
	license_expiry, license_image, status::text, approved_at, created_at, updated_at
`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Profile, error) {
	query := `
		INSERT INTO stockists (name, contact_person, email, phone, address, license_number, license_expiry, license_image, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + profileColumns

	profile, err := scanProfile(r.pool.QueryRow(ctx, query,
		params.Name,
		params.ContactPerson,
		params.Email,
		params.Phone,
		params.Address,
		params.LicenseNumber,
		params.LicenseExpiry,
		params.LicenseImage,
		params.PasswordHash,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, ErrDuplicateEmail
		}
		return Profile{}, fmt.Errorf("stockist: create: %w", err)
	}
	return profile, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM stockists WHERE id = $1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("stockist: get by id: %w", err)
	}
	return profile, nil
}

func (r *PGRepository) List(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + profileColumns + ` FROM stockists ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("stockist: list: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

// ListByIDs returns profiles for the given identifiers; missing IDs are
// simply absent from the result.
func (r *PGRepository) ListByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + profileColumns + ` FROM stockists WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("stockist: list by ids: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

func (r *PGRepository) CreateStaff(ctx context.Context, params CreateStaffParams) (Staff, error) {
	const query = `
		INSERT INTO staff (stockist_id, full_name, contact, email, address, image, image_public_id, aadhar_card, aadhar_public_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, stockist_id, full_name, contact, email, address, image, image_public_id, aadhar_card, aadhar_public_id, created_at, updated_at
	`

	staff, err := scanStaff(r.pool.QueryRow(ctx, query,
		params.StockistID,
		params.FullName,
		params.Contact,
		params.Email,
		params.Address,
		params.Image,
		params.ImagePublicID,
		params.AadharCard,
		params.AadharPublicID,
	))
	if err != nil {
		return Staff{}, fmt.Errorf("stockist: create staff: %w", err)
	}
	return staff, nil
}

func (r *PGRepository) ListStaff(ctx context.Context, stockistID string) ([]Staff, error) {
	const query = `
		SELECT id, stockist_id, full_name, contact, email, address, image, image_public_id, aadhar_card, aadhar_public_id, created_at, updated_at
		FROM staff
		WHERE stockist_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, stockistID)
	if err != nil {
		return nil, fmt.Errorf("stockist: list staff: %w", err)
	}
	defer rows.Close()

	out := make([]Staff, 0, 8)
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("stockist: scan staff: %w", err)
		}
		out = append(out, staff)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stockist: iterate staff: %w", err)
	}
	return out, nil
}

func (r *PGRepository) GetStaff(ctx context.Context, staffID string) (Staff, error) {
	const query = `
		SELECT id, stockist_id, full_name, contact, email, address, image, image_public_id, aadhar_card, aadhar_public_id, created_at, updated_at
		FROM staff
		WHERE id = $1
	`

	staff, err := scanStaff(r.pool.QueryRow(ctx, query, staffID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Staff{}, ErrStaffNotFound
		}
		return Staff{}, fmt.Errorf("stockist: get staff: %w", err)
	}
	return staff, nil
}

func (r *PGRepository) DeleteStaff(ctx context.Context, staffID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM staff WHERE id = $1`, staffID)
	if err != nil {
		return fmt.Errorf("stockist: delete staff: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaffNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.ContactPerson,
		&p.Email,
		&p.Phone,
		&p.Address,
		&p.LicenseNumber,
		&p.LicenseExpiry,
		&p.LicenseImage,
		&p.Status,
		&p.ApprovedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func collectProfiles(rows pgx.Rows) ([]Profile, error) {
	out := make([]Profile, 0, 8)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("stockist: scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stockist: iterate profiles: %w", err)
	}
	return out, nil
}

func scanStaff(row pgx.Row) (Staff, error) {
	var s Staff
	err := row.Scan(
		&s.ID,
		&s.StockistID,
		&s.FullName,
		&s.Contact,
		&s.Email,
		&s.Address,
		&s.Image,
		&s.ImagePublicID,
		&s.AadharCard,
		&s.AadharPublicID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return Staff{}, err
	}
	return s, nil
}
