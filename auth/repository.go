package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound signals that the account does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
	// ErrDuplicateLicense signals that the drug licence number is already registered.
	ErrDuplicateLicense = errors.New("auth: drug license number already exists")
)

// ResetToken holds the hashed reset credential stored on an account row.
type ResetToken struct {
	Hash    string
	Expires time.Time
}

// Repository handles data access for authentication across principal kinds.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	FindCredential(ctx context.Context, kind Kind, email string) (Credential, error)
	ResolveByEmail(ctx context.Context, email string) (Credential, error)
	SaveResetToken(ctx context.Context, kind Kind, accountID string, token ResetToken) error
	GetResetToken(ctx context.Context, kind Kind, accountID string) (ResetToken, error)
	UpdatePassword(ctx context.Context, kind Kind, accountID, passwordHash string) error
}

// CreateUserParams contains write parameters for creating store-owner accounts.
type CreateUserParams struct {
	MedicalName      string
	OwnerName        string
	Address          string
	Email            string
	ContactNo        string
	DrugLicenseNo    string
	DrugLicenseImage string
	PasswordHash     string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed auth repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateUser inserts a new store-owner account with a hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	const insertSQL = `
		INSERT INTO users (medical_name, owner_name, address, email, contact_no, drug_license_no, drug_license_image, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, medical_name, owner_name, address, email, contact_no, drug_license_no, drug_license_image,
		          password_hash, role, status::text, has_purchasing_card, purchasing_card_requested, created_at, updated_at
	`

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL,
		params.MedicalName,
		params.OwnerName,
		params.Address,
		params.Email,
		params.ContactNo,
		params.DrugLicenseNo,
		params.DrugLicenseImage,
		params.PasswordHash,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "drug_license") {
				return User{}, ErrDuplicateLicense
			}
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a store-owner account by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	const selectSQL = `
		SELECT id, medical_name, owner_name, address, email, contact_no, drug_license_no, drug_license_image,
		       password_hash, role, status::text, has_purchasing_card, purchasing_card_requested, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by id: %w", err)
	}

	return user, nil
}

// FindCredential loads the authentication material for one kind and email.
func (r *PGRepository) FindCredential(ctx context.Context, kind Kind, email string) (Credential, error) {
	query, role, err := credentialQuery(kind)
	if err != nil {
		return Credential{}, err
	}

	cred := Credential{Kind: kind, Role: role}
	var storedRole *string
	row := r.pool.QueryRow(ctx, query, email)
	if err := row.Scan(&cred.ID, &cred.Email, &cred.Name, &cred.PasswordHash, &cred.Status, &storedRole); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrUserNotFound
		}
		return Credential{}, fmt.Errorf("auth: find %s credential: %w", kind, err)
	}
	if storedRole != nil && *storedRole != "" {
		cred.Role = Role(*storedRole)
	}
	return cred, nil
}

func credentialQuery(kind Kind) (string, Role, error) {
	switch kind {
	case KindUser:
		return `
			SELECT id, email, owner_name, password_hash, status::text, role
			FROM users WHERE email = $1
		`, RoleUser, nil
	case KindStockist:
		return `
			SELECT id, email, name, password_hash, status::text, NULL
			FROM stockists WHERE email = $1
		`, RoleStockist, nil
	case KindPurchaser:
		return `
			SELECT id, email, full_name, COALESCE(password_hash, ''), 'approved', NULL
			FROM purchasers WHERE email = $1
		`, RolePurchaser, nil
	default:
		return "", "", fmt.Errorf("auth: unknown principal kind %q", kind)
	}
}

// ResolveByEmail finds the account owning an email address, checking the
// user table first and falling back to stockists. Used by the password-reset
// flow where no kind hint is available.
func (r *PGRepository) ResolveByEmail(ctx context.Context, email string) (Credential, error) {
	cred, err := r.FindCredential(ctx, KindUser, email)
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return Credential{}, err
	}
	return r.FindCredential(ctx, KindStockist, email)
}

// SaveResetToken stores the hashed reset token and its expiry on the account row.
func (r *PGRepository) SaveResetToken(ctx context.Context, kind Kind, accountID string, token ResetToken) error {
	table, err := resetTable(kind)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET reset_token_hash = $1, reset_token_expires = $2, updated_at = now()
		WHERE id = $3
	`, table), token.Hash, token.Expires, accountID)
	if err != nil {
		return fmt.Errorf("auth: save reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetResetToken loads the stored reset token for the account, if any.
func (r *PGRepository) GetResetToken(ctx context.Context, kind Kind, accountID string) (ResetToken, error) {
	table, err := resetTable(kind)
	if err != nil {
		return ResetToken{}, err
	}

	var (
		hash    *string
		expires *time.Time
	)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT reset_token_hash, reset_token_expires FROM %s WHERE id = $1
	`, table), accountID)
	if err := row.Scan(&hash, &expires); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResetToken{}, ErrUserNotFound
		}
		return ResetToken{}, fmt.Errorf("auth: get reset token: %w", err)
	}

	token := ResetToken{}
	if hash != nil {
		token.Hash = *hash
	}
	if expires != nil {
		token.Expires = *expires
	}
	return token, nil
}

// UpdatePassword replaces the password hash and clears any reset token.
func (r *PGRepository) UpdatePassword(ctx context.Context, kind Kind, accountID, passwordHash string) error {
	table, err := resetTable(kind)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET password_hash = $1, reset_token_hash = NULL, reset_token_expires = NULL, updated_at = now()
		WHERE id = $2
	`, table), passwordHash, accountID)
	if err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func resetTable(kind Kind) (string, error) {
	switch kind {
	case KindUser:
		return "users", nil
	case KindStockist:
		return "stockists", nil
	default:
		return "", fmt.Errorf("auth: kind %q has no reset flow", kind)
	}
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.MedicalName,
		&user.OwnerName,
		&user.Address,
		&user.Email,
		&user.ContactNo,
		&user.DrugLicenseNo,
		&user.DrugLicenseImage,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.HasPurchasingCard,
		&user.PurchasingCardRequested,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
