package auth

import "time"

// Kind identifies which principal table an account lives in. It is resolved
// once at authentication time and carried through the call chain instead of
// probing each table per request.
type Kind string

const (
	KindUser      Kind = "user"      // medical-store owner
	KindStockist  Kind = "stockist"  // distributor / verifier
	KindPurchaser Kind = "purchaser" // purchasing-card holder
)

// Role names the capability level encoded in a token.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleStockist  Role = "stockist"
	RolePurchaser Role = "purchaser"
)

// Principal is the resolved identity attached to an authenticated call.
type Principal struct {
	Kind  Kind
	ID    string
	Email string
	Name  string
	Role  Role
}

// IsAdmin reports whether the principal carries the admin capability.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// User is the domain representation of a medical-store owner account.
// It mirrors the users table and carries no JSON annotations so it can be
// reused by different presentation layers.
type User struct {
	ID                      string
	MedicalName             string
	OwnerName               string
	Address                 string
	Email                   string
	ContactNo               string
	DrugLicenseNo           string
	DrugLicenseImage        string
	PasswordHash            string
	Role                    Role
	Status                  string
	HasPurchasingCard       bool
	PurchasingCardRequested bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Credential is the subset of an account needed to authenticate it,
// tagged with the kind it was resolved from.
type Credential struct {
	Kind         Kind
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Status       string
	Role         Role
}

// SignupRequest contains store-owner registration data supplied by callers.
type SignupRequest struct {
	MedicalName      string `json:"medicalName"`
	OwnerName        string `json:"ownerName"`
	Address          string `json:"address"`
	Email            string `json:"email"`
	ContactNo        string `json:"contactNo"`
	DrugLicenseNo    string `json:"drugLicenseNo"`
	DrugLicenseImage string `json:"drugLicenseImage"`
	Password         string `json:"password"`
}

// LoginRequest contains login credentials scoped to a principal kind.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Kind     Kind   `json:"role"`
}

// LoginResult bundles the token and resolved principal after a successful login.
type LoginResult struct {
	Token     string
	Principal Principal
}
