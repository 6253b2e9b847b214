package stockist

import "time"

// Profile mirrors the stockists table columns exposed to callers. The
// password hash stays out of this projection.
type Profile struct {
	ID            string
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	LicenseNumber string
	LicenseExpiry *time.Time
	LicenseImage  string
	Status        string
	ApprovedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RegisterRequest contains stockist self-registration data.
type RegisterRequest struct {
	Name          string     `json:"name"`
	ContactPerson string     `json:"contactPerson"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	LicenseNumber string     `json:"licenseNumber"`
	LicenseExpiry *time.Time `json:"licenseExpiry"`
	LicenseImage  string     `json:"licenseImage"`
	Password      string     `json:"password"`
}

// Staff is a staff member record owned by a stockist. Document references
// point into the blob store.
type Staff struct {
	ID             string
	StockistID     string
	FullName       string
	Contact        string
	Email          string
	Address        string
	Image          string
	ImagePublicID  string
	AadharCard     string
	AadharPublicID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateStaffParams enumerates the fields required to insert a staff record.
type CreateStaffParams struct {
	StockistID     string
	FullName       string
	Contact        string
	Email          string
	Address        string
	Image          string
	ImagePublicID  string
	AadharCard     string
	AadharPublicID string
}
