package purchaser

import "time"

// Purchaser is a cardholder profile created when a purchasing-card request
// reaches its approval threshold.
type Purchaser struct {
	ID          string
	FullName    string
	Address     string
	ContactNo   string
	Email       string
	AadharImage string
	Photo       string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateParams carries the profile fields materialised from an approved
// card request's payload.
type CreateParams struct {
	FullName    string
	Address     string
	ContactNo   string
	Email       string
	AadharImage string
	Photo       string
	CreatedBy   string
}
