// Package card implements the purchasing-card approval engine: a store
// owner nominates at least three stockists, each stockist approves at most
// once, and crossing the threshold grants the card exactly once.
package card

import "time"

// Status is the lifecycle state of a purchasing-card request. Transitions
// are monotonic: pending may move to approved or rejected, terminal states
// never change.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Payload carries the purchaser profile to materialise when the request is
// granted. Stored verbatim on the request at creation time.
type Payload struct {
	FullName    string `json:"fullName"`
	Address     string `json:"address"`
	ContactNo   string `json:"contactNo"`
	Email       string `json:"email"`
	AadharImage string `json:"aadharImage"`
	Photo       string `json:"photo"`
}

// Request is a purchasing-card request awaiting stockist approvals.
type Request struct {
	ID             string
	RequesterID    string
	RequesterName  string
	RequesterEmail string
	Payload        Payload
	Status         Status
	Threshold      int
	Approvals      int
	ApprovedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Approval is one stockist's recorded approval of a request. At most one
// exists per (request, stockist) pair.
type Approval struct {
	ID         string
	RequestID  string
	StockistID string
	DecidedAt  time.Time
}

// RecipientToken pairs a candidate stockist with the single-use token minted
// for their email link. Tokens exist only server-side and in the mailed link.
type RecipientToken struct {
	StockistID string
	Token      string
}

// Decision is the outcome of recording one approval.
type Decision struct {
	Request   Request
	Duplicate bool
	// Granted is true only on the call that crossed the threshold.
	Granted bool
}

// CreateRequestInput is the caller-facing shape for opening a request.
// Requester identity comes from the authenticated principal, never the body.
type CreateRequestInput struct {
	RequesterID    string
	RequesterName  string
	RequesterEmail string
	StockistIDs    []string
	Payload        Payload
}
