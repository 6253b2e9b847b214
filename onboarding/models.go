// Package onboarding implements the admin decision flow for pending store
// owner and stockist accounts. Every decision writes an audit record in the
// same transaction as the status change, including repeats of a decision
// already in effect.
package onboarding

import "time"

// TargetKind names the account table a decision applies to.
type TargetKind string

const (
	TargetUser     TargetKind = "user"
	TargetStockist TargetKind = "stockist"
)

// Action is an admin decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
)

// AuditRecord is one written-once trail entry for an admin decision. The
// engines never read these back.
type AuditRecord struct {
	ID         string
	ActorID    string
	ActorEmail string
	TargetKind TargetKind
	TargetID   string
	Action     Action
	Note       string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}

// Decision reports the effect of one admin call.
type Decision struct {
	TargetKind  TargetKind
	TargetID    string
	TargetEmail string
	TargetName  string
	Previous    string
	Current     string
	// Changed is false when the account was already in the requested state.
	Changed bool
}

// PendingAccount is a row on the admin review queue.
type PendingAccount struct {
	ID        string
	Name      string
	Email     string
	Status    string
	CreatedAt time.Time
}
