package onboarding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"meditrap/auth"
	"meditrap/notify"
)

// ErrNotAdmin signals a decision attempt by a non-admin principal.
var ErrNotAdmin = errors.New("onboarding: admin role required")

// DecisionInput is the caller-facing shape for one admin decision.
type DecisionInput struct {
	TargetKind TargetKind
	TargetID   string
	Note       string
	IP         string
	UserAgent  string
}

// Service applies admin approve/decline decisions and notifies the account
// holder of the outcome. Notification is best effort.
type Service struct {
	repo   Repository
	mailer notify.Mailer
	logger *zap.Logger
}

func NewService(repo Repository, mailer notify.Mailer, logger *zap.Logger) *Service {
	return &Service{repo: repo, mailer: mailer, logger: logger}
}

// Approve moves the account to approved. Approving an already-approved
// account succeeds without changing it; a declined account may be approved,
// reversing the earlier decision. Every call leaves an audit record.
func (s *Service) Approve(ctx context.Context, caller auth.Principal, input DecisionInput) (Decision, error) {
	return s.decide(ctx, caller, input, ActionApprove)
}

// Decline moves the account to declined, with the same idempotency and
// audit behaviour as Approve.
func (s *Service) Decline(ctx context.Context, caller auth.Principal, input DecisionInput) (Decision, error) {
	return s.decide(ctx, caller, input, ActionDecline)
}

func (s *Service) decide(ctx context.Context, caller auth.Principal, input DecisionInput, action Action) (Decision, error) {
	if !caller.IsAdmin() {
		return Decision{}, ErrNotAdmin
	}

	decision, err := s.repo.Decide(ctx, DecideParams{
		TargetKind: input.TargetKind,
		TargetID:   input.TargetID,
		Action:     action,
		ActorID:    caller.ID,
		ActorEmail: caller.Email,
		Note:       input.Note,
		IP:         input.IP,
		UserAgent:  input.UserAgent,
	})
	if err != nil {
		return Decision{}, err
	}

	s.logger.Info("onboarding decision",
		zap.String("target_kind", string(decision.TargetKind)),
		zap.String("target_id", decision.TargetID),
		zap.String("action", string(action)),
		zap.String("actor", caller.Email),
		zap.Bool("changed", decision.Changed))

	if decision.Changed && decision.TargetEmail != "" {
		if err := s.mailer.Send(ctx, decisionMail(decision)); err != nil {
			s.logger.Warn("decision notification failed",
				zap.String("to", decision.TargetEmail),
				zap.Error(err))
		}
	}
	return decision, nil
}

// ListPending returns the admin review queue for one account kind.
func (s *Service) ListPending(ctx context.Context, caller auth.Principal, kind TargetKind, limit int) ([]PendingAccount, error) {
	if !caller.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return s.repo.ListPending(ctx, kind, limit)
}

// ListAudits returns the decision trail for one account, newest first.
func (s *Service) ListAudits(ctx context.Context, caller auth.Principal, kind TargetKind, targetID string, limit int) ([]AuditRecord, error) {
	if !caller.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return s.repo.ListAudits(ctx, kind, targetID, limit)
}

func decisionMail(d Decision) notify.Message {
	if d.Current == "approved" {
		return notify.Message{
			To:      d.TargetEmail,
			Subject: "Your account has been approved",
			Text:    fmt.Sprintf("Hello %s,\n\nYour account has been approved. You can now log in.", d.TargetName),
		}
	}
	return notify.Message{
		To:      d.TargetEmail,
		Subject: "Your account application was declined",
		Text:    fmt.Sprintf("Hello %s,\n\nYour account application was declined. Contact support if you believe this is a mistake.", d.TargetName),
	}
}
