package onboarding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"meditrap/auth"
	"meditrap/notify"
)

type account struct {
	email  string
	name   string
	status string
}

type fakeRepo struct {
	accounts map[TargetKind]map[string]*account
	audits   []AuditRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: map[TargetKind]map[string]*account{
		TargetUser:     {},
		TargetStockist: {},
	}}
}

func (f *fakeRepo) Decide(_ context.Context, params DecideParams) (Decision, error) {
	kind, ok := f.accounts[params.TargetKind]
	if !ok {
		return Decision{}, ErrUnknownKind
	}
	acc, ok := kind[params.TargetID]
	if !ok {
		return Decision{}, ErrEntityNotFound
	}

	next := "approved"
	if params.Action == ActionDecline {
		next = "declined"
	}
	previous := acc.status
	changed := previous != next
	acc.status = next

	f.audits = append(f.audits, AuditRecord{
		ActorEmail: params.ActorEmail,
		TargetKind: params.TargetKind,
		TargetID:   params.TargetID,
		Action:     params.Action,
		IP:         params.IP,
		UserAgent:  params.UserAgent,
	})

	return Decision{
		TargetKind:  params.TargetKind,
		TargetID:    params.TargetID,
		TargetEmail: acc.email,
		TargetName:  acc.name,
		Previous:    previous,
		Current:     next,
		Changed:     changed,
	}, nil
}

func (f *fakeRepo) ListPending(_ context.Context, kind TargetKind, _ int) ([]PendingAccount, error) {
	var out []PendingAccount
	for id, acc := range f.accounts[kind] {
		if acc.status == "processing" {
			out = append(out, PendingAccount{ID: id, Name: acc.name, Email: acc.email, Status: acc.status})
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAudits(_ context.Context, kind TargetKind, targetID string, _ int) ([]AuditRecord, error) {
	var out []AuditRecord
	for _, rec := range f.audits {
		if rec.TargetKind == kind && rec.TargetID == targetID {
			out = append(out, rec)
		}
	}
	return out, nil
}

var admin = auth.Principal{Kind: auth.KindUser, ID: "adm-1", Email: "admin@example.com", Role: auth.RoleAdmin}

func newTestService(repo *fakeRepo) (*Service, *[]notify.Message) {
	sent := []notify.Message{}
	mailer := notify.MailerFunc(func(_ context.Context, msg notify.Message) error {
		sent = append(sent, msg)
		return nil
	})
	return NewService(repo, mailer, zap.NewNop()), &sent
}

func TestApproveAndAudit(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts[TargetStockist]["st-1"] = &account{email: "st@example.com", name: "Alpha", status: "processing"}
	svc, sent := newTestService(repo)
	ctx := context.Background()

	d, err := svc.Approve(ctx, admin, DecisionInput{TargetKind: TargetStockist, TargetID: "st-1", IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !d.Changed || d.Current != "approved" || d.Previous != "processing" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if len(*sent) != 1 || (*sent)[0].To != "st@example.com" {
		t.Fatalf("expected approval mail, got %v", *sent)
	}
	if len(repo.audits) != 1 || repo.audits[0].IP != "10.0.0.1" {
		t.Fatalf("audit not written: %+v", repo.audits)
	}
}

func TestRepeatDecisionIsIdempotentButAudited(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts[TargetUser]["u-1"] = &account{email: "u@example.com", status: "processing"}
	svc, sent := newTestService(repo)
	ctx := context.Background()
	input := DecisionInput{TargetKind: TargetUser, TargetID: "u-1"}

	if _, err := svc.Approve(ctx, admin, input); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	d, err := svc.Approve(ctx, admin, input)
	if err != nil {
		t.Fatalf("repeat approve must succeed: %v", err)
	}
	if d.Changed {
		t.Fatal("repeat approve reported a change")
	}
	// A fresh audit record per call, but only one notification.
	if len(repo.audits) != 2 {
		t.Fatalf("audits = %d, want 2", len(repo.audits))
	}
	if len(*sent) != 1 {
		t.Fatalf("mails = %d, want 1", len(*sent))
	}
}

func TestDeclineThenApproveReverses(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts[TargetStockist]["st-1"] = &account{email: "st@example.com", status: "processing"}
	svc, _ := newTestService(repo)
	ctx := context.Background()
	input := DecisionInput{TargetKind: TargetStockist, TargetID: "st-1"}

	if _, err := svc.Decline(ctx, admin, input); err != nil {
		t.Fatalf("decline: %v", err)
	}
	d, err := svc.Approve(ctx, admin, input)
	if err != nil {
		t.Fatalf("approve after decline: %v", err)
	}
	if !d.Changed || d.Previous != "declined" || d.Current != "approved" {
		t.Fatalf("reversal not applied: %+v", d)
	}
}

func TestDecideRequiresAdmin(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts[TargetUser]["u-1"] = &account{status: "processing"}
	svc, _ := newTestService(repo)

	user := auth.Principal{Kind: auth.KindUser, ID: "u-2", Role: auth.RoleUser}
	_, err := svc.Approve(context.Background(), user, DecisionInput{TargetKind: TargetUser, TargetID: "u-1"})
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestDecideMissingEntity(t *testing.T) {
	svc, _ := newTestService(newFakeRepo())

	_, err := svc.Decline(context.Background(), admin, DecisionInput{TargetKind: TargetUser, TargetID: "ghost"})
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}
