package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"meditrap/notify"
)

func newResetFixture(t *testing.T) (*fakeRepository, *ResetService, *[]notify.Message) {
	t.Helper()

	repo := newFakeRepository()
	var sent []notify.Message
	mailer := notify.MailerFunc(func(_ context.Context, msg notify.Message) error {
		sent = append(sent, msg)
		return nil
	})
	svc := NewResetService(repo, mailer, zap.NewNop(), 15*time.Minute, "https://app.example.com/")
	return repo, svc, &sent
}

func signupOwner(t *testing.T, repo *fakeRepository) User {
	t.Helper()
	authSvc := NewService(repo, nil, "test-secret", 0)
	user, err := authSvc.Signup(context.Background(), SignupRequest{
		MedicalName: "Store", OwnerName: "Owner", Address: "Addr",
		Email: "owner@example.com", ContactNo: "123", DrugLicenseNo: "DL-1", Password: "originalpass",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return *user
}

func TestResetService_RoundTrip(t *testing.T) {
	repo, svc, sent := newResetFixture(t)
	user := signupOwner(t, repo)
	ctx := context.Background()

	var issued string
	svc.tokenGen = func() (string, error) {
		issued = "fixed-reset-token"
		return issued, nil
	}

	if err := svc.ForgotPassword(ctx, user.Email); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected 1 reset email, got %d", len(*sent))
	}
	if !strings.Contains((*sent)[0].Text, issued) {
		t.Fatalf("reset email does not carry the token")
	}

	stored := repo.resetTokens["user/"+user.ID]
	if stored.Hash == issued {
		t.Fatal("reset token must be stored hashed, not in the clear")
	}

	if err := svc.ResetPassword(ctx, user.Email, issued, "brandnewpass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	// Token is single-use.
	if err := svc.ResetPassword(ctx, user.Email, issued, "anotherpass1"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid on reuse, got %v", err)
	}

	authSvc := NewService(repo, nil, "test-secret", 0)
	if _, err := authSvc.Login(ctx, LoginRequest{Email: user.Email, Password: "brandnewpass", Kind: KindUser}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestResetService_Expiry(t *testing.T) {
	repo, svc, _ := newResetFixture(t)
	user := signupOwner(t, repo)
	ctx := context.Background()

	svc.tokenGen = func() (string, error) { return "expired-token", nil }
	if err := svc.ForgotPassword(ctx, user.Email); err != nil {
		t.Fatalf("forgot password: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	if err := svc.ResetPassword(ctx, user.Email, "expired-token", "brandnewpass"); !errors.Is(err, ErrResetTokenExpired) {
		t.Fatalf("expected ErrResetTokenExpired, got %v", err)
	}
}

func TestResetService_WrongToken(t *testing.T) {
	repo, svc, _ := newResetFixture(t)
	user := signupOwner(t, repo)
	ctx := context.Background()

	svc.tokenGen = func() (string, error) { return "real-token", nil }
	if err := svc.ForgotPassword(ctx, user.Email); err != nil {
		t.Fatalf("forgot password: %v", err)
	}

	if err := svc.ResetPassword(ctx, user.Email, "guessed-token", "brandnewpass"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
	}
}

func TestResetService_UnknownEmailIsSilent(t *testing.T) {
	_, svc, sent := newResetFixture(t)

	if err := svc.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("expected silent success for unknown email, got %v", err)
	}
	if len(*sent) != 0 {
		t.Fatalf("expected no email for unknown account, got %d", len(*sent))
	}
}
