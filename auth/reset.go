package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"meditrap/notify"
)

var (
	// ErrResetTokenInvalid signals a reset token that does not match the stored hash.
	ErrResetTokenInvalid = errors.New("auth: invalid reset token")
	// ErrResetTokenExpired signals a reset token past its expiry window.
	ErrResetTokenExpired = errors.New("auth: reset token expired")
)

// ResetService implements the forgot/reset password flow for store owners
// and stockists. Tokens are stored hashed and expire after the configured
// window; reset emails are delivered best-effort.
type ResetService struct {
	repo        Repository
	mailer      notify.Mailer
	logger      *zap.Logger
	resetTTL    time.Duration
	frontendURL string
	now         func() time.Time
	tokenGen    func() (string, error)
}

func NewResetService(repo Repository, mailer notify.Mailer, logger *zap.Logger, resetTTL time.Duration, frontendURL string) *ResetService {
	if resetTTL <= 0 {
		resetTTL = 15 * time.Minute
	}
	return &ResetService{
		repo:        repo,
		mailer:      mailer,
		logger:      logger,
		resetTTL:    resetTTL,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
		tokenGen:    generateResetToken,
	}
}

// ForgotPassword issues a reset token for the account owning email and mails
// a reset link. It succeeds whether or not the account exists so callers
// cannot probe for registered addresses.
func (s *ResetService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("auth: email is required")
	}

	cred, err := s.repo.ResolveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := s.tokenGen()
	if err != nil {
		return fmt.Errorf("auth: generate reset token: %w", err)
	}

	expires := s.now().Add(s.resetTTL)
	if err := s.repo.SaveResetToken(ctx, cred.Kind, cred.ID, ResetToken{
		Hash:    hashResetToken(token),
		Expires: expires,
	}); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s&email=%s",
		s.frontendURL, token, url.QueryEscape(cred.Email))

	msg := notify.Message{
		To:      cred.Email,
		Subject: "Password reset request",
		Text:    fmt.Sprintf("Reset your password using this link (valid for %d minutes): %s", int(s.resetTTL.Minutes()), resetURL),
		HTML: fmt.Sprintf(`<p>You (or someone else) requested a password reset.</p>
<p>Click this link to reset your password. It expires in %d minutes:</p>
<p><a href="%s">%s</a></p>`, int(s.resetTTL.Minutes()), resetURL, resetURL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		// Delivery failure must not reveal account existence to the caller.
		s.logger.Warn("reset email delivery failed", zap.String("email", cred.Email), zap.Error(err))
	}

	return nil
}

// ResetPassword verifies the token against the stored hash in constant time
// and replaces the account password. The stored token is cleared on success.
func (s *ResetService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if email == "" || token == "" || newPassword == "" {
		return fmt.Errorf("auth: email, token and new password are required")
	}
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}

	cred, err := s.repo.ResolveByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}

	stored, err := s.repo.GetResetToken(ctx, cred.Kind, cred.ID)
	if err != nil {
		return err
	}
	if stored.Hash == "" {
		return ErrResetTokenInvalid
	}
	if stored.Expires.Before(s.now()) {
		return ErrResetTokenExpired
	}

	supplied := hashResetToken(token)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(stored.Hash)) != 1 {
		return ErrResetTokenInvalid
	}

	passwordHash, err := bcryptHash(newPassword)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	return s.repo.UpdatePassword(ctx, cred.Kind, cred.ID, passwordHash)
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
