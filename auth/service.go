package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"meditrap/kv"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrAccountUnderReview signals the account has not been approved by an admin yet.
	ErrAccountUnderReview = errors.New("auth: account is under admin review")
	// ErrAccountDeclined signals the account registration was declined by an admin.
	ErrAccountDeclined = errors.New("auth: account registration was declined")
	// ErrTokenRevoked signals the token was invalidated by logout.
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// Service handles authentication business logic for all principal kinds.
type Service struct {
	repo      Repository
	blacklist kv.Store
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewService creates a new authentication service. The blacklist store holds
// logged-out tokens until their natural expiry.
func NewService(repo Repository, blacklist kv.Store, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &Service{
		repo:      repo,
		blacklist: blacklist,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// Signup registers a new medical-store owner account. The account starts in
// the processing state and must be approved by an admin before it can log in
// to gated features.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DrugLicenseNo = strings.ToUpper(strings.TrimSpace(req.DrugLicenseNo))

	if req.MedicalName == "" || req.OwnerName == "" || req.Address == "" ||
		req.Email == "" || req.ContactNo == "" || req.DrugLicenseNo == "" {
		return nil, fmt.Errorf("auth: all signup fields are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		MedicalName:      req.MedicalName,
		OwnerName:        req.OwnerName,
		Address:          req.Address,
		Email:            req.Email,
		ContactNo:        req.ContactNo,
		DrugLicenseNo:    req.DrugLicenseNo,
		DrugLicenseImage: req.DrugLicenseImage,
		PasswordHash:     string(passwordHash),
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates an account of the requested kind and returns a JWT.
// Stockists may only log in once an admin has approved their onboarding.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if req.Email == "" || req.Password == "" || req.Kind == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	cred, err := s.repo.FindCredential(ctx, req.Kind, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if cred.PasswordHash == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if req.Kind == KindStockist {
		switch cred.Status {
		case "approved":
		case "declined":
			return LoginResult{}, ErrAccountDeclined
		default:
			return LoginResult{}, ErrAccountUnderReview
		}
	}

	principal := Principal{
		Kind:  cred.Kind,
		ID:    cred.ID,
		Email: cred.Email,
		Name:  cred.Name,
		Role:  cred.Role,
	}

	token, err := s.generateToken(principal)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{Token: token, Principal: principal}, nil
}

// GetUserByID retrieves store-owner account information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyToken validates a JWT, rejects blacklisted tokens, and returns the
// principal it was issued for.
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, fmt.Errorf("auth: invalid token")
	}

	if s.blacklist != nil {
		if _, err := s.blacklist.Get(ctx, blacklistKey(tokenString)); err == nil {
			return Principal{}, ErrTokenRevoked
		} else if !errors.Is(err, kv.ErrNotFound) {
			return Principal{}, fmt.Errorf("auth: check blacklist: %w", err)
		}
	}

	principal, err := principalFromClaims(claims)
	if err != nil {
		return Principal{}, err
	}
	return principal, nil
}

// Logout blacklists the token until its natural expiry so it can no longer
// be presented.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	if s.blacklist == nil {
		return nil
	}

	ttl := s.tokenTTL
	if token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}); err == nil {
		if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
			if remaining := exp.Time.Sub(s.now()); remaining > 0 {
				ttl = remaining
			}
		}
	}

	if err := s.blacklist.Set(ctx, blacklistKey(tokenString), "1", ttl); err != nil {
		return fmt.Errorf("auth: blacklist token: %w", err)
	}
	return nil
}

func (s *Service) generateToken(p Principal) (string, error) {
	now := s.now()
	// jti keeps tokens issued within the same second distinct, so revoking
	// one session never revokes another.
	claims := jwt.MapClaims{
		"jti":     uuid.NewString(),
		"user_id": p.ID,
		"email":   p.Email,
		"name":    p.Name,
		"kind":    string(p.Kind),
		"role":    string(p.Role),
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func principalFromClaims(claims jwt.MapClaims) (Principal, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return Principal{}, fmt.Errorf("auth: invalid user_id in token")
	}
	kindStr, ok := claims["kind"].(string)
	if !ok {
		return Principal{}, fmt.Errorf("auth: invalid kind in token")
	}
	kind := Kind(kindStr)
	switch kind {
	case KindUser, KindStockist, KindPurchaser:
	default:
		return Principal{}, fmt.Errorf("auth: invalid kind %q in token", kindStr)
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return Principal{}, fmt.Errorf("auth: invalid role in token")
	}
	role := Role(roleStr)
	switch role {
	case RoleUser, RoleAdmin, RoleStockist, RolePurchaser:
	default:
		return Principal{}, fmt.Errorf("auth: invalid role %q in token", roleStr)
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return Principal{Kind: kind, ID: id, Email: email, Name: name, Role: role}, nil
}

func bcryptHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func blacklistKey(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return "blacklist:token:" + hex.EncodeToString(sum[:])
}
