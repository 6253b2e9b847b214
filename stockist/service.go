package stockist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"meditrap/auth"
)

var (
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("stockist: password must be at least 8 characters")
	// ErrStaffForbidden signals the caller may not manage the staff record.
	ErrStaffForbidden = errors.New("stockist: not authorized for this staff record")
	// ErrOnlyStockists signals a non-stockist attempted a stockist-only operation.
	ErrOnlyStockists = errors.New("stockist: only stockists can manage staff")
)

// Service exposes business-level stockist operations: the public directory
// used to pick purchasing-card verifiers, self-registration, and staff
// management scoped to the owning stockist.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new stockist account in the processing state; an admin
// decision moves it to approved or declined.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Profile, error) {
	if req.Name == "" {
		return Profile{}, fmt.Errorf("stockist: name is required")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return Profile{}, fmt.Errorf("stockist: email is required")
	}
	if len(req.Password) < 8 {
		return Profile{}, ErrWeakPassword
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, fmt.Errorf("stockist: hash password: %w", err)
	}

	return s.repo.Create(ctx, CreateParams{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		LicenseNumber: req.LicenseNumber,
		LicenseExpiry: req.LicenseExpiry,
		LicenseImage:  req.LicenseImage,
		PasswordHash:  string(passwordHash),
	})
}

// GetByID returns the stockist profile for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit stockist profiles, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Profile, error) {
	return s.repo.List(ctx, limit)
}

// ListByIDs resolves a set of stockist identifiers; missing IDs are absent
// from the result.
func (s *Service) ListByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	return s.repo.ListByIDs(ctx, ids)
}

// CreateStaff records a staff member owned by the calling stockist. Only
// stockists may create staff; the owner is always the caller.
func (s *Service) CreateStaff(ctx context.Context, caller auth.Principal, params CreateStaffParams) (Staff, error) {
	if caller.Kind != auth.KindStockist {
		return Staff{}, ErrOnlyStockists
	}
	if params.FullName == "" || params.Contact == "" {
		return Staff{}, fmt.Errorf("stockist: staff full name and contact are required")
	}
	params.StockistID = caller.ID
	return s.repo.CreateStaff(ctx, params)
}

// ListStaff returns the staff records for one stockist. Stockists may only
// list their own staff; admins may list anyone's.
func (s *Service) ListStaff(ctx context.Context, caller auth.Principal, stockistID string) ([]Staff, error) {
	if stockistID == "" || stockistID == "me" {
		stockistID = caller.ID
	}
	if !caller.IsAdmin() && caller.ID != stockistID {
		return nil, ErrStaffForbidden
	}
	return s.repo.ListStaff(ctx, stockistID)
}

// DeleteStaff removes a staff record. Allowed for the owning stockist or an admin.
func (s *Service) DeleteStaff(ctx context.Context, caller auth.Principal, staffID string) (Staff, error) {
	staff, err := s.repo.GetStaff(ctx, staffID)
	if err != nil {
		return Staff{}, err
	}
	if !caller.IsAdmin() && staff.StockistID != caller.ID {
		return Staff{}, ErrStaffForbidden
	}
	if err := s.repo.DeleteStaff(ctx, staffID); err != nil {
		return Staff{}, err
	}
	return staff, nil
}
