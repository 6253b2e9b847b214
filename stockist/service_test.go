package stockist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"meditrap/auth"
)

type fakeRepository struct {
	profiles map[string]Profile
	staff    map[string]Staff
	hashes   map[string]string
	nextID   int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		profiles: make(map[string]Profile),
		staff:    make(map[string]Staff),
		hashes:   make(map[string]string),
	}
}

func (f *fakeRepository) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeRepository) Create(_ context.Context, params CreateParams) (Profile, error) {
	for _, p := range f.profiles {
		if p.Email == params.Email {
			return Profile{}, ErrDuplicateEmail
		}
	}
	p := Profile{
		ID:            f.id(),
		Name:          params.Name,
		ContactPerson: params.ContactPerson,
		Email:         params.Email,
		Phone:         params.Phone,
		Address:       params.Address,
		LicenseNumber: params.LicenseNumber,
		LicenseExpiry: params.LicenseExpiry,
		LicenseImage:  params.LicenseImage,
		Status:        "processing",
	}
	f.profiles[p.ID] = p
	f.hashes[p.ID] = params.PasswordHash
	return p, nil
}

func (f *fakeRepository) GetByID(_ context.Context, id string) (Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepository) List(_ context.Context, limit int) ([]Profile, error) {
	out := make([]Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepository) ListByIDs(_ context.Context, ids []string) ([]Profile, error) {
	var out []Profile
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepository) CreateStaff(_ context.Context, params CreateStaffParams) (Staff, error) {
	st := Staff{
		ID:         f.id(),
		StockistID: params.StockistID,
		FullName:   params.FullName,
		Contact:    params.Contact,
		Email:      params.Email,
		Address:    params.Address,
	}
	f.staff[st.ID] = st
	return st, nil
}

func (f *fakeRepository) ListStaff(_ context.Context, stockistID string) ([]Staff, error) {
	var out []Staff
	for _, st := range f.staff {
		if st.StockistID == stockistID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeRepository) GetStaff(_ context.Context, staffID string) (Staff, error) {
	st, ok := f.staff[staffID]
	if !ok {
		return Staff{}, ErrStaffNotFound
	}
	return st, nil
}

func (f *fakeRepository) DeleteStaff(_ context.Context, staffID string) error {
	if _, ok := f.staff[staffID]; !ok {
		return ErrStaffNotFound
	}
	delete(f.staff, staffID)
	return nil
}

func TestRegister(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	profile, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Medico Distributors",
		Email:    "  OWNER@Medico.IN ",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile.Email != "owner@medico.in" {
		t.Fatalf("email not normalized: %q", profile.Email)
	}
	if profile.Status != "processing" {
		t.Fatalf("expected processing status, got %q", profile.Status)
	}

	hash := repo.hashes[profile.ID]
	if hash == "s3cret-pass" {
		t.Fatal("password stored in cleartext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newFakeRepository())

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.c", Password: "long-enough"})
	if err == nil {
		t.Fatal("expected error for missing name")
	}

	_, err = svc.Register(context.Background(), RegisterRequest{Name: "X", Email: "a@b.c", Password: "short"})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeRepository())
	req := RegisterRequest{Name: "X", Email: "dup@medico.in", Password: "long-enough"}

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestStaffOwnership(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	owner := auth.Principal{Kind: auth.KindStockist, ID: "st-1", Role: auth.RoleStockist}
	other := auth.Principal{Kind: auth.KindStockist, ID: "st-2", Role: auth.RoleStockist}
	admin := auth.Principal{Kind: auth.KindUser, ID: "adm-1", Role: auth.RoleAdmin}

	st, err := svc.CreateStaff(ctx, owner, CreateStaffParams{FullName: "Ravi", Contact: "9999"})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if st.StockistID != owner.ID {
		t.Fatalf("staff owner = %q, want %q", st.StockistID, owner.ID)
	}

	if _, err := svc.CreateStaff(ctx, admin, CreateStaffParams{FullName: "N", Contact: "1"}); !errors.Is(err, ErrOnlyStockists) {
		t.Fatalf("expected ErrOnlyStockists for admin, got %v", err)
	}

	if _, err := svc.ListStaff(ctx, other, owner.ID); !errors.Is(err, ErrStaffForbidden) {
		t.Fatalf("expected ErrStaffForbidden listing another stockist's staff, got %v", err)
	}
	listed, err := svc.ListStaff(ctx, admin, owner.ID)
	if err != nil || len(listed) != 1 {
		t.Fatalf("admin list: %v (n=%d)", err, len(listed))
	}

	if _, err := svc.DeleteStaff(ctx, other, st.ID); !errors.Is(err, ErrStaffForbidden) {
		t.Fatalf("expected ErrStaffForbidden deleting another stockist's staff, got %v", err)
	}
	if _, err := svc.DeleteStaff(ctx, owner, st.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := repo.GetStaff(ctx, st.ID); !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("staff not deleted: %v", err)
	}
}
