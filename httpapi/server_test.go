package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"meditrap/auth"
	"meditrap/card"
	"meditrap/kv"
	"meditrap/notify"
	"meditrap/onboarding"
	"meditrap/purchaser"
	"meditrap/stockist"
)

// fakeAuthRepo holds one store owner, one admin, and one stockist.
type fakeAuthRepo struct {
	users     map[string]auth.User
	stockists map[string]auth.Credential
}

func (f *fakeAuthRepo) CreateUser(_ context.Context, params auth.CreateUserParams) (auth.User, error) {
	for _, u := range f.users {
		if u.Email == params.Email {
			return auth.User{}, auth.ErrDuplicateEmail
		}
	}
	u := auth.User{
		ID:          fmt.Sprintf("u-%d", len(f.users)+1),
		MedicalName: params.MedicalName,
		OwnerName:   params.OwnerName,
		Email:       params.Email,
		Role:        auth.RoleUser,
		Status:      "processing",
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeAuthRepo) GetUserByID(_ context.Context, id string) (auth.User, error) {
	u, ok := f.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAuthRepo) FindCredential(_ context.Context, kind auth.Kind, email string) (auth.Credential, error) {
	switch kind {
	case auth.KindUser:
		for _, u := range f.users {
			if u.Email == email {
				return auth.Credential{
					Kind: kind, ID: u.ID, Email: u.Email, Name: u.OwnerName,
					PasswordHash: u.PasswordHash, Status: u.Status, Role: u.Role,
				}, nil
			}
		}
	case auth.KindStockist:
		if c, ok := f.stockists[email]; ok {
			return c, nil
		}
	}
	return auth.Credential{}, auth.ErrUserNotFound
}

func (f *fakeAuthRepo) ResolveByEmail(ctx context.Context, email string) (auth.Credential, error) {
	if c, err := f.FindCredential(ctx, auth.KindUser, email); err == nil {
		return c, nil
	}
	return f.FindCredential(ctx, auth.KindStockist, email)
}

func (f *fakeAuthRepo) SaveResetToken(context.Context, auth.Kind, string, auth.ResetToken) error {
	return nil
}

func (f *fakeAuthRepo) GetResetToken(context.Context, auth.Kind, string) (auth.ResetToken, error) {
	return auth.ResetToken{}, nil
}

func (f *fakeAuthRepo) UpdatePassword(context.Context, auth.Kind, string, string) error {
	return nil
}

// fakeCardRepo serves a single request in a fixed state.
type fakeCardRepo struct {
	request card.Request
	voted   map[string]bool
}

func (f *fakeCardRepo) CreateRequest(_ context.Context, params card.CreateRequestParams) (card.Request, error) {
	f.request = card.Request{
		ID:          "req-1",
		RequesterID: params.RequesterID,
		Payload:     params.Payload,
		Status:      card.StatusPending,
		Threshold:   params.Threshold,
		CreatedAt:   time.Now(),
	}
	return f.request, nil
}

func (f *fakeCardRepo) GetRequest(_ context.Context, id string) (card.Request, error) {
	if id != f.request.ID {
		return card.Request{}, card.ErrRequestNotFound
	}
	return f.request, nil
}

func (f *fakeCardRepo) ApplyApproval(_ context.Context, requestID, stockistID string) (card.Outcome, error) {
	if requestID != f.request.ID {
		return card.Outcome{}, card.ErrRequestNotFound
	}
	if f.voted == nil {
		f.voted = make(map[string]bool)
	}
	dup := f.voted[stockistID]
	f.voted[stockistID] = true
	f.request.Approvals = len(f.voted)
	return card.Outcome{Request: f.request, Duplicate: dup}, nil
}

func (f *fakeCardRepo) RedeemToken(_ context.Context, token string) (card.Outcome, error) {
	if token != "good-token" {
		return card.Outcome{}, card.ErrInvalidToken
	}
	return f.ApplyApproval(context.Background(), f.request.ID, "st-token")
}

func (f *fakeCardRepo) ListPendingFor(context.Context, string, card.Cursor, int) ([]card.Request, error) {
	return []card.Request{f.request}, nil
}

func (f *fakeCardRepo) Cancel(context.Context, string) (card.Request, error) {
	f.request.Status = card.StatusRejected
	return f.request, nil
}

type fakeDirectory struct{}

func (fakeDirectory) ListByIDs(_ context.Context, ids []string) ([]stockist.Profile, error) {
	out := make([]stockist.Profile, len(ids))
	for i, id := range ids {
		out[i] = stockist.Profile{ID: id, Name: id, Email: id + "@example.com"}
	}
	return out, nil
}

type fakeOnboardingRepo struct{}

func (fakeOnboardingRepo) Decide(_ context.Context, params onboarding.DecideParams) (onboarding.Decision, error) {
	if params.TargetID == "ghost" {
		return onboarding.Decision{}, onboarding.ErrEntityNotFound
	}
	return onboarding.Decision{
		TargetKind: params.TargetKind,
		TargetID:   params.TargetID,
		Previous:   "processing",
		Current:    "approved",
		Changed:    true,
	}, nil
}

func (fakeOnboardingRepo) ListPending(context.Context, onboarding.TargetKind, int) ([]onboarding.PendingAccount, error) {
	return nil, nil
}

func (fakeOnboardingRepo) ListAudits(context.Context, onboarding.TargetKind, string, int) ([]onboarding.AuditRecord, error) {
	return nil, nil
}

type stockistRepoStub struct{}

func (stockistRepoStub) Create(context.Context, stockist.CreateParams) (stockist.Profile, error) {
	return stockist.Profile{ID: "st-new", Status: "processing"}, nil
}

func (stockistRepoStub) GetByID(_ context.Context, id string) (stockist.Profile, error) {
	return stockist.Profile{ID: id, Name: "Alpha", Email: "st@example.com", Status: "approved"}, nil
}

func (stockistRepoStub) List(context.Context, int) ([]stockist.Profile, error) {
	return nil, nil
}

func (stockistRepoStub) ListByIDs(context.Context, []string) ([]stockist.Profile, error) {
	return nil, nil
}

func (stockistRepoStub) CreateStaff(context.Context, stockist.CreateStaffParams) (stockist.Staff, error) {
	return stockist.Staff{}, nil
}

func (stockistRepoStub) ListStaff(context.Context, string) ([]stockist.Staff, error) {
	return nil, nil
}

func (stockistRepoStub) GetStaff(context.Context, string) (stockist.Staff, error) {
	return stockist.Staff{}, stockist.ErrStaffNotFound
}

func (stockistRepoStub) DeleteStaff(context.Context, string) error {
	return stockist.ErrStaffNotFound
}

type purchaserRepoStub struct{}

func (purchaserRepoStub) BeginTx(context.Context) (pgx.Tx, error) {
	return nil, errors.New("not implemented")
}

func (purchaserRepoStub) CreateInTx(context.Context, pgx.Tx, purchaser.CreateParams) (purchaser.Purchaser, error) {
	return purchaser.Purchaser{}, nil
}

func (purchaserRepoStub) MarkCardGrantedInTx(context.Context, pgx.Tx, string) error {
	return nil
}

func (purchaserRepoStub) GetByID(context.Context, string) (purchaser.Purchaser, error) {
	return purchaser.Purchaser{}, purchaser.ErrNotFound
}

func (purchaserRepoStub) ListByCreator(context.Context, string) ([]purchaser.Purchaser, error) {
	return nil, nil
}

type testHarness struct {
	server   *httptest.Server
	authRepo *fakeAuthRepo
	cardRepo *fakeCardRepo
	authSvc  *auth.Service
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	ownerHash, _ := bcrypt.GenerateFromPassword([]byte("owner-pass"), bcrypt.MinCost)
	authRepo := &fakeAuthRepo{
		users: map[string]auth.User{
			"u-admin": {ID: "u-admin", OwnerName: "Admin", Email: "admin@example.com", PasswordHash: string(ownerHash), Role: auth.RoleAdmin, Status: "approved"},
			"u-owner": {ID: "u-owner", OwnerName: "Owner", Email: "owner@example.com", PasswordHash: string(ownerHash), Role: auth.RoleUser, Status: "approved"},
		},
		stockists: map[string]auth.Credential{
			"st@example.com": {Kind: auth.KindStockist, ID: "st-1", Email: "st@example.com", Name: "Alpha", PasswordHash: string(ownerHash), Status: "approved", Role: auth.RoleStockist},
		},
	}

	nop := zap.NewNop()
	mailer := notify.MailerFunc(func(context.Context, notify.Message) error { return nil })
	authSvc := auth.NewService(authRepo, kv.NewMemoryStore(), "test-secret", time.Hour)
	cardRepo := &fakeCardRepo{}
	cardSvc := card.NewService(
		cardRepo,
		fakeDirectory{},
		card.GranterFunc(func(context.Context, string, card.Payload) error { return nil }),
		notify.NewBroadcaster(mailer, nop),
		nop,
		card.NewMetrics(prometheus.NewRegistry()),
		"https://front.example.com/approve/",
	)

	srv := NewServer(Deps{
		Auth:       authSvc,
		Reset:      auth.NewResetService(authRepo, mailer, nop, time.Minute, "https://front.example.com"),
		Stockists:  stockist.NewService(stockistRepoStub{}),
		Purchasers: purchaser.NewService(purchaserRepoStub{}, nop),
		Cards:      cardSvc,
		Onboarding: onboarding.NewService(fakeOnboardingRepo{}, mailer, nop),
		Logger:     nop,
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testHarness{server: ts, authRepo: authRepo, cardRepo: cardRepo, authSvc: authSvc}
}

func (h *testHarness) login(t *testing.T, email string, kind auth.Kind) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": "owner-pass", "role": string(kind)})
	resp, err := http.Post(h.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return env.Data.Token
}

func (h *testHarness) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/auth/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", resp.StatusCode)
	}

	token := h.login(t, "owner@example.com", auth.KindUser)
	resp = h.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("with token: status = %d, want 200", resp.StatusCode)
	}

	// Logout revokes the token.
	if resp := h.do(t, http.MethodPost, "/api/auth/logout", token, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status = %d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodGet, "/api/auth/me", token, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token: status = %d, want 401", resp.StatusCode)
	}
}

func TestAdminGate(t *testing.T) {
	h := newHarness(t)

	owner := h.login(t, "owner@example.com", auth.KindUser)
	resp := h.do(t, http.MethodPost, "/api/admin/users/u-owner/approve", owner, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin: status = %d, want 403", resp.StatusCode)
	}

	admin := h.login(t, "admin@example.com", auth.KindUser)
	resp = h.do(t, http.MethodPost, "/api/admin/users/u-owner/approve", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin approve: status = %d, want 200", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/api/admin/users/ghost/decline", admin, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing target: status = %d, want 404", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/api/admin/martians/x/approve", admin, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown kind: status = %d, want 404", resp.StatusCode)
	}
}

func TestCardFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	owner := h.login(t, "owner@example.com", auth.KindUser)

	resp := h.do(t, http.MethodPost, "/api/cards/requests", owner, map[string]any{
		"stockistIds": []string{"st-1", "st-2", "st-3"},
		"purchaser":   map[string]string{"fullName": "Asha Patel"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request: status = %d, want 201", resp.StatusCode)
	}

	// Too few stockists is a validation failure.
	resp = h.do(t, http.MethodPost, "/api/cards/requests", owner, map[string]any{
		"stockistIds": []string{"st-1"},
		"purchaser":   map[string]string{"fullName": "Asha Patel"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("too few stockists: status = %d, want 422", resp.StatusCode)
	}

	// A stockist cannot open a card request.
	st := h.login(t, "st@example.com", auth.KindStockist)
	resp = h.do(t, http.MethodPost, "/api/cards/requests", st, map[string]any{
		"stockistIds": []string{"st-1", "st-2", "st-3"},
		"purchaser":   map[string]string{"fullName": "X"},
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stockist create: status = %d, want 403", resp.StatusCode)
	}

	// Authenticated stockist approval.
	resp = h.do(t, http.MethodPost, "/api/cards/requests/req-1/approve", st, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status = %d, want 200", resp.StatusCode)
	}

	// Email-token approval, no auth header at all.
	resp = h.do(t, http.MethodGet, "/api/cards/approve/good-token", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token approve: status = %d, want 200", resp.StatusCode)
	}
	resp = h.do(t, http.MethodGet, "/api/cards/approve/bad-token", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad token: status = %d, want 400", resp.StatusCode)
	}
}

func TestResponseEnvelope(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Message != "ok" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
}
