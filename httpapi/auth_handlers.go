package httpapi

import (
	"net/http"

	"meditrap/auth"
)

// userView strips server-side fields from an account before it crosses the
// wire.
type userView struct {
	ID                      string `json:"id"`
	MedicalName             string `json:"medicalName"`
	OwnerName               string `json:"ownerName"`
	Address                 string `json:"address"`
	Email                   string `json:"email"`
	ContactNo               string `json:"contactNo"`
	DrugLicenseNo           string `json:"drugLicenseNo"`
	Status                  string `json:"status"`
	HasPurchasingCard       bool   `json:"hasPurchasingCard"`
	PurchasingCardRequested bool   `json:"purchasingCardRequested"`
}

func toUserView(u *auth.User) userView {
	return userView{
		ID:                      u.ID,
		MedicalName:             u.MedicalName,
		OwnerName:               u.OwnerName,
		Address:                 u.Address,
		Email:                   u.Email,
		ContactNo:               u.ContactNo,
		DrugLicenseNo:           u.DrugLicenseNo,
		Status:                  u.Status,
		HasPurchasingCard:       u.HasPurchasingCard,
		PurchasingCardRequested: u.PurchasingCardRequested,
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respond(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	user, err := s.auth.Signup(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "account created, pending admin approval", toUserView(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respond(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	result, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "logged in", map[string]any{
		"token": result.Token,
		"user": map[string]any{
			"id":    result.Principal.ID,
			"name":  result.Principal.Name,
			"email": result.Principal.Email,
			"role":  result.Principal.Role,
			"kind":  result.Principal.Kind,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "logged out", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	if p.Kind == auth.KindUser {
		user, err := s.auth.GetUserByID(r.Context(), p.ID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, "", toUserView(user))
		return
	}
	s.respond(w, http.StatusOK, "", map[string]any{
		"id":    p.ID,
		"name":  p.Name,
		"email": p.Email,
		"role":  p.Role,
		"kind":  p.Kind,
	})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respond(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if err := s.reset.ForgotPassword(r.Context(), req.Email); err != nil {
		s.respondError(w, r, err)
		return
	}
	// Identical response whether or not the account exists.
	s.respond(w, http.StatusOK, "if the account exists, a reset link has been sent", nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respond(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if err := s.reset.ResetPassword(r.Context(), req.Email, req.Token, req.Password); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "password updated", nil)
}
