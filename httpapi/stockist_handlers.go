package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"meditrap/stockist"
)

type stockistView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ContactPerson string     `json:"contactPerson,omitempty"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	Address       string     `json:"address,omitempty"`
	LicenseNumber string     `json:"licenseNumber,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	LicenseExpiry *time.Time `json:"licenseExpiry,omitempty"`
}

func toStockistView(p stockist.Profile) stockistView {
	return stockistView{
		ID:            p.ID,
		Name:          p.Name,
		ContactPerson: p.ContactPerson,
		Email:         p.Email,
		Phone:         p.Phone,
		Address:       p.Address,
		LicenseNumber: p.LicenseNumber,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		LicenseExpiry: p.LicenseExpiry,
	}
}

func (s *Server) handleStockistRegister(w http.ResponseWriter, r *http.Request) {
	var req stockist.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respond(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	profile, err := s.stockists.Register(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "stockist registered, pending admin approval", toStockistView(profile))
}

func (s *Server) handleStockistList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	profiles, err := s.stockists.List(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	views := make([]stockistView, len(profiles))
	for i, p := range profiles {
		views[i] = toStockistView(p)
	}
	s.respond(w, http.StatusOK, "", views)
}

func (s *Server) handleStockistGet(w http.ResponseWriter, r *http.Request) {
	profile, err := s.stockists.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "", toStockistView(profile))
}

func (s *Server) handleStaffCreate(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var body struct {
		FullName   string `json:"fullName"`
		Contact    string `json:"contact"`
		Email      string `json:"email"`
		Address    string `json:"address"`
		Image      string `json:"image"`
		AadharCard string `json:"aadharCard"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respond(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	staff, err := s.stockists.CreateStaff(r.Context(), p, stockist.CreateStaffParams{
		FullName:   body.FullName,
		Contact:    body.Contact,
		Email:      body.Email,
		Address:    body.Address,
		Image:      body.Image,
		AadharCard: body.AadharCard,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "staff member added", staffView(staff))
}

func (s *Server) handleStaffList(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	staff, err := s.stockists.ListStaff(r.Context(), p, r.URL.Query().Get("stockistId"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	views := make([]map[string]any, len(staff))
	for i, st := range staff {
		views[i] = staffView(st)
	}
	s.respond(w, http.StatusOK, "", views)
}

func (s *Server) handleStaffDelete(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	staff, err := s.stockists.DeleteStaff(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "staff member removed", staffView(staff))
}

func staffView(st stockist.Staff) map[string]any {
	return map[string]any{
		"id":         st.ID,
		"stockistId": st.StockistID,
		"fullName":   st.FullName,
		"contact":    st.Contact,
		"email":      st.Email,
		"address":    st.Address,
		"image":      st.Image,
		"aadharCard": st.AadharCard,
		"createdAt":  st.CreatedAt,
	}
}
