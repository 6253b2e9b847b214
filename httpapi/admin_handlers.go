package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"meditrap/onboarding"
)

func targetKindParam(r *http.Request) (onboarding.TargetKind, bool) {
	switch chi.URLParam(r, "kind") {
	case "users":
		return onboarding.TargetUser, true
	case "stockists":
		return onboarding.TargetStockist, true
	default:
		return "", false
	}
}

func (s *Server) decisionInput(r *http.Request, kind onboarding.TargetKind) onboarding.DecisionInput {
	var body struct {
		Note string `json:"note"`
	}
	// The body is optional on decision endpoints.
	_ = decodeJSON(r, &body)

	return onboarding.DecisionInput{
		TargetKind: kind,
		TargetID:   chi.URLParam(r, "id"),
		Note:       body.Note,
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
}

func (s *Server) handleAdminApprove(w http.ResponseWriter, r *http.Request) {
	kind, ok := targetKindParam(r)
	if !ok {
		s.respond(w, http.StatusNotFound, "unknown account kind", nil)
		return
	}
	p, _ := principalFrom(r.Context())

	decision, err := s.onboarding.Approve(r.Context(), p, s.decisionInput(r, kind))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "approved", decisionView(decision))
}

func (s *Server) handleAdminDecline(w http.ResponseWriter, r *http.Request) {
	kind, ok := targetKindParam(r)
	if !ok {
		s.respond(w, http.StatusNotFound, "unknown account kind", nil)
		return
	}
	p, _ := principalFrom(r.Context())

	decision, err := s.onboarding.Decline(r.Context(), p, s.decisionInput(r, kind))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "declined", decisionView(decision))
}

func decisionView(d onboarding.Decision) map[string]any {
	return map[string]any{
		"targetKind": d.TargetKind,
		"targetId":   d.TargetID,
		"previous":   d.Previous,
		"current":    d.Current,
		"changed":    d.Changed,
	}
}

func (s *Server) handleAdminPending(w http.ResponseWriter, r *http.Request) {
	kind, ok := targetKindParam(r)
	if !ok {
		s.respond(w, http.StatusNotFound, "unknown account kind", nil)
		return
	}
	p, _ := principalFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	pending, err := s.onboarding.ListPending(r.Context(), p, kind, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "", pending)
}

func (s *Server) handleAdminAudits(w http.ResponseWriter, r *http.Request) {
	kind, ok := targetKindParam(r)
	if !ok {
		s.respond(w, http.StatusNotFound, "unknown account kind", nil)
		return
	}
	p, _ := principalFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	audits, err := s.onboarding.ListAudits(r.Context(), p, kind, chi.URLParam(r, "id"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "", audits)
}
