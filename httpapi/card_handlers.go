package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"meditrap/auth"
	"meditrap/card"
	"meditrap/notify"
)

type cardRequestView struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Threshold  int        `json:"threshold"`
	Approvals  int        `json:"approvals"`
	Purchaser  string     `json:"purchaserName"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toCardView(req card.Request) cardRequestView {
	return cardRequestView{
		ID:         req.ID,
		Status:     string(req.Status),
		Threshold:  req.Threshold,
		Approvals:  req.Approvals,
		Purchaser:  req.Payload.FullName,
		ApprovedAt: req.ApprovedAt,
		CreatedAt:  req.CreatedAt,
	}
}

func deliverySummary(results []notify.DeliveryResult) map[string]any {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	return map[string]any{"notified": len(results) - failed, "failed": failed}
}

func (s *Server) handleCardCreate(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	if p.Kind != auth.KindUser {
		s.respond(w, http.StatusForbidden, "only store owners can request a purchasing card", nil)
		return
	}

	var body struct {
		StockistIDs []string     `json:"stockistIds"`
		Purchaser   card.Payload `json:"purchaser"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respond(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	req, results, err := s.cards.CreateRequest(r.Context(), card.CreateRequestInput{
		RequesterID:    p.ID,
		RequesterName:  p.Name,
		RequesterEmail: p.Email,
		StockistIDs:    body.StockistIDs,
		Payload:        body.Purchaser,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "purchasing card requested", map[string]any{
		"request":       toCardView(req),
		"notifications": deliverySummary(results),
	})
}

func (s *Server) handleCardGet(w http.ResponseWriter, r *http.Request) {
	req, err := s.cards.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "", toCardView(req))
}

func (s *Server) handleCardApprove(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	decision, err := s.cards.Approve(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, approvalMessage(decision), toCardView(decision.Request))
}

func (s *Server) handleCardApproveByToken(w http.ResponseWriter, r *http.Request) {
	decision, err := s.cards.ApproveByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, approvalMessage(decision), toCardView(decision.Request))
}

func approvalMessage(d card.Decision) string {
	switch {
	case d.Duplicate:
		return "approval already recorded"
	case d.Granted:
		return "approval recorded; purchasing card granted"
	default:
		return "approval recorded"
	}
}

func (s *Server) handleCardCancel(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	req, err := s.cards.Cancel(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "request cancelled", toCardView(req))
}

func (s *Server) handleCardPending(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var cursor card.Cursor
	if after := r.URL.Query().Get("after"); after != "" {
		at, err := time.Parse(time.RFC3339Nano, after)
		if err != nil {
			s.respond(w, http.StatusBadRequest, "invalid after cursor", nil)
			return
		}
		cursor = card.Cursor{CreatedAt: at, ID: r.URL.Query().Get("afterId")}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	pending, err := s.cards.ListPending(r.Context(), p, cursor, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	views := make([]cardRequestView, len(pending))
	for i, req := range pending {
		views[i] = toCardView(req)
	}
	s.respond(w, http.StatusOK, "", views)
}
