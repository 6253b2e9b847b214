package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meditrap/auth"
	"meditrap/purchaser"
)

// maxDocumentBytes caps uploaded document size at 8 MiB.
const maxDocumentBytes = 8 << 20

func (s *Server) handlePurchaserGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.purchasers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "", purchaserView(p))
}

func (s *Server) handlePurchaserList(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	if p.Kind != auth.KindUser {
		s.respond(w, http.StatusForbidden, "only store owners can list their purchasers", nil)
		return
	}

	list, err := s.purchasers.ListByCreator(r.Context(), p.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	views := make([]map[string]any, len(list))
	for i, pr := range list {
		views[i] = purchaserView(pr)
	}
	s.respond(w, http.StatusOK, "", views)
}

func purchaserView(p purchaser.Purchaser) map[string]any {
	return map[string]any{
		"id":        p.ID,
		"fullName":  p.FullName,
		"address":   p.Address,
		"contactNo": p.ContactNo,
		"email":     p.Email,
		"photo":     p.Photo,
		"createdAt": p.CreatedAt,
	}
}

func (s *Server) handleVerifyAadhaar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		s.respond(w, http.StatusBadRequest, "expected multipart form with a document file", nil)
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		s.respond(w, http.StatusBadRequest, "document file is required", nil)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes))
	if err != nil {
		s.respond(w, http.StatusBadRequest, "could not read document", nil)
		return
	}

	report, err := s.verifier.ScanAadhaar(r.Context(), header.Filename, image)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "", map[string]any{
		"verified":   report.Verified,
		"candidates": report.Candidates,
		"confidence": report.Confidence,
		"imageUrl":   report.ImageURL,
	})
}
