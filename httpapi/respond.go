package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"meditrap/auth"
	"meditrap/card"
	"meditrap/onboarding"
	"meditrap/purchaser"
	"meditrap/stockist"
	"meditrap/verify"
)

// envelope is the wire shape every endpoint responds with.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: status < 400, Message: message, Data: data}); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.respond(w, status, "internal server error", nil)
		return
	}
	s.respond(w, status, err.Error(), nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, card.ErrRequestNotFound),
		errors.Is(err, onboarding.ErrEntityNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, stockist.ErrNotFound),
		errors.Is(err, stockist.ErrStaffNotFound),
		errors.Is(err, purchaser.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, card.ErrAlreadyProcessed),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrDuplicateLicense),
		errors.Is(err, stockist.ErrDuplicateEmail),
		errors.Is(err, purchaser.ErrDuplicateEmail):
		return http.StatusConflict

	case errors.Is(err, card.ErrUnauthorizedApprover),
		errors.Is(err, card.ErrNotRequester),
		errors.Is(err, stockist.ErrStaffForbidden),
		errors.Is(err, stockist.ErrOnlyStockists),
		errors.Is(err, onboarding.ErrNotAdmin):
		return http.StatusForbidden

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenRevoked),
		errors.Is(err, auth.ErrAccountUnderReview),
		errors.Is(err, auth.ErrAccountDeclined):
		return http.StatusUnauthorized

	case errors.Is(err, card.ErrInvalidToken),
		errors.Is(err, auth.ErrResetTokenInvalid),
		errors.Is(err, auth.ErrResetTokenExpired):
		return http.StatusBadRequest

	case errors.Is(err, card.ErrTooFewStockists),
		errors.Is(err, card.ErrUnknownStockist),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, stockist.ErrWeakPassword),
		errors.Is(err, onboarding.ErrUnknownKind),
		errors.Is(err, verify.ErrNoText):
		return http.StatusUnprocessableEntity

	case errors.Is(err, card.ErrGrantFailed):
		// Approved but the card could not be materialised; the client must
		// not retry the vote.
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
