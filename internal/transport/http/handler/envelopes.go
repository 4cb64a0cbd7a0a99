package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string                `json:"message"`
	Errors  []validate.FieldError `json:"errors,omitempty"`
}

// UserSummary is the public part of an account returned after registration.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginUser is the account view returned alongside a token.
type LoginUser struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
	Address  string      `json:"address"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg})
}

// decode reads a JSON body into dst and validates it. On failure the response
// has already been written and false is returned.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var ve validate.Errors
		if errors.As(err, &ve) && len(ve) > 0 {
			writeJSON(w, http.StatusBadRequest, MessageEnvelope{Message: ve[0].Message, Errors: ve})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pathID parses the {id} URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}

type errorOptions struct {
	notFoundStatus int
}

type errorOption func(*errorOptions)

// notFoundAs overrides the status used for domain.ErrNotFound.
func notFoundAs(status int) errorOption {
	return func(o *errorOptions) { o.notFoundStatus = status }
}

// writeServiceError maps a service error to a status code. Only *domain.Error
// messages reach the client; anything else is reported as a generic server error.
func writeServiceError(w http.ResponseWriter, err error, opts ...errorOption) {
	o := errorOptions{notFoundStatus: http.StatusBadRequest}
	for _, opt := range opts {
		opt(&o)
	}

	var status int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = o.notFoundStatus
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrExpired):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrDelivery):
		status = http.StatusInternalServerError
	default:
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	var de *domain.Error
	if errors.As(err, &de) {
		writeError(w, status, de.Message)
		return
	}
	writeError(w, status, http.StatusText(status))
}
