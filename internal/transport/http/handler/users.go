package handler

import (
	"fmt"
	"net/http"

	"github.com/store-rating-api/internal/application/user"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/transport/http/middleware"
)

// UserHandler handles account administration and profile endpoints.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

type createUserResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	var req domain.CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.Create(r.Context(), actor.Role, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createUserResponse{
		Message: fmt.Sprintf("%s created successfully", u.Role),
		User:    u,
	})
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	profile, err := h.svc.Profile(r.Context(), u.ID)
	if err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	var req domain.UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateProfile(r.Context(), u.ID, req)
	if err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	targetID, ok := pathID(w, r, "User not found")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor.ID, targetID); err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "User deleted successfully"})
}
