package handler

import (
	"net/http"

	"github.com/store-rating-api/internal/application/store"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/transport/http/middleware"
)

// StoreHandler handles store management and rating endpoints.
type StoreHandler struct {
	svc store.Service
}

func NewStoreHandler(svc store.Service) *StoreHandler { return &StoreHandler{svc: svc} }

type createStoreResponse struct {
	Message string        `json:"message"`
	Store   *domain.Store `json:"store"`
}

func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateStoreRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createStoreResponse{Message: "Store created successfully", Store: s})
}

func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	stores, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if stores == nil {
		stores = []domain.Store{}
	}
	writeJSON(w, http.StatusOK, stores)
}

func (h *StoreHandler) ListWithRatings(w http.ResponseWriter, r *http.Request) {
	stores, err := h.svc.ListWithRatings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if stores == nil {
		stores = []domain.StoreWithRatings{}
	}
	writeJSON(w, http.StatusOK, stores)
}

func (h *StoreHandler) Rate(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	storeID, ok := pathID(w, r, "Store not found")
	if !ok {
		return
	}
	var req domain.RateStoreRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Rate(r.Context(), storeID, u.ID, req); err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Rating submitted successfully"})
}

func (h *StoreHandler) RateAnonymous(w http.ResponseWriter, r *http.Request) {
	storeID, ok := pathID(w, r, "Store not found")
	if !ok {
		return
	}
	var req domain.AnonymousRatingRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RateAnonymous(r.Context(), storeID, req); err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Rating submitted successfully"})
}

func (h *StoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	storeID, ok := pathID(w, r, "Store not found")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), storeID); err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Store deleted successfully"})
}
