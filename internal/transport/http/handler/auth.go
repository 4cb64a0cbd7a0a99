package handler

import (
	"net/http"

	"github.com/store-rating-api/internal/application/auth"
	"github.com/store-rating-api/internal/application/registration"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/transport/http/middleware"
)

// AuthHandler serves registration, OTP verification, password recovery and login.
type AuthHandler struct {
	registration registration.Service
	auth         auth.Service
}

func NewAuthHandler(reg registration.Service, authSvc auth.Service) *AuthHandler {
	return &AuthHandler{registration: reg, auth: authSvc}
}

type registerResponse struct {
	Message              string `json:"message"`
	Email                string `json:"email"`
	RequiresVerification bool   `json:"requiresVerification"`
}

type verifyResponse struct {
	Message string       `json:"message"`
	UserID  int64        `json:"userId"`
	User    *UserSummary `json:"user"`
}

type forgotPasswordResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registration.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.registration.RequestRegistration(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{
		Message:              "OTP sent to email. Please verify to complete registration.",
		Email:                res.Email,
		RequiresVerification: res.RequiresVerification,
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req registration.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.registration.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if res.Purpose == domain.PurposePasswordReset || res.User == nil {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP verified successfully."})
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Message: "Email verified successfully. Registration completed!",
		UserID:  res.User.ID,
		User:    &UserSummary{ID: res.User.ID, Username: res.User.Username, Email: res.User.Email},
	})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req registration.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.registration.ResendOTP(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent successfully"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req registration.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.registration.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forgotPasswordResponse{
		Message: "OTP sent successfully",
		Email:   registration.NormalizeEmail(req.Email),
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req registration.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.registration.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password reset successfully"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	token, u, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  LoginUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, Address: u.Address},
	})
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	var req auth.UpdatePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.UpdatePassword(r.Context(), u.ID, req); err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password updated successfully"})
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	if err := h.auth.DeleteAccount(r.Context(), u.ID); err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Account deleted successfully"})
}

func (h *AuthHandler) UserDetails(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	details, err := h.auth.UserDetails(r.Context(), u.ID)
	if err != nil {
		writeServiceError(w, err, notFoundAs(http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, details)
}
