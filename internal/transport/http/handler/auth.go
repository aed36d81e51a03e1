package handler

import (
	"net/http"

	"github.com/phone-auth-api/internal/application/auth"
	"github.com/phone-auth-api/internal/application/session"
	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/transport/http/middleware"
)

// AuthHandler handles signup, verification, login and token endpoints.
type AuthHandler struct {
	svc      auth.Service
	sessions session.Service
}

func NewAuthHandler(svc auth.Service, sessions session.Service) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions}
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SignupEnvelope{UserID: res.User.UserID, SecurityToken: res.SecurityToken})
}

func (h *AuthHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req domain.PhoneVerificationRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyPhone(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: res.User, Tokens: res.Tokens})
}

func (h *AuthHandler) ResendPhoneVerification(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendPhoneVerificationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ResendPhoneVerification(r.Context(), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Verification code sent."})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: res.User, Tokens: res.Tokens})
}

func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	current, err := h.svc.CurrentUser(r.Context(), u.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: current})
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.DeleteAccount(r.Context(), u.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Account deleted."})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "This field is required.", Field: "refresh"})
		return
	}
	pair, err := h.sessions.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokensEnvelope{Tokens: pair})
}

// Logout consumes the refresh token so it can no longer be exchanged.
// Access tokens stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "This field is required.", Field: "refresh"})
		return
	}
	if err := h.sessions.Revoke(r.Context(), req.Refresh); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
