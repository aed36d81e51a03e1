package handler

import (
	"encoding/json"
	"net/http"

	"github.com/phone-auth-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper. Field names the request
// field a validation error refers to.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Field   string `json:"field,omitempty"`
}

// SignupEnvelope carries what the client needs to complete verification.
type SignupEnvelope struct {
	UserID        string `json:"user_id"`
	SecurityToken string `json:"security_token"`
}

// AuthEnvelope wraps verification and login responses.
type AuthEnvelope struct {
	User   *domain.User     `json:"user"`
	Tokens domain.TokenPair `json:"tokens"`
}

type UserEnvelope struct {
	User *domain.User `json:"user"`
}

type TokensEnvelope struct {
	Tokens domain.TokenPair `json:"tokens"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
