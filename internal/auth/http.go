// ABOUTME: HTTP registration endpoint for creating accounts before socket login.
// ABOUTME: Enforces the password policy and stores bcrypt-hashed credentials.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhilian/gateway/internal/store"
	"github.com/zhilian/gateway/internal/wire"
)

// RegistrationStore is what the registration handler needs from storage.
type RegistrationStore interface {
	CreateUser(ctx context.Context, user *store.User) error
}

// registerRequest is the POST /api/register body.
type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// registerResponse is the success body.
type registerResponse struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// RegisterHandler creates the HTTP handler for user registration.
func RegisterHandler(users RegistrationStore, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "auth")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeHTTPError(w, http.StatusBadRequest, wire.CodeAuthInvalidFormat, "request body is not valid JSON")
			return
		}

		if req.Username == "" {
			writeHTTPError(w, http.StatusBadRequest, wire.CodeAuthInvalidUsername, "registration missing username")
			return
		}
		if req.Password == "" {
			writeHTTPError(w, http.StatusBadRequest, wire.CodeAuthMissingPassword, "registration missing password")
			return
		}
		if !validPassword(req.Password) {
			writeHTTPError(w, http.StatusBadRequest, wire.CodeAuthInvalidPassword,
				"password must be at least 8 characters and contain a letter and a digit")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, wire.CodeServerInternal, "hashing password")
			return
		}

		user := &store.User{
			ID:           uuid.New().String(),
			Username:     req.Username,
			PasswordHash: string(hash),
			CreatedAt:    time.Now(),
		}
		if err := users.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicateUser) {
				writeHTTPError(w, http.StatusBadRequest, wire.CodeAuthUserExists, "username already registered")
				return
			}
			log.Error("creating user failed", "error", err)
			writeHTTPError(w, http.StatusInternalServerError, wire.CodeServerInternal, "registration failed")
			return
		}

		log.Info("user registered", "user_id", user.ID, "username", user.Username)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(registerResponse{
			Type:     wire.TypeRegisterSuccess,
			UserID:   user.ID,
			Username: user.Username,
		})
	})
}

// validPassword requires at least 8 characters including a letter and a digit.
func validPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func writeHTTPError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(wire.ErrorFrame{Type: wire.TypeError, Code: code, Message: message})
}
