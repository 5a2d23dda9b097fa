// ABOUTME: Bearer-token middleware guarding authenticated HTTP endpoints.
// ABOUTME: Verifies the session JWT and exposes the user id to handlers.

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zhilian/gateway/internal/wire"
)

type subjectKey struct{}

// SubjectFromContext returns the user id placed by RequireToken.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok
}

// RequireToken wraps next with bearer-token verification. The token is the
// session JWT handed out in the auth_success frame; requests without a
// valid one are answered with 401 and an error body.
func RequireToken(issuer *TokenIssuer, logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "auth")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeHTTPError(w, http.StatusUnauthorized, wire.CodeAuthInvalidToken, "missing bearer token")
			return
		}

		userID, err := issuer.Verify(token)
		if err != nil {
			log.Debug("token rejected", "remote", r.RemoteAddr, "error", err)
			writeHTTPError(w, http.StatusUnauthorized, wire.CodeAuthInvalidToken, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, userID)))
	})
}
