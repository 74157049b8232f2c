package api

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ipv4acd/ipv4acd/internal/config"
)

// AuthMiddleware checks the Authorization: Bearer header against a bcrypt
// hash of the configured API token. An empty hash disables auth entirely.
type AuthMiddleware struct {
	tokenHash string
	logger    *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware from the API config.
func NewAuthMiddleware(cfg config.APIConfig, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokenHash: cfg.AuthToken,
		logger:    logger,
	}
}

// RequireAuth wraps a handler to require a valid bearer token. If no
// token hash is configured, every request is allowed through.
func (a *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.authenticate(r) {
			JSONError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next(w, r)
	}
}

func (a *AuthMiddleware) authenticate(r *http.Request) bool {
	if a.tokenHash == "" {
		return true
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	if err := bcrypt.CompareHashAndPassword([]byte(a.tokenHash), []byte(token)); err != nil {
		a.logger.Warn("rejected API request with invalid bearer token", "remote_addr", r.RemoteAddr)
		return false
	}
	return true
}
