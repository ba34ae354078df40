package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"ledger-service/internal/response"
)

type contextKey string

// ContextUserID carries the authenticated party identity through the
// request context.
const ContextUserID contextKey = "user_id"

// Claims is the token shape issued by the identity collaborator; this
// service only verifies it.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// RequireAuth verifies the bearer token and stashes the requester identity
// in the context. Issuance, refresh and revocation live elsewhere.
func RequireAuth(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" || token == authHeader {
				// Browsers cannot set headers on websocket upgrades.
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				response.Error(w, http.StatusUnauthorized, "access token required")
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !parsed.Valid || claims.UserID == "" {
				logger.Warn("rejected token", zap.Error(err))
				response.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextUserID, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated party identity set by RequireAuth.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextUserID).(string)
	return id, ok && id != ""
}
