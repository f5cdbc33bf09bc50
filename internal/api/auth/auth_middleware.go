package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wandertrails/tourism-api/internal/api"
	"github.com/wandertrails/tourism-api/internal/types"
)

// Typed context key for the authenticated identity.
type contextKey string

const identityKey contextKey = "identity"

// GetIdentityFromContext returns the identity attached by Authenticate.
func GetIdentityFromContext(ctx context.Context) (*types.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*types.Identity)
	return identity, ok
}

// ContextWithIdentity attaches an identity; exported for handler tests.
func ContextWithIdentity(ctx context.Context, identity *types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Authenticate validates the bearer access token, resolves it to an active
// user through the injected store, and attaches the minimal identity
// projection to the request context. All token failures produce the same
// 401 so that expired, forged, and missing tokens are indistinguishable.
func Authenticate(tokens *TokenService, store UserStore, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			claims := tokens.VerifyAccess(headerParts[1])
			if claims == nil {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			user, err := store.GetUserByID(ctx, userID)
			if err != nil {
				l.WarnContext(ctx, "Token subject not found", slog.String("user_id", claims.UserID))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			if user.Status != types.StatusActive {
				l.WarnContext(ctx, "Inactive account presented a valid token",
					slog.String("user_id", claims.UserID), slog.String("status", string(user.Status)))
				api.ErrorResponse(w, r, http.StatusForbidden, "Account is not active")
				return
			}

			identity := &types.Identity{
				ID:            user.ID,
				Email:         user.Email,
				Role:          user.Role,
				Status:        user.Status,
				EmailVerified: user.EmailVerified,
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(ctx, identity)))
		})
	}
}

// RequireRole passes the request through only when the authenticated
// identity holds one of the allowed roles. It must run after Authenticate;
// composition order matters.
func RequireRole(logger *slog.Logger, allowedRoles ...types.Role) func(next http.Handler) http.Handler {
	roleSet := make(map[types.Role]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentityFromContext(r.Context())
			if !ok {
				logger.ErrorContext(r.Context(), "RequireRole ran without an authenticated identity")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			if _, allowed := roleSet[identity.Role]; !allowed {
				logger.WarnContext(r.Context(), "Role check failed",
					slog.String("user_id", identity.ID.String()),
					slog.String("role", string(identity.Role)))
				api.ErrorResponse(w, r, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
