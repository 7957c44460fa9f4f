package middleware

import (
	"net/http"
	"strings"

	"assembliestore-be/internal/transport"
	"assembliestore-be/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware parses the bearer token, if any, and stores the user
// claims in the request context. Requests without a valid token pass
// through anonymously; role enforcement happens per-route. The secret
// is injected from configuration so it is read after the env file is
// loaded; an empty secret authenticates nobody.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				if len(secret) == 0 {
					return nil, jwt.ErrInvalidKey
				}
				return secret, nil
			})

			if err != nil || !token.Valid {
				next.ServeHTTP(w, r)
				return
			}

			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				userID, _ := claims["user_id"].(string)
				email, _ := claims["email"].(string)
				role, _ := claims["role"].(string)
				ctx := utils.SetUserContext(r.Context(), userID, email, role)
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.GetUserIDFromContext(r.Context()); !ok {
			transport.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

// RequireRoles rejects requests whose context role is not in the allowed set.
func RequireRoles(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.GetUserIDFromContext(r.Context()); !ok {
			transport.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}

		role := utils.GetUserRoleFromContext(r.Context())
		for _, allowed := range roles {
			if role == allowed {
				next(w, r)
				return
			}
		}

		transport.Error(w, http.StatusForbidden, "insufficient permissions")
	}
}
