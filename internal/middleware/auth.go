package middleware

import (
	"net/http"
	"strings"

	"teamdrive/internal/auth"
	"teamdrive/internal/httputil"
)

// Auth validates the bearer token and stores the caller's identity on
// the request context. Requests without a valid token get 401.
func Auth(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r = httputil.WithUserID(r, claims.Subject)
			r = httputil.WithRole(r, claims.Role)
			next.ServeHTTP(w, r)
		})
	}
}
