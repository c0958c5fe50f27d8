package auth

import (
	"log/slog"
	"net/http"
)

// Middleware authenticates HTTP requests with the bearer token of the
// Authorization header. Unauthenticated requests get 401 with an empty JSON
// object. If no authenticator is provided, requests pass through.
func Middleware(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromAuthorizationHeader(r.Header.Get("Authorization"))
			if err == nil {
				ctx := r.Context()
				ctx, err = ValidateToken(ctx, token, authenticator)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			logger.Debug("Authentication failed", "path", r.URL.Path, "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="gridsource"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("{}"))
		})
	}
}
