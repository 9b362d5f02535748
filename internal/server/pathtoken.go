package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/uptime-bridge/internal/auth"
)

// PathTokenMiddleware rejects requests whose URL parameter param does not
// match the configured secret. Rejection happens before the body is read.
func PathTokenMiddleware(validator *auth.PathToken, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := validator.Validate(chi.URLParam(r, param)); err != nil {
				AddError(r.Context(), err)
				WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid path token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
