package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"pagesmith/www/api"
)

// middleware requiring authentication to even hit
func Authentication(roles ...string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			role := api.Authenticate(r)

			if role == "" {
				if slices.Contains(roles, "anonymous") {
					next(w, r)
					return
				}
				w.WriteHeader(http.StatusUnauthorized)
				d, _ := json.Marshal(map[string]any{"error": "unauthorized"})
				w.Write(d)
				return
			}

			if slices.Contains(roles, role) {
				ctx := context.WithValue(r.Context(), "role", role)
				next(w, r.WithContext(ctx))
				return
			}

			w.WriteHeader(http.StatusForbidden)
			d, _ := json.Marshal(map[string]any{"error": "forbidden"})
			w.Write(d)
		}
	}
}
