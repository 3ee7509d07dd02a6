package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// CORS allows the listed origins ("*" allows any) to read the API. The API
// is read-only, so only GET and OPTIONS are advertised. Preflight requests
// are answered here and never reach the handlers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAny || slices.ContainsFunc(allowedOrigins, func(o string) bool {
				return strings.EqualFold(o, origin)
			})) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, X-API-Key")
				h.Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
