package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polyarb/internal/server/respond"
)

// Auth guards the API with a shared key. The key is read from
// "Authorization: Bearer", then X-API-Key, then the api_key query parameter,
// which is the only option browsers have when opening /ws. An empty apiKey
// disables the check.
func Auth(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := presentedKey(r)
			switch {
			case got == "":
				respond.Error(w, http.StatusUnauthorized, "missing api key")
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				respond.Error(w, http.StatusUnauthorized, "invalid api key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func presentedKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	return strings.TrimSpace(r.URL.Query().Get("api_key"))
}
