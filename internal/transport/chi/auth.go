package chi

import (
	"net/http"
	"strings"

	"github.com/openscripture/versevec/internal/transport/apierr"
)

// exemptPaths bypass authentication so monitors and scrapers need no key.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// BearerAuthMiddleware validates Bearer tokens against a static key list.
// An empty list disables authentication entirely. The session endpoint runs
// behind this too: the WebSocket upgrade request carries the same header.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, reason := bearerToken(r)
			if reason != "" {
				writeAuthError(w, reason)
				return
			}
			if _, ok := validKeys[token]; !ok {
				writeAuthError(w, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from the Authorization header. A non-empty
// reason describes why extraction failed.
func bearerToken(r *http.Request) (token, reason string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing authorization header"
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", "authorization header must use Bearer scheme"
	}
	return auth[len(prefix):], ""
}

func writeAuthError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, apierr.Payload{Code: "unauthorized", Message: msg})
}
