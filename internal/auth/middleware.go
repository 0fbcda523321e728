package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sha1n/invitewatch/internal/config"
)

// APIKeyHeader carries the key for apikey auth. A bearer token is accepted too.
const APIKeyHeader = "X-API-Key"

// PublicPaths bypass authentication so probes and scrapers need no credentials.
var PublicPaths = []string{"/health", "/metrics"}

// Middleware wraps a handler with an authentication check.
type Middleware func(http.Handler) http.Handler

// NewMiddleware creates a new authentication middleware based on settings.
// Requests for any of the public paths skip the check.
func NewMiddleware(settings config.AuthSettings, public ...string) (Middleware, error) {
	var check func(*http.Request) bool
	challenge := ""

	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler { return next }, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		check = basicAuthCheck(settings.Basic)
		challenge = `Basic realm="invitewatch"`
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		check = apiKeyCheck(settings.APIKeys)
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}

	exempt := make(map[string]bool, len(public))
	for _, p := range public {
		exempt[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] || check(r) {
				next.ServeHTTP(w, r)
				return
			}
			slog.DebugContext(r.Context(), "Rejected unauthenticated request",
				"path", r.URL.Path, "remote", r.RemoteAddr, "auth", settings.Type)
			if challenge != "" {
				w.Header().Set("WWW-Authenticate", challenge)
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}, nil
}

func basicAuthCheck(settings config.BasicAuthSettings) func(*http.Request) bool {
	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(settings.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(settings.Password)) == 1
		return ok && userMatch && passMatch
	}
}

func apiKeyCheck(apiKeys []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		key := requestKey(r)
		if key == "" {
			return false
		}
		valid := false
		// no early exit, every key is compared
		for _, validKey := range apiKeys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
				valid = true
			}
		}
		return valid
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
