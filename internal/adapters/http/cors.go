package http

import (
	"net/http"
	"strings"
)

// corsMiddleware handles CORS headers based on configuration.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Check if origin is allowed
		if origin != "" && s.isOriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			w.Header().Set("Vary", "Origin")
		}

		// Preflight requests never reach the handlers
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed checks if the given origin matches any allowed pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, pattern := range s.config.CORS.AllowedOrigins {
		if matchOrigin(origin, pattern) {
			return true
		}
	}
	return false
}

// matchOrigin checks an origin against an exact, "*" or "*.domain" pattern.
func matchOrigin(origin, pattern string) bool {
	if origin == pattern {
		return true
	}

	if pattern == "*" {
		return true
	}

	// "*.example.com" matches "sub.example.com" but not "example.com"
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:]
		host := extractHost(origin)
		return strings.HasSuffix(host, suffix) && len(host) > len(suffix)
	}

	return false
}

// extractHost returns the bare host of an origin URL:
// "https://example.com:8080" yields "example.com".
func extractHost(origin string) string {
	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, ":/"); idx != -1 {
		host = host[:idx]
	}
	return host
}
