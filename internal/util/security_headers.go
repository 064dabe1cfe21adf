package util

import (
	"net/http"
	"strings"
)

var baseSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"},
	{"Cross-Origin-Resource-Policy", "same-site"},
}

// SecureHeaders returns middleware that sets the portal's response headers.
//
// API responses carry session data and are never cached. Book downloads are
// user-supplied PDFs, so they are sandboxed and kept out of shared caches.
// HSTS is sent on TLS connections, or when a trusted proxy reports https.
func SecureHeaders(trusted *TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range baseSecurityHeaders {
				h.Set(kv[0], kv[1])
			}
			switch {
			case isDownloadPath(r.URL.Path):
				h.Set("Content-Security-Policy", "sandbox; default-src 'none'")
				h.Set("Cache-Control", "private, no-store")
			case strings.HasPrefix(r.URL.Path, "/api/"):
				h.Set("Cache-Control", "no-store")
			}
			if servedOverHTTPS(r, trusted) {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isDownloadPath(path string) bool {
	return strings.HasPrefix(path, "/api/books/") && strings.HasSuffix(path, "/download")
}

func servedOverHTTPS(r *http.Request, trusted *TrustedProxies) bool {
	if r.TLS != nil {
		return true
	}
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok || !trusted.Contains(peer) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}
