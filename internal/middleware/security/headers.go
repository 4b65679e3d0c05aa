// Package security sets response headers for the JSON API.
package security

import (
	"net/http"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	XContentTypeOptions string
	XFrameOptions       string
	ReferrerPolicy      string
	CacheControl        string
	CrossOriginResource string
}

// DefaultHeadersConfig returns defaults for an API that serves only JSON
// and spreadsheets.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		XContentTypeOptions: "nosniff",
		XFrameOptions:       "DENY",
		ReferrerPolicy:      "no-referrer",
		CacheControl:        "no-store",
		CrossOriginResource: "same-origin",
	}
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config}
}

// Middleware returns the HTTP middleware function
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		set := func(k, v string) {
			if v != "" {
				headers.Set(k, v)
			}
		}
		set("X-Content-Type-Options", h.config.XContentTypeOptions)
		set("X-Frame-Options", h.config.XFrameOptions)
		set("Referrer-Policy", h.config.ReferrerPolicy)
		set("Cache-Control", h.config.CacheControl)
		set("Cross-Origin-Resource-Policy", h.config.CrossOriginResource)

		next.ServeHTTP(w, r)
	})
}
