// Package middleware – security headers
//
// SecurityHeaders attaches conservative hardening headers for a JSON API
// sitting behind a reverse proxy. HSTS is opt-in and only sent on HTTPS.
// Browser clients get the correlation and download headers exposed so the
// frontend can read them across origins.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests. Only set
	// it when traffic is HTTPS end-to-end.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStore adds Cache-Control: no-store plus the legacy Pragma/Expires.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

// exposedHeaders are made readable to cross-origin browser clients.
var exposedHeaders = []string{requestIDHeader, "Content-Disposition", "ETag", "Retry-After"}

// SecurityHeaders returns a Gin middleware adding:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// plus the optional groups selected in opt, and appends exposedHeaders to
// Access-Control-Expose-Headers without duplicating entries.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int64((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		h.Set("Access-Control-Expose-Headers", appendExposed(h.Get("Access-Control-Expose-Headers"), exposedHeaders))

		c.Next()
	}
}

// appendExposed merges names into a comma-separated header value, skipping
// names already present (case-insensitive).
func appendExposed(cur string, names []string) string {
	have := map[string]struct{}{}
	parts := []string{}
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			have[strings.ToLower(p)] = struct{}{}
			parts = append(parts, p)
		}
	}
	for _, n := range names {
		if _, ok := have[strings.ToLower(n)]; !ok {
			have[strings.ToLower(n)] = struct{}{}
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ", ")
}

// isHTTPS reports whether the request arrived over TLS, directly or via a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
