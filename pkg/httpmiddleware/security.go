package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/unrolled/secure"
)

// CORS lets dashboards on the given origins read the listener. Only GET and
// OPTIONS are allowed since every route is read-only.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{CorrelationHeader},
		MaxAge:         300,
	})
}

// DefaultSecurityOptions are the headers every response carries.
func DefaultSecurityOptions() secure.Options {
	return secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	}
}

// Security adds the given security headers, or DefaultSecurityOptions when
// opts is nil.
func Security(opts *secure.Options) func(http.Handler) http.Handler {
	o := DefaultSecurityOptions()
	if opts != nil {
		o = *opts
	}
	return secure.New(o).Handler
}
