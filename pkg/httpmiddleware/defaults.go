package httpmiddleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// Config selects the middleware applied by ApplyToRouter.
type Config struct {
	// Logger enables request logging when set.
	Logger logger.Logger
	// CORSOrigins enables CORS for these origins when non-empty.
	CORSOrigins []string
	// Security overrides DefaultSecurityOptions.
	Security *secure.Options
	// Timeout bounds each request. Zero disables it.
	Timeout time.Duration
}

// DefaultConfig returns the listener defaults: no logging, no CORS and a
// ten second timeout.
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

// ApplyToRouter applies the middleware in execution order: correlation id,
// security headers, real IP, logging, recovery, CORS, timeout and the /ping
// heartbeat.
func ApplyToRouter(router chi.Router, config Config) {
	router.Use(CorrelationID())
	router.Use(Security(config.Security))
	router.Use(middleware.RealIP)

	if config.Logger != nil {
		router.Use(NewHTTPLogger(config.Logger).Middleware)
	}

	router.Use(middleware.Recoverer)

	if len(config.CORSOrigins) > 0 {
		router.Use(CORS(config.CORSOrigins))
	}
	if config.Timeout > 0 {
		router.Use(middleware.Timeout(config.Timeout))
	}

	router.Use(middleware.Heartbeat("/ping"))
}
