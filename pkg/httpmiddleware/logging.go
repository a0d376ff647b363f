package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// HTTPLogger logs one line per request. Successful requests log at Debug
// since scrapes and probes arrive every few seconds.
type HTTPLogger struct {
	logger logger.Logger
}

// NewHTTPLogger creates a new HTTP logger middleware
func NewHTTPLogger(log logger.Logger) *HTTPLogger {
	return &HTTPLogger{logger: log}
}

// Middleware returns the HTTP logging middleware
func (h *HTTPLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log := h.RequestLogger(r).WithFields(
			logger.IntField("http_status", status),
			logger.IntField("response_bytes", ww.BytesWritten()),
			logger.DurationField("duration", time.Since(start)),
		)
		if status >= http.StatusInternalServerError {
			log.Warn("HTTP request failed")
			return
		}
		log.Debug("HTTP request served")
	})
}

// RequestLogger returns a logger carrying the request's fields.
func (h *HTTPLogger) RequestLogger(r *http.Request) logger.Logger {
	return h.logger.WithFields(
		logger.StringField("client_ip", r.RemoteAddr),
		logger.StringField("http_method", r.Method),
		logger.StringField("http_path", r.URL.Path),
		logger.CorrelationIDField(r.Header.Get(CorrelationHeader)),
	)
}
