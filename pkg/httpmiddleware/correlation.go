// Package httpmiddleware is the middleware stack of the metrics and health
// listener.
package httpmiddleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// CorrelationHeader carries the request's correlation id.
const CorrelationHeader = "X-Correlation-ID"

// CorrelationID gives every request a fresh correlation id, ignoring any the
// client sent. The id is set on the request header, the response header and
// the request context.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.New().String()
			r.Header.Set(CorrelationHeader, id)
			w.Header().Set(CorrelationHeader, id)
			next.ServeHTTP(w, r.WithContext(logger.WithCorrelationIDContext(r.Context(), id)))
		})
	}
}
