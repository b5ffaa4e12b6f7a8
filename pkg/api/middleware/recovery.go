package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/goclaw/hyperagent/pkg/api/response"
	"github.com/goclaw/hyperagent/pkg/logger"
)

// Recovery turns a handler panic into a 500 response. The panic value is
// logged with its stack but never sent to the client. http.ErrAbortHandler
// is re-raised so net/http can drop the connection.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestID := GetRequestID(r.Context())
				log.ErrorContext(r.Context(), "Panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", requestID,
					"stack", string(debug.Stack()),
				)
				if requestID == "" {
					requestID = "unknown"
				}
				response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
					"Internal server error", requestID)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
