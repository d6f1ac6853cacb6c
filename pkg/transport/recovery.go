package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/antwort/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and writes
// a server_error response in their place. The server continues to accept
// new requests after a panic is recovered; a streamed response that has
// already sent a status code cannot be rewritten, so the panic is logged
// but no second response is attempted in that case.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := &statusCapture{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", "request_id", RequestIDFromContext(r.Context()), "panic", rec)
					if sc.written {
						return
					}
					WriteAPIError(w, api.NewServerError(fmt.Sprintf("internal server error: %v", rec)))
				}
			}()
			next.ServeHTTP(sc, r)
		})
	}
}
