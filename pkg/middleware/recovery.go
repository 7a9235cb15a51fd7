package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// panicBody is the agent's standard error envelope, pre-rendered because the
// encoder must not be able to fail inside a recover block.
const panicBody = `{"error":{"code":"INTERNAL_ERROR","message":"an internal error occurred"}}`

// Recovery turns panics into a 500 response in the agent's error envelope
// instead of crashing the server.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					if _, err := w.Write([]byte(panicBody)); err != nil {
						l.Error("failed to write panic response", slog.String("error", err.Error()))
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
