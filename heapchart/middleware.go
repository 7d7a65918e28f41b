package heapchart

import (
	"log/slog"
	"net/http"
	"time"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// WithLogging wraps a handler with request logging.
//
// Example:
//
//	handler := WithLogging(slog.Default())(h)
func WithLogging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			if rec.status >= http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "request failed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration", duration,
				)
			} else {
				logger.DebugContext(r.Context(), "request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration", duration,
				)
			}
		})
	}
}

// WithRecovery turns a panic in a handler into a 500 response.
func WithRecovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.ErrorContext(r.Context(), "handler panic",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", v,
					)
					writeJSON(w, http.StatusInternalServerError, newError(codeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Chain combines multiple middleware into a single middleware.
// Middleware is applied in order: Chain(a, b, c)(h) == a(b(c(h))).
//
// Example:
//
//	handler := Chain(
//	    WithRecovery(logger),
//	    WithLogging(logger),
//	)(h)
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
