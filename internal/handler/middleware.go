package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nazarhussain/folio-courier/internal/logging"
)

const requestIDHeader = "X-Request-ID"

func secHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests and rejects browsers from origins outside
// allowed. Requests without an Origin header (curl, server-to-server) pass.
// An empty list allows every origin.
func cors(allowed []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(allowed, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && len(allowed) > 0 {
				switch {
				case wildcard:
					w.Header().Set("Access-Control-Allow-Origin", "*")
				case slices.Contains(allowed, origin):
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				default:
					writeJSON(w, http.StatusForbidden, contactResponse{Message: "origin not allowed"})
					return
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger attaches a request-scoped logger carrying a request id,
// recovers panics into a JSON 500 and logs one line per request.
func requestLogger(baseLogger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if reqID == "" || len(reqID) > 64 {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			log := baseLogger.With(
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx := logging.ContextWithLogger(r.Context(), log)
			r = r.WithContext(ctx)

			lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						"err", rec,
						"type", fmt.Sprintf("%T", rec),
						"stack", string(debug.Stack()),
					)
					if !lrw.wrote {
						writeJSON(lrw, http.StatusInternalServerError, contactResponse{Message: msgInternal})
					}
				}
				level := slog.LevelInfo
				switch {
				case lrw.status >= 500:
					level = slog.LevelError
				case lrw.status >= 400:
					level = slog.LevelWarn
				}
				log.Log(ctx, level, "request completed",
					"status", lrw.status,
					"duration_ms", time.Since(start).Milliseconds(),
					"bytes", lrw.length,
				)
			}()

			next.ServeHTTP(lrw, r)
		})
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	length int
	wrote  bool
}

func (lrw *loggingResponseWriter) WriteHeader(status int) {
	if lrw.wrote {
		return
	}
	lrw.ResponseWriter.WriteHeader(status)
	lrw.wrote = true
	lrw.status = status
}

func (lrw *loggingResponseWriter) Write(p []byte) (int, error) {
	if !lrw.wrote {
		lrw.WriteHeader(http.StatusOK)
	}
	n, err := lrw.ResponseWriter.Write(p)
	lrw.length += n
	return n, err
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter { return lrw.ResponseWriter }
