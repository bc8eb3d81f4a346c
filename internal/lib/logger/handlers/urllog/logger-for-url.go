package urllog

import (
	"log/slog"
	"net/http"
	"time"
)

// CustomLoggerMiddleware логирует каждый входящий запрос и время его обработки.
func CustomLoggerMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log.Info("request received",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remote_addr", r.RemoteAddr),
			)
			next.ServeHTTP(w, r)
			log.Debug("request handled",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
