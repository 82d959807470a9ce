package logger

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Config controls handler construction. A nil Config means Info level JSON
// on stdout.
type Config struct {
	Level     slog.Level
	AddSource bool
}

// NewHandler creates the slog handler used as process default.
func NewHandler(cfg *Config) slog.Handler {
	if cfg == nil {
		cfg = &Config{Level: slog.LevelInfo}
	}

	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	})
}

// NewLoggerMiddleware returns a chi middleware that logs one line per
// request with status and duration.
func NewLoggerMiddleware(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
