// ABOUTME: Request logging middleware that writes one zap line per HTTP request.
// ABOUTME: Uses chi's wrapped writer so websocket upgrades keep working through the hijacker.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start).Round(time.Microsecond)),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			switch {
			case status >= 500:
				log.Error("web request", fields...)
			case status >= 400:
				log.Warn("web request", fields...)
			default:
				log.Info("web request", fields...)
			}
		})
	}
}
