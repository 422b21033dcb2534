package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/metrics"
)

// requestMetrics records Prometheus metrics and a debug log line per request.
// The endpoint label is the matched route pattern so path ids don't explode
// label cardinality.
func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		took := time.Since(start)
		statusStr := strconv.Itoa(status)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusStr, float64(took.Milliseconds()))

		s.logger.Debug(r.Context(), "request",
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.String("method", r.Method),
			logger.String("endpoint", endpoint),
			logger.Int("status", status),
			logger.Duration("took", took))
	})
}
