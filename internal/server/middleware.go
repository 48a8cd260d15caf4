package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/raaihank/confidenceboost/internal/logger"
	"github.com/raaihank/confidenceboost/internal/usage"
	"github.com/raaihank/confidenceboost/internal/websocket"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// loggingMiddleware assigns a request ID and logs each API request
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		log := s.logger.WithRequestID(requestID)

		log.Debug("HTTP request started",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()),
			zap.Any("headers", logger.SafeHeaders(r.Header)),
		)

		next.ServeHTTP(rw, r)

		log.Info("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status_code", rw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int("response_size", rw.size),
		)
	})
}

// usageMiddleware turns away clients that already spent their quota without
// consuming anything; the handler charges the quota once the request is valid
func (s *Server) usageMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := websocket.ClientIP(r)

		decision, err := s.limiter.Peek(r.Context(), clientID)
		if err != nil {
			s.logger.WithRequestID(getRequestID(r.Context())).Warn("Usage check failed, allowing request", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !decision.Allowed {
			s.rejectForQuota(w, r, decision)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rejectForQuota(w http.ResponseWriter, r *http.Request, decision usage.Decision) {
	requestID := getRequestID(r.Context())
	clientIP := websocket.ClientIP(r)

	s.logger.WithRequestID(requestID).Info("Daily usage limit reached",
		zap.String("client_ip", clientIP),
		zap.Int("limit", decision.Limit),
		zap.Duration("retry_after", decision.RetryAfter),
	)

	s.wsHub.BroadcastUsageExceeded(websocket.UsageExceededEvent{
		RequestID:  requestID,
		ClientIP:   clientIP,
		Limit:      decision.Limit,
		RetryAfter: decision.RetryAfter.Round(time.Second).String(),
	})

	if decision.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
	}
	writeError(w, http.StatusTooManyRequests,
		fmt.Sprintf("You've reached your daily limit of %d rewrites. Try again tomorrow!", decision.Limit))
}

// responseWriter wraps http.ResponseWriter to capture response data
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// getRequestID extracts request ID from context
func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}
