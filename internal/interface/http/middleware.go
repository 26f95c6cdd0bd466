package http

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduaid/eduaid-hub/internal/infrastructure/auth"
	"github.com/eduaid/eduaid-hub/pkg/logger"
)

const (
	headerRequestID = "X-Request-ID"

	ctxKeyRequestID = "request_id"
	ctxKeyPrincipal = "principal"
	ctxKeyToken     = "token"
)

// requestIDMiddleware reuses the caller's request ID or assigns a new one.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(headerRequestID, id)

		reqLog := s.logger.WithRequestID(id)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))
		c.Next()
	}
}

// loggingMiddleware logs every request and feeds the request metrics.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		if s.deps.Observer != nil {
			s.deps.Observer.ObserveHTTP(c.Request.Method, route, status, duration)
		}

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("route", route),
			logger.Int("status", status),
			logger.Latency(duration),
			logger.String("ip", c.ClientIP()),
			logger.String("request_id", c.GetString(ctxKeyRequestID)),
		}
		if p, ok := principal(c); ok {
			fields = append(fields, logger.UserID(p.UserID))
		}

		switch {
		case status >= 500:
			s.logger.Error("http request", fields...)
		case route == "/health" || route == "/metrics":
			s.logger.Debug("http request", fields...)
		default:
			s.logger.Info("http request", fields...)
		}
	}
}

// recoveryMiddleware turns panics into 500 responses.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", c.Request.URL.Path),
				)
				writeError(c, http.StatusInternalServerError, "internal_server_error", "an unexpected error occurred")
			}
		}()
		c.Next()
	}
}

// requireAuth accepts "Authorization: Bearer <token>" session tokens.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeError(c, http.StatusUnauthorized, "unauthorized", "bearer token required")
			return
		}
		token = strings.TrimSpace(token)

		p, err := s.deps.Auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
			return
		}

		c.Set(ctxKeyPrincipal, p)
		c.Set(ctxKeyToken, token)
		c.Next()
	}
}

func principal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(ctxKeyPrincipal)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func userID(c *gin.Context) string {
	p, _ := principal(c)
	return p.UserID
}
