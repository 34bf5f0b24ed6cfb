package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cityServiceDesk/internal/auth"
)

const requestIDHeader = "X-Request-ID"

// requestID propagates the caller's X-Request-ID or assigns a fresh one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		code := c.Writer.Status()
		level := slog.LevelInfo
		if code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("request_id", c.GetString(requestIDHeader)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", code),
			slog.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}
		logger.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}

// identify resolves the bearer token into a verified principal. Requests
// without an Authorization header continue anonymously.
func identify(secret string, users auth.UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.ParseBearer(c.GetHeader("Authorization"), secret)
		if errors.Is(err, auth.ErrNoCredentials) {
			c.Next()
			return
		}
		if err == nil && users != nil {
			p, err = auth.Verify(c.Request.Context(), users, p)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: err.Error()})
			return
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func principal(c *gin.Context) *auth.Principal {
	p, _ := auth.FromContext(c.Request.Context())
	return p
}
