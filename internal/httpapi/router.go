// Package httpapi is the REST surface of the desk, served with gin.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cityServiceDesk/internal/auth"
)

// RouterConfig carries what the middleware chain needs.
type RouterConfig struct {
	JWTSecret   string
	Users       auth.UserLookup
	CORSOrigins []string
	Logger      *slog.Logger
}

// SetupRouter wires middleware and every route onto a new engine.
func SetupRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(logger))
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(identify(cfg.JWTSecret, cfg.Users))

	router.GET("/healthz", h.Health)

	// Categories
	router.POST("/categories", h.CreateCategory)
	router.GET("/categories", h.ListCategories)

	// Requests
	router.POST("/requests", h.CreateRequest)
	router.GET("/requests", h.ListRequests)
	router.GET("/requests/:id", h.GetRequest)
	router.PATCH("/requests/:id/status", h.UpdateStatus)
	router.DELETE("/requests/:id", h.DeleteRequest)

	// Paths the existing front end still calls.
	router.POST("/requests/create", h.CreateRequest)
	router.GET("/requests/get_all", h.ListRequests)
	router.GET("/requests/my", h.MyRequests)

	// Users
	router.POST("/users", h.Register)
	router.POST("/users/register", h.Register)
	router.GET("/users/me", h.Me)

	return router
}
