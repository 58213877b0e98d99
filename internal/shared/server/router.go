package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library-backend/internal/documents"
	"library-backend/internal/processing"
	"library-backend/internal/review"
	"library-backend/internal/shared/config"
	"library-backend/internal/shared/metrics"
	"library-backend/internal/shared/server/middleware"
	"library-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config            config.Config
	ProcessingHandler *processing.Handler
	DocumentsHandler  *documents.Handler
	ReviewHandler     *review.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// Health and metrics stay outside the authenticated group so probes and
// scrapers need no token.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.Auth())
	api.Use(middleware.RateLimit(rateLimitConfig()))

	registerMeRoutes(api)
	if deps.ProcessingHandler != nil {
		deps.ProcessingHandler.RegisterRoutes(api)
	}
	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.ReviewHandler != nil {
		deps.ReviewHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimitConfig throttles per user. Batch uploads are expensive and get a
// tight bucket; status polling is expected to be chatty and gets a loose one.
func rateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			switch {
			case c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/processing/batches":
				return "UPLOAD"
			case c.Request.Method == http.MethodGet &&
				(c.FullPath() == "/api/v1/processing/batches/:id" || c.FullPath() == "/api/v1/processing/files/:id"):
				return "POLLING"
			default:
				return "DEFAULT"
			}
		},
		Rules: map[string]middleware.RateLimitRule{
			"UPLOAD":  {Rate: 0.2, Burst: 5},
			"POLLING": {Rate: 5, Burst: 20},
			"DEFAULT": {Rate: 2, Burst: 10},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
