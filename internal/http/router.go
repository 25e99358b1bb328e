package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/config"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/http/handler"
	httpmiddleware "github.com/bucs445fall2025/project-stackoverflowed/internal/http/middleware"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, marketplaceHandler *handler.MarketplaceHandler, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "spapi gateway up (%s)", cfg.SPAPIEnv)
	})

	auth := r.Group("/auth")
	{
		auth.GET("/login", authHandler.Login)
		auth.GET("/callback", authHandler.Callback)
	}

	marketplace := r.Group("/marketplace")
	{
		marketplace.GET("/participations", marketplaceHandler.Participations)
		marketplace.GET("/items", marketplaceHandler.Items)
		marketplace.GET("/items/:sellerId", marketplaceHandler.Items)
	}

	return r
}
