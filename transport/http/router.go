package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/gamegate/service"
)

// SetupRouter sets up the operator Gin router
func SetupRouter(stats *service.Stats, secret []byte) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := NewOpsHandlers(stats)

	router.GET("/healthz", handlers.Health)

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(secret))
	{
		api.GET("/stats", handlers.Stats)
	}

	return router
}
