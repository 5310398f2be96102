package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with the middleware chain and all routes.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(), ErrorHandler())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterTicketRoutes(r, cfg)
	r.NoRoute(NotFound())

	return r
}
