package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the sensor ingestion endpoint. Callers authenticate
// with a device key, not a driver token.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, deviceMiddleware ...gin.HandlerFunc) {
	group := g.Group("/hardware")
	group.Use(deviceMiddleware...)
	{
		group.POST("/signals", h.Ingest)
	}
}
