package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.POST("", h.Create)
		group.GET("/stats", h.Stats)
		group.GET("/expiring", h.Expiring)
		group.GET("/:id", h.Get)
		group.GET("/:id/cost", h.Cost)
		group.POST("/:id/cancel", h.Cancel)
	}
}
