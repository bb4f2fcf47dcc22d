package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers slot availability routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	g.GET("/parks/:id/slots", h.ListByPark)
	g.GET("/congestion", h.Congestion)
}
