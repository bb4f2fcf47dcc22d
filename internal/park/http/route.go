package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers park browsing routes. They are public.
func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	group := g.Group("/parks")
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
	}
}
