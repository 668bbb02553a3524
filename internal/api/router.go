package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"marketlens/internal"
)

// RequestLogger logs one line per request through the leveled logger
func RequestLogger(logger *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("[API] %s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// NewRouter builds the gin engine serving h. mode is a gin mode
// (debug, release or test).
func NewRouter(h *Handler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(h.logger))
	Register(router.Group("/api"), h)
	return router
}

// Register mounts the dashboard routes on group
func Register(group *gin.RouterGroup, h *Handler) {
	group.GET("/health", h.Health)
	group.GET("/events", h.hub.HandleSSE)

	group.GET("/selection", h.GetSelection)
	group.PUT("/selection/:facet", h.SetSelection)
	group.DELETE("/selection", h.ResetSelection)

	group.GET("/rows", h.Rows)
	group.GET("/summary", h.Summary)
	group.GET("/profile", h.Profile)
	group.GET("/options/:facet", h.Options)
	group.GET("/options/:facet/grouped", h.GroupedOptions)
	group.GET("/aggregate/:op", h.Aggregate)

	group.POST("/export", h.Export)
	group.GET("/exports", h.ListExports)
	group.GET("/exports/:id", h.GetExport)
}
