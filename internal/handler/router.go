package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seekwell/seekwell/internal/middleware"
)

type RouterDeps struct {
	Documents    *DocumentHandler
	Search       *SearchHandler
	JWTSecret    []byte
	IngestWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	writeGroup := authGroup.Group("")
	writeGroup.Use(middleware.RateLimit(deps.IngestWindow))
	writeGroup.POST("/documents", deps.Documents.Create)
	writeGroup.PUT("/documents/:id", deps.Documents.Update)

	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.GET("/search", deps.Search.Search)
}
