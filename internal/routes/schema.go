package routes

import (
	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/handlers"
)

type SchemaRoutes struct {
	handler *handlers.SchemaHandler
}

func NewSchemaRoutes(handler *handlers.SchemaHandler) *SchemaRoutes {
	return &SchemaRoutes{handler: handler}
}

func (r *SchemaRoutes) RegisterRoutes(router *gin.RouterGroup) {
	schema := router.Group("/schema")
	{
		schema.POST("/parse", r.handler.Parse)
		schema.POST("/import", r.handler.Import)
		schema.POST("/export", r.handler.Export)
	}
}
