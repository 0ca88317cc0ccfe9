package routes

import (
	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/handlers"
	"dbmlviewer/internal/middlewares"
)

type DiagramRoutes struct {
	handler  *handlers.DiagramHandler
	verifier middlewares.TokenVerifier
}

func NewDiagramRoutes(handler *handlers.DiagramHandler, verifier middlewares.TokenVerifier) *DiagramRoutes {
	return &DiagramRoutes{handler: handler, verifier: verifier}
}

func (r *DiagramRoutes) RegisterRoutes(router *gin.RouterGroup) {
	diagrams := router.Group("/diagrams")
	diagrams.Use(middlewares.Authenticate(r.verifier))
	{
		diagrams.POST("", r.handler.CreateDiagram)
		diagrams.GET("", r.handler.ListDiagrams)
		diagrams.GET("/:id", r.handler.GetDiagram)
		diagrams.PATCH("/:id", r.handler.UpdateDiagram)
		diagrams.DELETE("/:id", r.handler.DeleteDiagram)
		diagrams.GET("/:id/export", r.handler.ExportDiagram)
	}
}
