package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/handlers"
	"dbmlviewer/internal/middlewares"
)

// MaxBodyBytes bounds API request bodies: a full-size schema and canvas
// state plus the JSON envelope.
const MaxBodyBytes = 3 << 20

func RegisterRoutes(router *gin.Engine, verifier middlewares.TokenVerifier, authHandler *handlers.AuthHandler, diagramHandler *handlers.DiagramHandler, schemaHandler *handlers.SchemaHandler) {
	api := router.Group("/api/v1")
	api.Use(middlewares.BodyLimit(MaxBodyBytes))

	authRoutes := NewAuthRoutes(authHandler, verifier)
	authRoutes.RegisterRoutes(api)

	diagramRoutes := NewDiagramRoutes(diagramHandler, verifier)
	diagramRoutes.RegisterRoutes(api)

	schemaRoutes := NewSchemaRoutes(schemaHandler)
	schemaRoutes.RegisterRoutes(api)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
