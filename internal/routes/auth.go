package routes

import (
	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/handlers"
	"dbmlviewer/internal/middlewares"
)

type AuthRoutes struct {
	handler  *handlers.AuthHandler
	verifier middlewares.TokenVerifier
}

func NewAuthRoutes(handler *handlers.AuthHandler, verifier middlewares.TokenVerifier) *AuthRoutes {
	return &AuthRoutes{handler: handler, verifier: verifier}
}

func (r *AuthRoutes) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		// Public routes
		auth.POST("/register", r.handler.Register)
		auth.POST("/login", r.handler.Login)
		auth.POST("/refresh", r.handler.Refresh)

		// Protected routes
		auth.POST("/logout", middlewares.Authenticate(r.verifier), r.handler.Logout)
	}
}
