package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/middlewares"
	"dbmlviewer/internal/responses"
	"dbmlviewer/internal/services"
	"dbmlviewer/internal/utils"
)

// Cookie configuration
const (
	RefreshTokenCookieName = "refresh_token"
	RefreshTokenMaxAge     = int(utils.RefreshTokenDuration / time.Second)
)

type AuthHandler struct {
	authService *services.AuthService
	// secureCookies is off only for plain-http local development.
	secureCookies bool
}

func NewAuthHandler(authService *services.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookies: secureCookies}
}

type credentials struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Please provide your email and password correctly")
		return
	}

	user, tokens, err := h.authService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err, "Could not register user")
		return
	}

	h.setRefreshCookie(c, tokens.RefreshToken, RefreshTokenMaxAge)

	responses.Success(c, http.StatusCreated, gin.H{
		"access_token": tokens.AccessToken,
		"user":         user,
	}, "New user registered successfully!")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid Format")
		return
	}

	tokens, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err, "Failed to login")
		return
	}

	h.setRefreshCookie(c, tokens.RefreshToken, RefreshTokenMaxAge)

	responses.Success(c, http.StatusOK, tokens, "User Login Successfully!")
}

// Logout revokes the session of the presented access token. Runs behind
// middlewares.Authenticate.
func (h *AuthHandler) Logout(c *gin.Context) {
	jti := c.GetString(middlewares.TokenIDKey)
	if jti == "" {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), jti); err != nil {
		fail(c, err, "Could not revoke token")
		return
	}

	h.setRefreshCookie(c, "", -1)
	responses.Success(c, http.StatusOK, nil, "Logged out successfully")
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(RefreshTokenCookieName)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Missing refresh token")
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.setRefreshCookie(c, "", -1)
		fail(c, err, "Could not refresh session")
		return
	}

	h.setRefreshCookie(c, tokens.RefreshToken, RefreshTokenMaxAge)
	responses.Success(c, http.StatusOK, tokens, "Token refreshed")
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshTokenCookieName, value, maxAge, "/api/v1/auth", "", h.secureCookies, true)
}
