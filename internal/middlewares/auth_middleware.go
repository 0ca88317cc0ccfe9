package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/responses"
	"dbmlviewer/internal/utils"
)

// Context keys set by Authenticate.
const (
	UserIDKey  = "userId"
	TokenIDKey = "tokenId"
)

// TokenVerifier checks an access token, including revocation.
type TokenVerifier interface {
	Authenticate(ctx context.Context, accessToken string) (*utils.Claims, error)
}

func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			responses.Abort(c, http.StatusUnauthorized, nil, "Missing Authorization header")
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			responses.Abort(c, http.StatusUnauthorized, nil, "Invalid Authorization format")
			return
		}

		claims, err := verifier.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			responses.Abort(c, http.StatusUnauthorized, err, "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(TokenIDKey, claims.ID)

		c.Next()
	}
}
