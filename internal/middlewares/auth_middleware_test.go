package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"dbmlviewer/internal/utils"
)

type staticVerifier map[string]*utils.Claims

func (v staticVerifier) Authenticate(_ context.Context, token string) (*utils.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("unknown token")
}

func TestAuthenticate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := staticVerifier{"good": {RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1", Subject: "user-1"}}}

	router := gin.New()
	router.Use(BodyLimit(8))
	router.POST("/me", Authenticate(verifier), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey)+"/"+c.GetString(TokenIDKey))
	})

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, "Missing Authorization header"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "Invalid Authorization format"},
		{"unknown", "Bearer bad", http.StatusUnauthorized, "Invalid or expired token"},
		{"valid", "Bearer good", http.StatusOK, "user-1/jti-1"},
		{"lowercase scheme", "bearer good", http.StatusOK, "user-1/jti-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(BodyLimit(4))
	router.POST("/", func(c *gin.Context) {
		data, err := c.GetRawData()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(data))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abcd")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abcde")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
