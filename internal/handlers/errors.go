package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/middlewares"
	"dbmlviewer/internal/responses"
	"dbmlviewer/internal/services"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, services.ErrDiagramNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSaveInProgress), errors.Is(err, services.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrDBMLTooLarge), errors.Is(err, services.ErrCanvasTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrInvalidSchema):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrNameTooLong),
		errors.Is(err, services.ErrDescriptionTooLong),
		errors.Is(err, services.ErrInvalidCanvas),
		errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// bindStatus is the status for a request body that failed to decode.
func bindStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// userID returns the authenticated user set by middlewares.Authenticate.
func userID(c *gin.Context) (string, bool) {
	id := c.GetString(middlewares.UserIDKey)
	return id, id != ""
}

func fail(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	responses.Fail(c, status, err, message)
}
