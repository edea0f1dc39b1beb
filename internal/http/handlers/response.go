// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint: the error
// envelope, the mapping from service errors to HTTP results, and small
// success helpers.
//
// Example error response:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "bad_request",
//	  "message": "validation failed",
//	  "details": { "ingredients[0].amount": "must be greater than 0" }
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/media"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"recipe not found"`
	// Field-level problems, keyed by JSON field path
	Details map[string]string `json:"details,omitempty"`
}

// fail aborts the request with a structured error. 5xx responses are logged
// through the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failWithDetails(c, status, code, msg, nil)
}

func failWithDetails(c *gin.Context, status int, code, msg string, details map[string]string) {
	resp := ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
		Details:   details,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error onto the HTTP taxonomy:
//
//	not-found sentinels               404 not_found
//	*RelationError / conflicts         409 conflict
//	*ValidationError, invalid image    400 bad_request (+details)
//	ErrForbidden                       403 forbidden
//	anything else                      500 internal_error
//
// Unexpected errors are logged with their cause but never echoed to clients.
func failErr(c *gin.Context, err error) {
	var (
		verr *services.ValidationError
		rerr *services.RelationError
	)
	switch {
	case errors.As(err, &verr):
		failWithDetails(c, http.StatusBadRequest, ErrCodeBadRequest, "validation failed", verr.Fields)
	case errors.Is(err, media.ErrInvalidImage):
		failWithDetails(c, http.StatusBadRequest, ErrCodeBadRequest, "validation failed",
			map[string]string{"image": err.Error()})
	case errors.As(err, &rerr):
		fail(c, http.StatusConflict, ErrCodeConflict, rerr.Error())
	case errors.Is(err, services.ErrAlreadyRelated),
		errors.Is(err, services.ErrNotRelated),
		errors.Is(err, services.ErrSelfSubscription):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrRecipeNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTagNotFound),
		errors.Is(err, services.ErrIngredientNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	default:
		_ = c.Error(err)
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// bindJSON decodes the request body into dst, answering 413 for oversized
// bodies and 400 for malformed JSON. It reports whether decoding succeeded.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
			return false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
