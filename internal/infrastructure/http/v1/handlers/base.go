// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
	"vintrack/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID parses a path or body field as an entity id. Reports a
// validation error naming the field on failure.
func (h *BaseHandler) ParseID(c *gin.Context, field, value string) (id.ID, bool) {
	parsed, err := id.Parse(value)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+field+" format"))
		return id.Nil(), false
	}
	return parsed, true
}

// PathID parses the named path parameter as an entity id.
func (h *BaseHandler) PathID(c *gin.Context, name string) (id.ID, bool) {
	return h.ParseID(c, name, c.Param(name))
}

// ParseLWIN18 parses and validates a full wine identifier.
func (h *BaseHandler) ParseLWIN18(c *gin.Context, value string) (types.LWIN18, bool) {
	lwin, err := types.ParseLWIN18(value)
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return "", false
	}
	return lwin, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// Created sends 201 response with ID.
func (h *BaseHandler) Created(c *gin.Context, entityID id.ID) {
	c.JSON(http.StatusCreated, dto.NewIDResponse(entityID))
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Success sends success response.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: message})
}
