package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope. On failure Error carries a
// stable, machine-readable code (e.g. "question_not_found").
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Generic codes shared by all handlers.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal_error"
)

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Done sends 200 with {"ok": true}.
func Done(c *gin.Context) {
	OK(c, gin.H{"ok": true})
}

// Fail sends an error envelope with the given status and code.
func Fail(c *gin.Context, status int, code string) {
	c.JSON(status, Body{Success: false, Error: code})
}

// BadRequest sends 400 with error code.
func BadRequest(c *gin.Context, code string) {
	Fail(c, http.StatusBadRequest, code)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, code string) {
	Fail(c, http.StatusUnauthorized, code)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, code string) {
	Fail(c, http.StatusForbidden, code)
}

// NotFound sends 404.
func NotFound(c *gin.Context, code string) {
	Fail(c, http.StatusNotFound, code)
}

// Conflict sends 409.
func Conflict(c *gin.Context, code string) {
	Fail(c, http.StatusConflict, code)
}

// Internal sends 500 with the generic internal code; details stay in server logs.
func Internal(c *gin.Context) {
	Fail(c, http.StatusInternalServerError, CodeInternal)
}
