// Package handler implements the admin HTTP endpoints.
package handler

import (
	"github.com/gin-gonic/gin"
)

// ErrorInfo is the body of every error response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidInput = "INVALID_INPUT"
	CodeUnavailable  = "STORE_UNAVAILABLE"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorInfo{Code: code, Message: message}})
}
