package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the JSON envelope of every REST response.
type Body struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ErrorData struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

func OK(c *gin.Context, status int, message string, data any) {
	if message == "" {
		message = "Request was successful"
	}
	c.JSON(status, Body{Success: true, Message: message, Data: data})
}

func Fail(c *gin.Context, status int, message, errText, code string) {
	if message == "" {
		message = "Request failed"
	}
	c.JSON(status, Body{
		Success: false,
		Message: message,
		Data:    ErrorData{Error: errText, ErrorCode: code},
	})
}

// Abort writes a failure envelope and stops the handler chain.
func Abort(c *gin.Context, status int, message, errText, code string) {
	Fail(c, status, message, errText, code)
	c.Abort()
}

func Internal(c *gin.Context) {
	Fail(c, http.StatusInternalServerError, "An internal server error occurred", "internal error", "INTERNAL_ERROR")
}
