package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/whisper/internal/response"
	"github.com/thereayou/whisper/internal/services"
	"github.com/thereayou/whisper/pkg/auth"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorTable = []errorMapping{
	{services.ErrInvalidTarget, http.StatusBadRequest, "INVALID_TARGET"},
	{services.ErrAlreadyFriends, http.StatusBadRequest, "ALREADY_FRIENDS"},
	{services.ErrDuplicateRequest, http.StatusBadRequest, "DUPLICATE_REQUEST"},
	{services.ErrAlreadyResolved, http.StatusBadRequest, "ALREADY_RESOLVED"},
	{services.ErrInvalidDecision, http.StatusBadRequest, "INVALID_STATUS"},
	{services.ErrInvalidMessage, http.StatusBadRequest, "INVALID_MESSAGE"},
	{services.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{services.ErrRequestNotFound, http.StatusNotFound, "REQUEST_NOT_FOUND"},
	{services.ErrChatNotFound, http.StatusNotFound, "CHAT_NOT_FOUND"},
	{services.ErrInvalidCredentials, http.StatusNotFound, "INVALID_CREDENTIALS"},
	{services.ErrForbidden, http.StatusForbidden, "NOT_A_MEMBER"},
	{services.ErrUsernameTaken, http.StatusConflict, "USERNAME_TAKEN"},
	{services.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN"},
	{services.ErrTokenRevoked, http.StatusUnauthorized, "AUTH_TOKEN_REVOKED"},
	{auth.ErrTokenExpired, http.StatusUnauthorized, "AUTH_TOKEN_EXPIRED"},
	{auth.ErrTokenWrongType, http.StatusUnauthorized, "AUTH_TOKEN_INVALID"},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, "AUTH_TOKEN_INVALID"},
}

// errorStatus maps a service error to its HTTP status and error code.
// Unknown errors are internal.
func errorStatus(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeError writes the failure envelope for err. Internal errors are logged
// and their text is not exposed.
func writeError(c *gin.Context, message string, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(message, "method", c.Request.Method, "path", c.FullPath(), "error", err)
		response.Internal(c)
		return
	}
	response.Fail(c, status, message, err.Error(), code)
}

func writeBindError(c *gin.Context, message string, err error) {
	response.Fail(c, http.StatusBadRequest, message, err.Error(), "VALIDATION_ERROR")
}
