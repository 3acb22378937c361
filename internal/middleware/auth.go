package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/whisper/internal/models"
	"github.com/thereayou/whisper/internal/response"
	"github.com/thereayou/whisper/internal/services"
	"github.com/thereayou/whisper/pkg/auth"
)

const (
	UserKey  = "user"
	TokenKey = "token"
)

type AuthFailure string

const (
	FailureNone               AuthFailure = ""
	FailureTokenMissing       AuthFailure = "AUTH_TOKEN_MISSING"
	FailureTokenInvalidFormat AuthFailure = "AUTH_TOKEN_INVALID_FORMAT"
	FailureTokenExpired       AuthFailure = "AUTH_TOKEN_EXPIRED"
	FailureTokenInvalid       AuthFailure = "AUTH_TOKEN_INVALID"
	FailureTokenRevoked       AuthFailure = "AUTH_TOKEN_REVOKED"
	FailureUserNotFound       AuthFailure = "AUTH_USER_NOT_FOUND"
	FailureDatabase           AuthFailure = "AUTH_DATABASE_ERROR"
)

var failureText = map[AuthFailure][2]string{
	FailureTokenMissing:       {"Authentication denied", "Authentication token is missing."},
	FailureTokenInvalidFormat: {"Invalid token format", "Authentication token must start with 'Bearer '"},
	FailureTokenExpired:       {"Authentication token expired", "Authentication token has expired. Please login again."},
	FailureTokenInvalid:       {"Invalid authentication token", "The authentication token is invalid."},
	FailureTokenRevoked:       {"Authentication token revoked", "The authentication token has been revoked. Please login again."},
	FailureUserNotFound:       {"User not found", "The user for this token no longer exists."},
	FailureDatabase:           {"Database error", "Could not verify the authentication token."},
}

// TokenResolver maps an access token to its user.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.User, error)
}

// AuthResult is either an authenticated user or the reason authentication
// failed.
type AuthResult struct {
	User    *models.User
	Token   string
	Failure AuthFailure
}

func (r AuthResult) OK() bool {
	return r.Failure == FailureNone && r.User != nil
}

func (r AuthResult) Status() int {
	if r.Failure == FailureDatabase {
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

func (r AuthResult) Error() string {
	return failureText[r.Failure][0]
}

func (r AuthResult) Message() string {
	return failureText[r.Failure][1]
}

// Authenticate resolves the bearer token of an HTTP request.
func Authenticate(r *http.Request, resolver TokenResolver) AuthResult {
	token, err := auth.ExtractTokenFromHeader(r)
	switch {
	case errors.Is(err, auth.ErrHeaderMissing):
		return AuthResult{Failure: FailureTokenMissing}
	case err != nil:
		return AuthResult{Failure: FailureTokenInvalidFormat}
	}
	return resolve(r.Context(), resolver, token)
}

// AuthenticateSocket accepts the token as a "token" query parameter or as a
// bearer Authorization header, since browsers cannot set headers on a
// websocket handshake.
func AuthenticateSocket(r *http.Request, resolver TokenResolver) AuthResult {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return resolve(r.Context(), resolver, token)
	}
	return Authenticate(r, resolver)
}

func resolve(ctx context.Context, resolver TokenResolver, token string) AuthResult {
	user, err := resolver.ResolveToken(ctx, token)
	if err == nil {
		return AuthResult{User: user, Token: token}
	}

	result := AuthResult{Token: token}
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		result.Failure = FailureTokenExpired
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenWrongType):
		result.Failure = FailureTokenInvalid
	case errors.Is(err, services.ErrTokenRevoked):
		result.Failure = FailureTokenRevoked
	case errors.Is(err, services.ErrUserNotFound):
		result.Failure = FailureUserNotFound
	default:
		slog.Error("resolve token failed", "error", err)
		result.Failure = FailureDatabase
	}
	return result
}

// AuthMiddleware requires a valid bearer access token.
func AuthMiddleware(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		abortOrSet(c, Authenticate(c.Request, resolver))
	}
}

// WSAuthMiddleware authenticates the websocket handshake before upgrade.
func WSAuthMiddleware(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		abortOrSet(c, AuthenticateSocket(c.Request, resolver))
	}
}

func abortOrSet(c *gin.Context, result AuthResult) {
	if !result.OK() {
		response.Abort(c, result.Status(), result.Message(), result.Error(), string(result.Failure))
		return
	}
	c.Set(UserKey, result.User)
	c.Set(TokenKey, result.Token)
	c.Next()
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) *models.User {
	return c.MustGet(UserKey).(*models.User)
}

func CurrentToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
