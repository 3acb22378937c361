package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/whisper/internal/handlers/dto"
	"github.com/thereayou/whisper/internal/middleware"
	"github.com/thereayou/whisper/internal/response"
	"github.com/thereayou/whisper/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req dto.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Failed to create user", err)
		return
	}

	user, err := h.auth.SignUp(c.Request.Context(), services.SignUpInput{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, "Failed to create user", err)
		return
	}

	response.OK(c, http.StatusCreated, "User created successfully", gin.H{"user": user})
}

// Login issues an access and a refresh token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Login failed", err)
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		writeError(c, "User not found", err)
		return
	}

	response.OK(c, http.StatusOK, "Login successful", res)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Token refresh failed", err)
		return
	}

	res, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, "Token refresh failed", err)
		return
	}

	response.OK(c, http.StatusOK, "Token refreshed", res)
}

// Logout revokes the presented access token until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.CurrentToken(c)); err != nil {
		writeError(c, "Logout failed", err)
		return
	}

	response.OK(c, http.StatusOK, "Logged out", nil)
}
