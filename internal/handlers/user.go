package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/whisper/internal/handlers/dto"
	"github.com/thereayou/whisper/internal/middleware"
	"github.com/thereayou/whisper/internal/response"
	"github.com/thereayou/whisper/internal/services"
)

type UserHandler struct {
	auth          *services.AuthService
	users         *services.UserService
	relationships *services.RelationshipService
}

func NewUserHandler(authService *services.AuthService, users *services.UserService, relationships *services.RelationshipService) *UserHandler {
	return &UserHandler{auth: authService, users: users, relationships: relationships}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	response.OK(c, http.StatusOK, "User fetched successfully", gin.H{
		"id":              user.ID,
		"full_name":       user.FullName,
		"username":        user.Username,
		"email":           user.Email,
		"profile_picture": user.ProfilePicture,
		"created_at":      user.CreatedAt,
		"last_seen_at":    user.LastSeenAt,
	})
}

// UpdateMe changes only the fields present in the body.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Failed to update user", err)
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c), services.ProfileUpdate{
		FullName:       req.FullName,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		writeError(c, "Failed to update user", err)
		return
	}

	response.OK(c, http.StatusOK, "User updated successfully", user)
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.auth.DeleteAccount(c.Request.Context(), user.ID, middleware.CurrentToken(c)); err != nil {
		writeError(c, "Failed to delete user", err)
		return
	}
	response.OK(c, http.StatusOK, "User deleted successfully", nil)
}

// Search lists other users matching ?query with the caller's relationship to each.
func (h *UserHandler) Search(c *gin.Context) {
	var q dto.UserSearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, "Failed to search users", err)
		return
	}

	page, err := h.users.Search(c.Request.Context(), middleware.CurrentUser(c).ID, q.Query, q.Page, q.PerPage)
	if err != nil {
		writeError(c, "Failed to search users", err)
		return
	}

	response.OK(c, http.StatusOK, "Users fetched successfully", page)
}

func (h *UserHandler) Relationship(c *gin.Context) {
	other := c.Param("id")
	rel, err := h.relationships.Status(c.Request.Context(), middleware.CurrentUser(c).ID, other)
	if err != nil {
		writeError(c, "Failed to fetch relationship", err)
		return
	}
	response.OK(c, http.StatusOK, "Relationship fetched successfully", rel)
}
