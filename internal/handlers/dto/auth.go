package dto

type SignUpRequest struct {
	FullName string `json:"fullName" binding:"required,min=1,max=100"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type UpdateProfileRequest struct {
	FullName       *string `json:"full_name" binding:"omitempty,min=1,max=100"`
	ProfilePicture *string `json:"profile_picture" binding:"omitempty,max=2048"`
}
