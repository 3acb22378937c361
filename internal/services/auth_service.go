package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/whisper/internal/database"
	"github.com/thereayou/whisper/internal/models"
	"github.com/thereayou/whisper/pkg/auth"
)

// TokenBlacklist stores revoked access tokens until they expire.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type SignUpInput struct {
	FullName string
	Username string
	Email    string
	Password string
}

type AuthResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
}

type ProfileUpdate struct {
	FullName       *string
	ProfilePicture *string
}

type AuthService struct {
	db        *database.Database
	jwt       *auth.JWTManager
	blacklist TokenBlacklist
}

func NewAuthService(db *database.Database, jwt *auth.JWTManager, blacklist TokenBlacklist) *AuthService {
	return &AuthService{db: db, jwt: jwt, blacklist: blacklist}
}

// SignUp creates a user with a bcrypt password hash.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	usernameTaken, emailTaken, err := s.db.UsernameOrEmailTaken(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if emailTaken {
		return nil, ErrEmailTaken
	}
	if usernameTaken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		FullName:     strings.TrimSpace(in.FullName),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.SaveUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	slog.Info("user signed up", "user", user.ID, "username", user.Username)
	return user, nil
}

// Login accepts either the username or the email together with the password.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*AuthResponse, error) {
	login := strings.TrimSpace(usernameOrEmail)
	user, err := s.db.FindUserByLogin(ctx, login)
	if errors.Is(err, database.ErrNotFound) && strings.Contains(login, "@") {
		user, err = s.db.FindUserByEmail(ctx, strings.ToLower(login))
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.db.UpdateLastSeen(ctx, user.ID); err != nil {
		slog.Warn("update last seen failed", "user", user.ID, "error", err)
	}

	return s.issue(user)
}

// Refresh trades a refresh token for a new access token. The refresh token
// itself is returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwt.Verify(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.db.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	token, err := s.jwt.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResponse{Token: token, RefreshToken: refreshToken, User: user}, nil
}

// Logout revokes an access token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	exp, err := s.jwt.Expiry(accessToken)
	if err != nil {
		return err
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	if err := s.blacklist.Revoke(ctx, accessToken, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ResolveToken maps an access token to its live user. Errors are
// auth.ErrTokenExpired, auth.ErrTokenInvalid, auth.ErrTokenWrongType,
// ErrTokenRevoked or ErrUserNotFound.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.jwt.Verify(token, auth.AccessToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.db.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, upd ProfileUpdate) (*models.User, error) {
	if upd.FullName != nil {
		user.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.ProfilePicture != nil {
		user.ProfilePicture = strings.TrimSpace(*upd.ProfilePicture)
	}
	if err := s.db.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteAccount soft-deletes the user and revokes the token used for the call.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, accessToken string) error {
	if err := s.db.SoftDeleteUser(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if accessToken != "" {
		if err := s.Logout(ctx, accessToken); err != nil {
			slog.Warn("revoke token after account deletion failed", "user", userID, "error", err)
		}
	}
	slog.Info("user deleted", "user", userID)
	return nil
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	token, err := s.jwt.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	refresh, err := s.jwt.GenerateRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &AuthResponse{Token: token, RefreshToken: refresh, User: user}, nil
}
