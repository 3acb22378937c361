package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrHeaderMissing   = errors.New("authorization header is missing")
	ErrHeaderFormat    = errors.New("authorization header must be 'Bearer <token>'")
	ErrTokenExpired    = errors.New("token has expired")
	ErrTokenInvalid    = errors.New("invalid token")
	ErrTokenWrongType  = errors.New("token has the wrong type")
	ErrEmptySigningKey = errors.New("signing key is empty")
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secretKey  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewJWTManager(secret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:  secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Generate creates an access token for userID.
func (m *JWTManager) Generate(userID string) (string, error) {
	return m.sign(userID, AccessToken, m.accessTTL)
}

// GenerateRefresh creates a long-lived refresh token for userID.
func (m *JWTManager) GenerateRefresh(userID string) (string, error) {
	return m.sign(userID, RefreshToken, m.refreshTTL)
}

func (m *JWTManager) sign(userID string, typ TokenType, ttl time.Duration) (string, error) {
	if m.secretKey == "" {
		return "", ErrEmptySigningKey
	}
	now := m.now()
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// Verify parses the token, checks signature and expiry, and requires it to be
// of the expected type. Errors are ErrTokenExpired, ErrTokenWrongType or
// ErrTokenInvalid.
func (m *JWTManager) Verify(rawToken string, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(rawToken, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Type != expected {
		return nil, ErrTokenWrongType
	}
	return claims, nil
}

// Expiry returns when a valid access token stops being accepted.
func (m *JWTManager) Expiry(accessToken string) (time.Time, error) {
	claims, err := m.Verify(accessToken, AccessToken)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

// ExtractTokenFromHeader extracts the token from the Authorization header.
func ExtractTokenFromHeader(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return "", ErrHeaderMissing
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrHeaderFormat
	}
	return strings.TrimSpace(parts[1]), nil
}
