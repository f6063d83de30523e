package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the entire security principal: there are no user accounts,
// only a shared secret per role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
	RoleNone   Role = ""
)

// AuthService resolves a presented credential to a role. The credential
// is either one of the two configured shared secrets or a session token
// previously issued by CreateToken.
type AuthService struct {
	adminKey  string
	viewerKey string
	jwtSecret []byte
}

func NewAuthService(adminKey, viewerKey, jwtSecret string) *AuthService {
	return &AuthService{
		adminKey:  strings.TrimSpace(adminKey),
		viewerKey: strings.TrimSpace(viewerKey),
		jwtSecret: []byte(jwtSecret),
	}
}

// ResolveRole maps a credential to a role, or RoleNone. Raw shared
// secrets are matched exactly (trimmed); anything else is tried as a
// session token. Kept as a single pure function so a real identity
// provider could replace it without touching any handler.
func (s *AuthService) ResolveRole(credential string) Role {
	key := strings.TrimSpace(credential)
	if key == "" {
		return RoleNone
	}
	if s.adminKey != "" && key == s.adminKey {
		return RoleAdmin
	}
	if s.viewerKey != "" && key == s.viewerKey {
		return RoleViewer
	}
	if role, err := s.verifyToken(key); err == nil {
		return role
	}
	return RoleNone
}

// CreateToken issues a signed session token carrying the role, so the
// client does not have to hold the shared secret past login.
func (s *AuthService) CreateToken(role Role) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": string(role),
		"exp":  time.Now().Add(time.Hour * 24 * 7).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (s *AuthService) verifyToken(tokenString string) (Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return RoleNone, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return RoleNone, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return RoleNone, errors.New("invalid token claims")
	}

	switch claims["role"] {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleViewer):
		return RoleViewer, nil
	}
	return RoleNone, errors.New("role claim missing")
}
