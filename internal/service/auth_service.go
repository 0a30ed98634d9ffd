package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
)

// AuthConfig defines how access tokens issued by the identity provider are verified.
type AuthConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	StaffRoles []string
	Leeway     time.Duration
}

// AuthService verifies Supabase-style HS256 access tokens.
type AuthService struct {
	logger     *zap.Logger
	config     AuthConfig
	staffRoles map[models.UserRole]struct{}
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Leeway <= 0 {
		config.Leeway = 30 * time.Second
	}
	roles := make(map[models.UserRole]struct{}, len(config.StaffRoles))
	for _, r := range config.StaffRoles {
		if r = strings.TrimSpace(r); r != "" {
			roles[models.UserRole(r)] = struct{}{}
		}
	}
	return &AuthService{logger: logger, config: config, staffRoles: roles}
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.config.Leeway),
		jwt.WithExpirationRequired(),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		s.logger.Debug("rejected access token", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// IsStaff reports whether the token's effective role may manage calendars.
func (s *AuthService) IsStaff(claims *models.JWTClaims) bool {
	if claims == nil {
		return false
	}
	_, ok := s.staffRoles[claims.EffectiveRole()]
	return ok
}
