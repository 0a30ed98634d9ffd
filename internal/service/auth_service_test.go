package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signTestToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func staffClaims(role models.UserRole, expires time.Time) *models.JWTClaims {
	return &models.JWTClaims{
		Email:       "ops@voyage.test",
		Role:        "authenticated",
		AppMetadata: models.AppMetadata{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "https://project.supabase.co/auth/v1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
}

func newTestAuth() *AuthService {
	return NewAuthService(nil, AuthConfig{
		Secret:     testSecret,
		Issuer:     "https://project.supabase.co/auth/v1",
		Audience:   "authenticated",
		StaffRoles: []string{"admin", "staff"},
	})
}

func TestValidateTokenAcceptsStaffToken(t *testing.T) {
	auth := newTestAuth()
	token := signTestToken(t, testSecret, staffClaims(models.RoleStaff, time.Now().Add(time.Hour)))

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, models.RoleStaff, claims.EffectiveRole())
	assert.True(t, auth.IsStaff(claims))
}

func TestValidateTokenRejections(t *testing.T) {
	auth := newTestAuth()

	cases := map[string]string{
		"expired":      signTestToken(t, testSecret, staffClaims(models.RoleStaff, time.Now().Add(-time.Hour))),
		"wrong secret": signTestToken(t, "another-secret-another-secret-another", staffClaims(models.RoleStaff, time.Now().Add(time.Hour))),
		"garbage":      "not-a-jwt",
	}
	wrongAudience := staffClaims(models.RoleStaff, time.Now().Add(time.Hour))
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}
	cases["wrong audience"] = signTestToken(t, testSecret, wrongAudience)

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ValidateToken(token)
			requireAppError(t, err, appErrors.ErrUnauthorized)
		})
	}
}

func TestIsStaffFallsBackToRoleClaim(t *testing.T) {
	auth := newTestAuth()

	customer := staffClaims("", time.Now().Add(time.Hour))
	assert.False(t, auth.IsStaff(customer))

	customer.Role = "admin"
	assert.True(t, auth.IsStaff(customer))
	assert.False(t, auth.IsStaff(nil))
}
