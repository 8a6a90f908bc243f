package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	contextutils "feedbackapp/internal/utils"
)

// ErrTokenExpired is returned by ValidateAccessToken when the token signature
// is valid but the expiry has passed. Callers use it to pick the redirect
// reason shown on the login page.
var ErrTokenExpired = errors.New("token expired")

// JWTManager signs and validates HS256 access tokens.
type JWTManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
}

// NewJWTManager creates a new JWT manager. The secret should be at least 32
// characters for HS256 security.
func NewJWTManager(secret, issuer string, accessTTL time.Duration) *JWTManager {
	if secret == "" {
		panic("NewJWTManager: secret is empty")
	}
	return &JWTManager{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
	}
}

// accessClaims extends the registered JWT claims with the operator's role.
type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// AccessTTL returns the configured token lifetime.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// GenerateAccessToken creates a signed HS256 JWT with the user ID as subject
// and the role as a custom claim.
func (m *JWTManager) GenerateAccessToken(userID int, role string) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to sign token")
	}
	return signed, nil
}

// ValidateAccessToken parses and validates an access token, returning the
// user ID and role. Expired tokens yield ErrTokenExpired.
func (m *JWTManager) ValidateAccessToken(tokenString string) (int, string, error) {
	if tokenString == "" {
		return 0, "", contextutils.WrapError(contextutils.ErrUnauthorized, "token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, contextutils.ErrorWithContextf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, "", ErrTokenExpired
		}
		return 0, "", contextutils.WrapError(err, "failed to parse token")
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return 0, "", contextutils.WrapError(contextutils.ErrUnauthorized, "invalid token claims")
	}
	if claims.Issuer != m.issuer {
		return 0, "", contextutils.WrapErrorf(contextutils.ErrUnauthorized, "invalid issuer: %s", claims.Issuer)
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, "", contextutils.WrapError(contextutils.ErrUnauthorized, "invalid subject")
	}
	return userID, claims.Role, nil
}
