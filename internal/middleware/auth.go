// Package middleware provides authentication and authorization middleware for the Gin web framework.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	contextutils "feedbackapp/internal/utils"
)

// Context keys for storing operator information on the gin context.
const (
	// UserIDKey is the key used to store the authenticated user ID
	UserIDKey = "user_id"
	// UserRoleKey is the key used to store the authenticated user's role
	UserRoleKey = "user_role"
)

// Redirect reasons appended to the login page URL when auth fails.
const (
	ReasonNoToken      = "no_token"
	ReasonInvalidToken = "invalid_token"
	ReasonTokenExpired = "token_expired"
	ReasonUserInactive = "user_inactive"
)

// UserGetter is the slice of the user service the middleware needs.
type UserGetter interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// RequireAuth returns a middleware that validates the access token cookie.
// Failures clear the cookie and redirect to the login page with a reason.
func RequireAuth(jwtManager *JWTManager, users UserGetter) gin.HandlerFunc {
	if jwtManager == nil {
		panic("RequireAuth: jwtManager is nil")
	}
	if users == nil {
		panic("RequireAuth: users is nil")
	}

	return func(c *gin.Context) {
		tokenString, err := c.Cookie(config.AccessTokenCookie)
		if err != nil || tokenString == "" {
			redirectToLogin(c, ReasonNoToken)
			return
		}

		userID, role, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				redirectToLogin(c, ReasonTokenExpired)
				return
			}
			redirectToLogin(c, ReasonInvalidToken)
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			redirectToLogin(c, ReasonInvalidToken)
			return
		}
		if !user.IsActive {
			redirectToLogin(c, ReasonUserInactive)
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UserRoleKey, role)

		ctx := contextutils.WithUserID(c.Request.Context(), userID)
		ctx = contextutils.WithUserRole(ctx, role)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole returns a middleware that rejects authenticated users whose
// role is not in the allowed set. It must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *gin.Context) {
		role, ok := c.Get(UserRoleKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}

		roleStr, ok := role.(string)
		if !ok || !allowed[roleStr] {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// redirectToLogin clears the token cookie and sends the caller to the login
// page with the failure reason in the query string.
func redirectToLogin(c *gin.Context, reason string) {
	ClearAccessTokenCookie(c)
	target := config.LoginRedirectTarget + "?error=" + url.QueryEscape(reason)
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// SetAccessTokenCookie writes the access token cookie with the configured
// lifetime and security flags.
func SetAccessTokenCookie(c *gin.Context, token string, maxAgeSeconds int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(config.AccessTokenCookie, token, maxAgeSeconds, config.CookiePath, "", secure, config.CookieHTTPOnly)
}

// ClearAccessTokenCookie expires the access token cookie.
func ClearAccessTokenCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(config.AccessTokenCookie, "", -1, config.CookiePath, "", false, config.CookieHTTPOnly)
}

// GetUserID returns the authenticated user ID from the gin context.
func GetUserID(c *gin.Context) (int, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(int)
	return id, ok
}

// GetUserRole returns the authenticated user's role from the gin context.
func GetUserRole(c *gin.Context) (string, bool) {
	value, ok := c.Get(UserRoleKey)
	if !ok {
		return "", false
	}
	role, ok := value.(string)
	return role, ok
}
