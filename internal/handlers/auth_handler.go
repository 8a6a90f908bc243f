package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"feedbackapp/internal/config"
	"feedbackapp/internal/middleware"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"
)

// AuthHandler serves operator login and logout.
type AuthHandler struct {
	users      services.UserServiceInterface
	jwtManager *middleware.JWTManager
	cfg        *config.Config
	logger     *observability.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users services.UserServiceInterface, jwtManager *middleware.JWTManager, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtManager: jwtManager,
		cfg:        cfg,
		logger:     logger,
	}
}

// LoginRequest is the POST body for /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/auth/login. On success the access token is written
// to an HTTP-only cookie; the body never contains the token.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	user, err := h.users.AuthenticateUser(ctx, req.Email, req.Password)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid email or password",
				"code":  "INVALID_CREDENTIALS",
			})
			return
		}
		h.logger.Error(ctx, "login failed", err, nil)
		HandleAppError(c, err)
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		h.logger.Error(ctx, "token generation failed", err, nil)
		HandleAppError(c, err)
		return
	}

	maxAge := int(h.jwtManager.AccessTTL().Seconds())
	middleware.SetAccessTokenCookie(c, token, maxAge, h.cfg.Auth.CookieSecure)

	h.logger.Info(ctx, "Operator logged in", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout handles POST /v1/auth/logout. It clears the token cookie; tokens
// themselves stay valid until expiry since there is no revocation list.
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	middleware.ClearAccessTokenCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me handles GET /v1/auth/me for the authenticated operator.
func (h *AuthHandler) Me(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "me")
	defer observability.FinishSpan(span, nil)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
