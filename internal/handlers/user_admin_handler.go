package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"feedbackapp/internal/middleware"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"
)

// UserAdminHandler serves operator account management. Routes are restricted
// to the admin role.
type UserAdminHandler struct {
	users  services.UserServiceInterface
	logger *observability.Logger
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(users services.UserServiceInterface, logger *observability.Logger) *UserAdminHandler {
	return &UserAdminHandler{
		users:  users,
		logger: logger,
	}
}

// ListUsers handles GET /v1/admin/users.
func (h *UserAdminHandler) ListUsers(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_users")
	defer observability.FinishSpan(span, nil)

	users, err := h.users.ListUsers(ctx)
	if err != nil {
		h.logger.Error(ctx, "list users failed", err, nil)
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUserRequest is the POST body for /v1/admin/users.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// CreateUser handles POST /v1/admin/users.
func (h *UserAdminHandler) CreateUser(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_user")
	defer observability.FinishSpan(span, nil)

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "invalid request body"))
		return
	}

	user, err := h.users.CreateUser(ctx, req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// ToggleActiveRequest is the POST body for activation changes.
type ToggleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetUserActive handles PUT /v1/admin/users/:id/active. Operators cannot
// deactivate themselves.
func (h *UserAdminHandler) SetUserActive(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "set_user_active")
	defer observability.FinishSpan(span, nil)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleAppError(c, contextutils.ErrInvalidFormat)
		return
	}

	if callerID, ok := middleware.GetUserID(c); ok && callerID == id {
		HandleValidationError(c, "id", id, "cannot change your own active state")
		return
	}

	var req ToggleActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "invalid request body"))
		return
	}

	if err := h.users.SetUserActive(ctx, id, *req.IsActive); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": *req.IsActive})
}

// DeleteUser handles DELETE /v1/admin/users/:id. Operators cannot delete
// themselves.
func (h *UserAdminHandler) DeleteUser(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_user")
	defer observability.FinishSpan(span, nil)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleAppError(c, contextutils.ErrInvalidFormat)
		return
	}

	if callerID, ok := middleware.GetUserID(c); ok && callerID == id {
		HandleValidationError(c, "id", id, "cannot delete your own account")
		return
	}

	if err := h.users.DeleteUser(ctx, id); err != nil {
		HandleAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
