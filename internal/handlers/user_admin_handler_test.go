package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbackapp/internal/middleware"
	"feedbackapp/internal/models"
	contextutils "feedbackapp/internal/utils"
)

// newUserAdminRouter injects the caller's user ID the way RequireAuth does so
// the self-modification guards can be exercised without a token.
func newUserAdminRouter(t *testing.T, users *fakeUserService, callerID int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewUserAdminHandler(users, newTestLogger())
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, callerID)
		c.Set(middleware.UserRoleKey, models.RoleAdmin)
	})
	router.GET("/v1/admin/users", handler.ListUsers)
	router.POST("/v1/admin/users", handler.CreateUser)
	router.PUT("/v1/admin/users/:id/active", handler.SetUserActive)
	router.DELETE("/v1/admin/users/:id", handler.DeleteUser)
	return router
}

func TestListUsers_Success(t *testing.T) {
	users := &fakeUserService{}
	users.listFn = func(_ context.Context) ([]models.User, error) {
		return []models.User{
			{ID: 1, Email: "admin@example.com", Role: models.RoleAdmin},
			{ID: 2, Email: "ceo@example.com", Role: models.RoleCEO},
		}, nil
	}
	router := newUserAdminRouter(t, users, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Users, 2)
}

func TestCreateUser_Success(t *testing.T) {
	users := &fakeUserService{}
	router := newUserAdminRouter(t, users, 1)

	payload := gin.H{"email": "founder@example.com", "name": "Second Founder", "password": "longenoughpassword", "role": models.RoleFounder}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/v1/admin/users", payload))

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "founder@example.com", resp.User.Email)
	assert.Equal(t, "Second Founder", resp.User.Name)
}

func TestCreateUser_MissingFields(t *testing.T) {
	router := newUserAdminRouter(t, &fakeUserService{}, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/v1/admin/users", gin.H{"email": "x@example.com"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	users := &fakeUserService{}
	users.createFn = func(_ context.Context, email, name, password, role string) (*models.User, error) {
		return nil, contextutils.ErrRecordExists
	}
	router := newUserAdminRouter(t, users, 1)

	payload := gin.H{"email": "admin@example.com", "name": "Second Admin", "password": "longenoughpassword", "role": models.RoleAdmin}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/v1/admin/users", payload))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSetUserActive_Success(t *testing.T) {
	users := &fakeUserService{}
	router := newUserAdminRouter(t, users, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/users/2/active", gin.H{"is_active": false}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, users.setActiveCalls)
}

func TestSetUserActive_SelfRejected(t *testing.T) {
	users := &fakeUserService{}
	router := newUserAdminRouter(t, users, 2)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/users/2/active", gin.H{"is_active": false}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, users.setActiveCalls)
}

func TestSetUserActive_MissingFlag(t *testing.T) {
	users := &fakeUserService{}
	router := newUserAdminRouter(t, users, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/users/2/active", gin.H{}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUser_Success(t *testing.T) {
	users := &fakeUserService{}
	router := newUserAdminRouter(t, users, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/users/2", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, users.deleteCalls)
}

func TestDeleteUser_SelfRejected(t *testing.T) {
	users := &fakeUserService{}
	router := newUserAdminRouter(t, users, 2)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/users/2", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, users.deleteCalls)
}

func TestDeleteUser_NotFound(t *testing.T) {
	users := &fakeUserService{}
	users.deleteFn = func(_ context.Context, id int) error {
		return contextutils.ErrRecordNotFound
	}
	router := newUserAdminRouter(t, users, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/users/7", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
