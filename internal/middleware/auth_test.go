package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
)

const testSecret = "test-secret-key-0123456789abcdef"

type fakeUserGetter struct {
	user *models.User
	err  error
}

func (f *fakeUserGetter) GetUserByID(_ context.Context, _ int) (*models.User, error) {
	return f.user, f.err
}

func activeUser() *models.User {
	return &models.User{ID: 1, Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true}
}

func newAuthRouter(t *testing.T, manager *JWTManager, users UserGetter, roles ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handlers := []gin.HandlerFunc{RequireAuth(manager, users)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := GetUserID(c)
		role, _ := GetUserRole(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id, "role": role})
	})

	router.GET("/protected", handlers...)
	return router
}

func requestWithToken(t *testing.T, router *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: config.AccessTokenCookie, Value: token})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_ValidToken(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	token, err := manager.GenerateAccessToken(1, models.RoleAdmin)
	require.NoError(t, err)

	router := newAuthRouter(t, manager, &fakeUserGetter{user: activeUser()})
	w := requestWithToken(t, router, token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":1`)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}

func TestRequireAuth_NoToken(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	router := newAuthRouter(t, manager, &fakeUserGetter{user: activeUser()})

	w := requestWithToken(t, router, "")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, config.LoginRedirectTarget+"?error=no_token", w.Header().Get("Location"))
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	router := newAuthRouter(t, manager, &fakeUserGetter{user: activeUser()})

	w := requestWithToken(t, router, "not-a-jwt")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, config.LoginRedirectTarget+"?error=invalid_token", w.Header().Get("Location"))
}

func TestRequireAuth_WrongSecret(t *testing.T) {
	other := NewJWTManager("another-secret-key-0123456789abcd", "feedbackapp", time.Hour)
	token, err := other.GenerateAccessToken(1, models.RoleAdmin)
	require.NoError(t, err)

	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	router := newAuthRouter(t, manager, &fakeUserGetter{user: activeUser()})
	w := requestWithToken(t, router, token)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, config.LoginRedirectTarget+"?error=invalid_token", w.Header().Get("Location"))
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	expired := NewJWTManager(testSecret, "feedbackapp", -time.Minute)
	token, err := expired.GenerateAccessToken(1, models.RoleAdmin)
	require.NoError(t, err)

	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	router := newAuthRouter(t, manager, &fakeUserGetter{user: activeUser()})
	w := requestWithToken(t, router, token)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, config.LoginRedirectTarget+"?error=token_expired", w.Header().Get("Location"))
}

func TestRequireAuth_InactiveUser(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	token, err := manager.GenerateAccessToken(1, models.RoleAdmin)
	require.NoError(t, err)

	user := activeUser()
	user.IsActive = false
	router := newAuthRouter(t, manager, &fakeUserGetter{user: user})
	w := requestWithToken(t, router, token)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, config.LoginRedirectTarget+"?error=user_inactive", w.Header().Get("Location"))
}

func TestRequireAuth_UserLookupFails(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	token, err := manager.GenerateAccessToken(1, models.RoleAdmin)
	require.NoError(t, err)

	router := newAuthRouter(t, manager, &fakeUserGetter{err: errors.New("user not found")})
	w := requestWithToken(t, router, token)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, config.LoginRedirectTarget+"?error=invalid_token", w.Header().Get("Location"))
}

func TestRequireAuth_ClearsCookieOnFailure(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	router := newAuthRouter(t, manager, &fakeUserGetter{user: activeUser()})

	w := requestWithToken(t, router, "garbage")

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	var found bool
	for _, cookie := range cookies {
		if cookie.Name == config.AccessTokenCookie {
			found = true
			assert.Empty(t, cookie.Value)
			assert.Negative(t, cookie.MaxAge)
		}
	}
	assert.True(t, found)
}

func TestRequireRole_Allowed(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	token, err := manager.GenerateAccessToken(1, models.RoleAdmin)
	require.NoError(t, err)

	router := newAuthRouter(t, manager, &fakeUserGetter{user: activeUser()}, models.RoleAdmin)
	w := requestWithToken(t, router, token)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	token, err := manager.GenerateAccessToken(2, models.RoleFounder)
	require.NoError(t, err)

	user := activeUser()
	user.ID = 2
	user.Role = models.RoleFounder
	router := newAuthRouter(t, manager, &fakeUserGetter{user: user}, models.RoleAdmin)
	w := requestWithToken(t, router, token)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
}

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)

	token, err := manager.GenerateAccessToken(42, models.RoleCEO)
	require.NoError(t, err)

	userID, role, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
	assert.Equal(t, models.RoleCEO, role)
}

func TestJWTManager_WrongIssuer(t *testing.T) {
	issuerA := NewJWTManager(testSecret, "issuer-a", time.Hour)
	issuerB := NewJWTManager(testSecret, "issuer-b", time.Hour)

	token, err := issuerA.GenerateAccessToken(1, models.RoleAdmin)
	require.NoError(t, err)

	_, _, err = issuerB.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTManager_EmptyToken(t *testing.T) {
	manager := NewJWTManager(testSecret, "feedbackapp", time.Hour)
	_, _, err := manager.ValidateAccessToken("")
	require.Error(t, err)
}
