package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbackapp/internal/config"
	"feedbackapp/internal/middleware"
	"feedbackapp/internal/models"
	contextutils "feedbackapp/internal/utils"
)

func newAuthTestRouter(t *testing.T, users *fakeUserService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	jwtManager := middleware.NewJWTManager("test-secret-key-for-auth-tests", "feedbackapp", 480*time.Minute)
	handler := NewAuthHandler(users, jwtManager, cfg, newTestLogger())

	router := gin.New()
	router.POST("/v1/auth/login", handler.Login)
	router.POST("/v1/auth/logout", handler.Logout)
	router.GET("/v1/auth/me", middleware.RequireAuth(jwtManager, users), handler.Me)
	return router
}

func loginRequest(t *testing.T, email, password string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLogin_Success(t *testing.T) {
	users := &fakeUserService{}
	users.authenticateFn = func(_ context.Context, email, password string) (*models.User, error) {
		if email == "admin@example.com" && password == "changeme-admin" {
			return &models.User{ID: 1, Email: email, Role: models.RoleAdmin, IsActive: true}, nil
		}
		return nil, contextutils.ErrInvalidCredentials
	}
	router := newAuthTestRouter(t, users)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, loginRequest(t, "admin@example.com", "changeme-admin"))

	require.Equal(t, http.StatusOK, w.Code)

	var tokenCookie *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == config.AccessTokenCookie {
			tokenCookie = cookie
		}
	}
	require.NotNil(t, tokenCookie, "expected %s cookie", config.AccessTokenCookie)
	assert.NotEmpty(t, tokenCookie.Value)
	assert.True(t, tokenCookie.HttpOnly)
	assert.Equal(t, int((480 * time.Minute).Seconds()), tokenCookie.MaxAge)

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "admin@example.com", resp.User.Email)

	// Password hash must never leak into responses.
	assert.NotContains(t, w.Body.String(), "password")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	router := newAuthTestRouter(t, &fakeUserService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, loginRequest(t, "admin@example.com", "wrong"))

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CREDENTIALS", resp["code"])
	assert.Empty(t, w.Result().Cookies())
}

func TestLogin_MalformedBody(t *testing.T) {
	router := newAuthTestRouter(t, &fakeUserService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader([]byte(`{"email":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	router := newAuthTestRouter(t, &fakeUserService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil))

	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, config.AccessTokenCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestMe_ReturnsAuthenticatedUser(t *testing.T) {
	user := &models.User{ID: 5, Email: "ceo@example.com", Role: models.RoleCEO, IsActive: true}
	users := &fakeUserService{}
	users.getByIDFn = func(_ context.Context, id int) (*models.User, error) {
		if id == user.ID {
			return user, nil
		}
		return nil, contextutils.ErrRecordNotFound
	}
	router := newAuthTestRouter(t, users)

	jwtManager := middleware.NewJWTManager("test-secret-key-for-auth-tests", "feedbackapp", 480*time.Minute)
	token, err := jwtManager.GenerateAccessToken(user.ID, user.Role)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: config.AccessTokenCookie, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ceo@example.com", resp.User.Email)
	assert.Equal(t, models.RoleCEO, resp.User.Role)
}

func TestMe_WithoutTokenRedirects(t *testing.T) {
	router := newAuthTestRouter(t, &fakeUserService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil))

	assert.Equal(t, http.StatusFound, w.Code)
}
