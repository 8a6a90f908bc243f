// Package handlers provides HTTP handlers for the feedback backend.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/middleware"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	"feedbackapp/internal/version"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// NewRouter creates a fully configured gin router with all routes registered.
func NewRouter(
	cfg *config.Config,
	submissionService services.SubmissionServiceInterface,
	rateLimitService services.RateLimitServiceInterface,
	userService services.UserServiceInterface,
	enqueuer Enqueuer,
	jwtManager *middleware.JWTManager,
	logger *observability.Logger,
) *gin.Engine {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = false

	router.Use(middleware.Recovery(logger))

	// Health check endpoint before any other middleware so probes stay cheap
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "feedback-backend",
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":   "feedback-backend",
			"version":   version.Version,
			"commit":    version.Commit,
			"buildTime": version.BuildTime,
		})
	})

	// HTTP request logging
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": c.Writer.Status(),
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["gin.errors"] = c.Errors.String()
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn(c.Request.Context(), "HTTP request rejected", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	router.Use(observability.GinMiddlewareWithErrorHandling("feedback-backend"))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	submissionHandler := NewSubmissionHandler(submissionService, rateLimitService, enqueuer, cfg, logger)
	authHandler := NewAuthHandler(userService, jwtManager, cfg, logger)
	adminHandler := NewAdminHandler(submissionService, logger)
	userAdminHandler := NewUserAdminHandler(userService, logger)

	v1 := router.Group("/v1")
	{
		// Public intake endpoint, protected only by the rate limiter
		v1.POST("/submissions", submissionHandler.Submit)

		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(jwtManager, userService), authHandler.Me)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAuth(jwtManager, userService))
		{
			admin.GET("/submissions", adminHandler.ListSubmissions)
			admin.GET("/submissions/:id", adminHandler.GetSubmission)
			admin.PUT("/submissions/:id/status", adminHandler.UpdateStatus)
			admin.PUT("/submissions/bulk-status", adminHandler.BulkUpdateStatus)
			admin.PUT("/submissions/:id/note", adminHandler.UpdateNote)
			admin.GET("/analytics", adminHandler.GetAnalytics)
			admin.GET("/export", adminHandler.ExportCSV)

			restricted := admin.Group("")
			restricted.Use(middleware.RequireRole(models.RoleAdmin))
			{
				restricted.DELETE("/submissions/:id", adminHandler.DeleteSubmission)
				restricted.GET("/users", userAdminHandler.ListUsers)
				restricted.POST("/users", userAdminHandler.CreateUser)
				restricted.PUT("/users/:id/active", userAdminHandler.SetUserActive)
				restricted.DELETE("/users/:id", userAdminHandler.DeleteUser)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/v1/") {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Not found",
				"code":  "NOT_FOUND",
			})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return router
}
