// Package di provides a dependency injection container managing service
// lifecycle and wiring for the feedback backend.
package di

import (
	"context"
	"database/sql"
	"sync"

	"feedbackapp/internal/config"
	"feedbackapp/internal/database"
	"feedbackapp/internal/middleware"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"
	"feedbackapp/internal/worker"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetSubmissionService() (services.SubmissionServiceInterface, error)
	GetRateLimitService() (services.RateLimitServiceInterface, error)
	GetUserService() (services.UserServiceInterface, error)
	GetEnrichmentService() (services.EnrichmentServiceInterface, error)
	GetCleanupService() (*services.CleanupService, error)
	GetWorkerPool() *worker.Pool
	GetJWTManager() *middleware.JWTManager
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureDefaultUsers(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	pool          *worker.Pool
	jwtManager    *middleware.JWTManager
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up the database, all services and the background workers
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices(ctx)

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetSubmissionService returns the submission service
func (sc *ServiceContainer) GetSubmissionService() (services.SubmissionServiceInterface, error) {
	return GetServiceAs[services.SubmissionServiceInterface](sc, "submission")
}

// GetRateLimitService returns the rate limit service
func (sc *ServiceContainer) GetRateLimitService() (services.RateLimitServiceInterface, error) {
	return GetServiceAs[services.RateLimitServiceInterface](sc, "rate_limit")
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetEnrichmentService returns the enrichment service
func (sc *ServiceContainer) GetEnrichmentService() (services.EnrichmentServiceInterface, error) {
	return GetServiceAs[services.EnrichmentServiceInterface](sc, "enrichment")
}

// GetCleanupService returns the cleanup service
func (sc *ServiceContainer) GetCleanupService() (*services.CleanupService, error) {
	return GetServiceAs[*services.CleanupService](sc, "cleanup")
}

// GetWorkerPool returns the enrichment worker pool
func (sc *ServiceContainer) GetWorkerPool() *worker.Pool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.pool
}

// GetJWTManager returns the access token manager
func (sc *ServiceContainer) GetJWTManager() *middleware.JWTManager {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.jwtManager
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Start launches the background workers. It is separate from Initialize so
// callers that only need the services (CLI tools, tests) never spin up the
// pipeline.
func (sc *ServiceContainer) Start(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	cleanupService, ok := sc.services["cleanup"].(*services.CleanupService)
	if !ok {
		return contextutils.ErrorWithContextf("cleanup service not initialized")
	}
	cleanupService.Start(ctx)

	if sc.pool == nil {
		return contextutils.ErrorWithContextf("worker pool not initialized")
	}
	sc.pool.Start(ctx)

	return nil
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	// The pool goes first so in-flight enrichment finishes before the
	// services underneath it are torn down.
	if sc.pool != nil {
		if err := sc.pool.Shutdown(ctx); err != nil {
			sc.logger.Error(ctx, "Failed to shutdown worker pool", err, nil)
			errors = append(errors, contextutils.WrapErrorf(err, "worker pool shutdown failed"))
		}
	}

	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Shutdown funcs run in reverse order of registration
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	submissionService := services.NewSubmissionService(sc.db, sc.logger)
	sc.services["submission"] = submissionService

	rateLimitService := services.NewRateLimitService(sc.db, sc.cfg, sc.logger)
	sc.services["rate_limit"] = rateLimitService

	userService := services.NewUserService(sc.db, sc.logger)
	sc.services["user"] = userService

	enrichmentService := services.NewEnrichmentService(sc.cfg, sc.logger)
	sc.services["enrichment"] = enrichmentService

	cleanupService := services.NewCleanupService(rateLimitService, sc.logger)
	sc.services["cleanup"] = cleanupService
	sc.shutdownFuncs = append(sc.shutdownFuncs, cleanupService.Stop)

	sc.pool = worker.NewPool(submissionService, enrichmentService, sc.cfg, sc.logger)

	sc.jwtManager = middleware.NewJWTManager(sc.cfg.Auth.SecretKey, config.TokenIssuer, sc.cfg.TokenExpiry())
}

// EnsureDefaultUsers seeds the operator accounts when the users table is empty
func (sc *ServiceContainer) EnsureDefaultUsers(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	if !sc.cfg.Auth.SeedDefaultUsers {
		return nil
	}
	return userService.EnsureDefaultUsers(ctx, sc.cfg.Auth.SeedDomain)
}
